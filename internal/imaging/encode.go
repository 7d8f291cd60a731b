package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Bytes encodes the image in its output format.
func (img *Image) Bytes() ([]byte, error) {
	if img.err != nil {
		return nil, img.err
	}
	if img.original != nil {
		return img.original, nil
	}

	var buf bytes.Buffer
	if err := img.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stream returns a reader producing the encoded image. The encoder runs
// in its own goroutine; closing the reader early stops it.
func (img *Image) Stream() io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		if img.err != nil {
			pw.CloseWithError(img.err)
			return
		}
		if img.original != nil {
			_, err := pw.Write(img.original)
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(img.Encode(pw))
	}()
	return pr
}

// Encode writes the image to w in its output format.
func (img *Image) Encode(w io.Writer) error {
	if img.err != nil {
		return img.err
	}
	if len(img.frames) == 0 {
		return fmt.Errorf("encode %s: image has no frames", img.format)
	}

	first := img.frames[0]
	switch img.format {
	case FormatJPEG:
		return jpeg.Encode(w, first, &jpeg.Options{Quality: img.jpegQuality()})
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(w, first)
	case FormatGIF:
		return gif.EncodeAll(w, img.toGIF())
	case FormatBMP:
		return bmp.Encode(w, first)
	case FormatTIFF:
		return tiff.Encode(w, first, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("no encoder for format %q", img.format)
	}
}

func (img *Image) toGIF() *gif.GIF {
	out := &gif.GIF{
		Image:     make([]*image.Paletted, len(img.frames)),
		Delay:     make([]int, len(img.frames)),
		LoopCount: img.loopCount,
		Config: image.Config{
			Width:  img.Width(),
			Height: img.Height(),
		},
	}

	for i, f := range img.frames {
		p := image.NewPaletted(f.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(p, p.Bounds(), f, f.Bounds().Min)
		out.Image[i] = p
		if i < len(img.delays) {
			out.Delay[i] = img.delays[i]
		}
	}
	out.Config.ColorModel = out.Image[0].Palette

	return out
}

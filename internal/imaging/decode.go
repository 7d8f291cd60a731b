package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"

	_ "golang.org/x/image/bmp"  // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// DefaultMaxPixels caps width x height x frames when DecodeOptions leaves
// MaxPixels unset. It is 8192x8192 worth of RGBA frames.
const DefaultMaxPixels int64 = 8192 * 8192

// ErrTooLarge reports an image whose pixel count exceeds the limit.
var ErrTooLarge = errors.New("image too large")

// DecodeOptions controls decoding.
type DecodeOptions struct {
	// FirstFrame keeps only the first frame of an animated image.
	FirstFrame bool
	// MaxPixels bounds width x height x frames of the decoded image and
	// of every image derived from it. Zero means DefaultMaxPixels.
	MaxPixels int64
}

func (o DecodeOptions) maxPixels() int64 {
	if o.MaxPixels > 0 {
		return o.MaxPixels
	}
	return DefaultMaxPixels
}

// Decode reads an image from r. filenameHint names the source in errors.
func Decode(r io.Reader, filenameHint string, opts DecodeOptions) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filenameHint, err)
	}

	// Dimensions come from the header so oversized images are refused
	// before any pixel buffer is allocated.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filenameHint, err)
	}
	limit := opts.maxPixels()
	if err := checkPixels(cfg.Width, cfg.Height, 1, limit); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filenameHint, err)
	}

	img := &Image{source: format, format: format, original: data, maxPixels: limit}

	if format == FormatGIF {
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filenameHint, err)
		}
		if opts.FirstFrame && len(g.Image) > 1 {
			g.Image, g.Delay = g.Image[:1], g.Delay[:min(1, len(g.Delay))]
			img.original = nil
		}
		// Every frame is composited onto a full logical screen.
		screen := screenBounds(g)
		if err := checkPixels(screen.Dx(), screen.Dy(), len(g.Image), limit); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filenameHint, err)
		}
		img.frames, img.delays = composite(g, screen)
		img.loopCount = g.LoopCount
		return img, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filenameHint, err)
	}
	img.frames = []*image.RGBA{toRGBA(decoded)}
	return img, nil
}

// screenBounds is the GIF logical screen, or the first frame's bounds
// when the header declares none.
func screenBounds(g *gif.GIF) image.Rectangle {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() && len(g.Image) > 0 {
		bounds = g.Image[0].Bounds()
	}
	return bounds
}

// checkPixels fails when frames of width x height exceed limit pixels.
func checkPixels(width, height, frames int, limit int64) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	budget := limit / int64(max(frames, 1))
	if int64(width) > budget || int64(height) > budget/int64(width) {
		return fmt.Errorf("%w: %dx%d x%d frames exceeds %d pixels", ErrTooLarge, width, height, max(frames, 1), limit)
	}
	return nil
}

// composite renders every GIF frame onto the logical screen so each
// resulting frame is a complete picture.
func composite(g *gif.GIF, bounds image.Rectangle) ([]*image.RGBA, []int) {
	canvas := image.NewRGBA(bounds)
	frames := make([]*image.RGBA, 0, len(g.Image))
	delays := make([]int, 0, len(g.Image))

	for i, src := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var previous *image.RGBA
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)
		frames = append(frames, cloneRGBA(canvas))

		delay := 0
		if i < len(g.Delay) {
			delay = g.Delay[i]
		}
		delays = append(delays, delay)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, src.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return frames, delays
}

func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

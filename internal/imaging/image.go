package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Image is an immutable decoded image with pending output settings.
type Image struct {
	frames    []*image.RGBA
	delays    []int
	loopCount int

	source   string
	format   string
	quality  int
	gravity  Gravity
	original []byte
	err      error

	maxPixels int64
}

// Width returns the width in pixels.
func (img *Image) Width() int {
	if len(img.frames) == 0 {
		return 0
	}
	return img.frames[0].Bounds().Dx()
}

// Height returns the height in pixels.
func (img *Image) Height() int {
	if len(img.frames) == 0 {
		return 0
	}
	return img.frames[0].Bounds().Dy()
}

// Frames returns the number of frames, 1 for still images.
func (img *Image) Frames() int {
	return len(img.frames)
}

// SourceFormat returns the decoded format name.
func (img *Image) SourceFormat() string {
	return img.source
}

// FormatName returns the output format name.
func (img *Image) FormatName() string {
	return img.format
}

// ContentType returns the MIME type of the output format.
func (img *Image) ContentType() string {
	return ContentType(img.format)
}

// Frame returns frame i. The returned image must not be modified.
func (img *Image) Frame(i int) image.Image {
	return img.frames[i]
}

// Err returns the first invalid-argument error recorded by an operation.
func (img *Image) Err() error {
	return img.err
}

// Modified reports whether any operation changed the image or its output
// settings since decoding.
func (img *Image) Modified() bool {
	return img.original == nil
}

// derive returns a modified copy sharing the receiver's frames. WebP has
// no encoder, so a modified WebP image is emitted as PNG.
func (img *Image) derive() *Image {
	out := *img
	out.original = nil
	if out.format == FormatWebP {
		out.format = FormatPNG
	}
	return &out
}

// pixelLimit is the decode-time pixel cap, or DefaultMaxPixels for an
// Image built without Decode.
func (img *Image) pixelLimit() int64 {
	if img.maxPixels > 0 {
		return img.maxPixels
	}
	return DefaultMaxPixels
}

func (img *Image) fail(err error) *Image {
	if img.err != nil {
		return img
	}
	out := *img
	out.err = err
	return &out
}

// mapFrames applies fn to every frame.
func (img *Image) mapFrames(fn func(*image.RGBA) *image.RGBA) *Image {
	out := img.derive()
	out.frames = make([]*image.RGBA, len(img.frames))
	for i, f := range img.frames {
		out.frames[i] = fn(f)
	}
	return out
}

// Resize scales the image to width x height. A zero dimension is derived
// from the other one keeping the aspect ratio.
func (img *Image) Resize(width, height int) *Image {
	if img.err != nil {
		return img
	}
	if width < 0 || height < 0 || (width == 0 && height == 0) {
		return img.fail(fmt.Errorf("invalid resize %dx%d", width, height))
	}

	srcW, srcH := img.Width(), img.Height()
	if srcW == 0 || srcH == 0 {
		return img.fail(errors.New("resize of empty image"))
	}
	// Either side alone past the limit can never fit; refusing it here
	// also keeps the aspect arithmetic below from overflowing.
	if limit := img.pixelLimit(); int64(width) > limit || int64(height) > limit {
		return img.fail(fmt.Errorf("resize to %dx%d: %w", width, height, ErrTooLarge))
	}
	if width == 0 {
		width = max(1, (height*srcW+srcH/2)/srcH)
	}
	if height == 0 {
		height = max(1, (width*srcH+srcW/2)/srcW)
	}
	if width == srcW && height == srcH {
		return img
	}
	if err := checkPixels(width, height, len(img.frames), img.pixelLimit()); err != nil {
		return img.fail(fmt.Errorf("resize to %dx%d: %w", width, height, err))
	}

	return img.mapFrames(func(f *image.RGBA) *image.RGBA {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), f, f.Bounds(), draw.Src, nil)
		return dst
	})
}

// Crop cuts a width x height window placed according to the current
// gravity, NorthWest by default. The window is clamped to the image.
func (img *Image) Crop(width, height int) *Image {
	if img.err != nil {
		return img
	}
	if width <= 0 || height <= 0 {
		return img.fail(fmt.Errorf("invalid crop %dx%d", width, height))
	}

	srcW, srcH := img.Width(), img.Height()
	width, height = min(width, srcW), min(height, srcH)
	if width == srcW && height == srcH {
		return img
	}

	gravity := img.gravity
	if gravity == "" {
		gravity = NorthWest
	}
	x, y := gravity.offset(srcW, srcH, width, height)

	return img.mapFrames(func(f *image.RGBA) *image.RGBA {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(dst, dst.Bounds(), f, f.Bounds().Min.Add(image.Pt(x, y)), draw.Src)
		return dst
	})
}

// Gravity sets the placement used by later crops.
func (img *Image) Gravity(g Gravity) *Image {
	if img.err != nil {
		return img
	}
	parsed, err := ParseGravity(string(g))
	if err != nil {
		return img.fail(err)
	}
	out := *img
	out.gravity = parsed
	return &out
}

// Quality sets the JPEG encoding quality, clamped to 1..100.
func (img *Image) Quality(q int) *Image {
	if img.err != nil {
		return img
	}
	out := img.derive()
	out.quality = min(max(q, 1), 100)
	return out
}

// Format sets the output format.
func (img *Image) Format(name string) *Image {
	if img.err != nil {
		return img
	}
	format, err := ParseFormat(name)
	if err != nil {
		return img.fail(err)
	}
	if format == img.format {
		return img
	}
	out := img.derive()
	out.format = format
	return out
}

func (img *Image) jpegQuality() int {
	if img.quality == 0 {
		return jpeg.DefaultQuality
	}
	return img.quality
}

package imaging

import (
	"fmt"
	"strings"
)

// Gravity positions a crop window inside the image. Names follow
// ImageMagick.
type Gravity string

// Gravity values.
const (
	NorthWest Gravity = "NorthWest"
	North     Gravity = "North"
	NorthEast Gravity = "NorthEast"
	West      Gravity = "West"
	Center    Gravity = "Center"
	East      Gravity = "East"
	SouthWest Gravity = "SouthWest"
	South     Gravity = "South"
	SouthEast Gravity = "SouthEast"
)

var gravities = []Gravity{NorthWest, North, NorthEast, West, Center, East, SouthWest, South, SouthEast}

// ParseGravity returns the gravity named s, ignoring case.
func ParseGravity(s string) (Gravity, error) {
	for _, g := range gravities {
		if strings.EqualFold(string(g), s) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown gravity %q", s)
}

// offset returns the top-left corner of an inner box of size (w, h)
// placed inside an outer box of size (outerW, outerH).
func (g Gravity) offset(outerW, outerH, w, h int) (int, int) {
	x, y := (outerW-w)/2, (outerH-h)/2
	name := string(g)
	if strings.HasSuffix(name, "West") {
		x = 0
	}
	if strings.HasSuffix(name, "East") {
		x = outerW - w
	}
	if strings.HasPrefix(name, "North") {
		y = 0
	}
	if strings.HasPrefix(name, "South") {
		y = outerH - h
	}
	return x, y
}

// Output format names.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
	FormatWebP = "webp"
)

// ParseFormat normalizes an output format name. WebP can be decoded but
// not encoded and is rejected here.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(s) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// ContentType returns the MIME type for a format name.
func ContentType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	case FormatWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

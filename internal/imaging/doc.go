// Package imaging is the image transform capability used by transform
// functions.
//
// Decode reads JPEG, PNG and GIF images, plus WebP, BMP and TIFF through
// golang.org/x/image. An *Image is immutable: Resize, Crop, Gravity,
// Quality and Format return a new value and leave the receiver intact,
// so transform steps can be chained freely:
//
//	img, err := imaging.Decode(body, "lighthouse.jpg", imaging.DecodeOptions{})
//	if err != nil {
//	    return err
//	}
//	out, err := img.Gravity(imaging.Center).Crop(200, 200).Quality(60).Bytes()
//
// Invalid arguments do not panic. The first one is kept as a sticky error
// and reported by Err, Bytes and Stream.
//
// Pixel counts are bounded. Decode refuses an image whose header declares
// more than DecodeOptions.MaxPixels, and Resize refuses to grow past it,
// both with ErrTooLarge.
//
// Animated GIFs keep all frames; every operation applies to each frame.
// An image that no operation touched is emitted with its original bytes.
package imaging

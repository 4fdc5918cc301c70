// Package imaging provides the image operations the verification
// pipeline needs: decoding, rectangle cropping and cover-fit resizing.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"log/slog"

	xdraw "golang.org/x/image/draw"
)

// JpegQuality is used for all re-encoded crops and avatars.
const JpegQuality = 90

// Decode decodes an image from bytes, trying JPEG first as the most
// common format and falling back to the generic decoder.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no image data provided")
	}

	if img, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported or invalid image format")
	}
	slog.Debug("Image decoded", "format", format, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

// Crop returns the sub-image described by rect. The rectangle must be
// non-empty and lie within the image bounds.
func Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("crop rectangle is empty or outside image bounds")
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst, nil
}

// ResizeCover scales img so it fully covers a w×h box, cropping the
// overflow around the center. Used for fixed-size avatars.
func ResizeCover(img image.Image, w, h int) image.Image {
	srcBounds := img.Bounds()
	srcW := srcBounds.Dx()
	srcH := srcBounds.Dy()

	// Pick the largest centered source region with the target aspect
	// ratio, then scale it down onto the destination.
	srcRegion := srcBounds
	if srcW*h > srcH*w {
		// Source is wider than the target: trim left and right.
		regionW := srcH * w / h
		offset := (srcW - regionW) / 2
		srcRegion = image.Rect(srcBounds.Min.X+offset, srcBounds.Min.Y,
			srcBounds.Min.X+offset+regionW, srcBounds.Max.Y)
	} else if srcW*h < srcH*w {
		// Source is taller: trim top and bottom.
		regionH := srcW * h / w
		offset := (srcH - regionH) / 2
		srcRegion = image.Rect(srcBounds.Min.X, srcBounds.Min.Y+offset,
			srcBounds.Max.X, srcBounds.Min.Y+offset+regionH)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// CatmullRom = high quality, good for photos/faces
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, srcRegion, xdraw.Over, nil)
	return dst
}

// EncodeJPEG re-encodes an image as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// CropEncoded decodes data, crops rect and re-encodes the result as
// JPEG. Convenience wrapper for callers that work on raw bytes.
func CropEncoded(data []byte, rect image.Rectangle) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	cropped, err := Crop(img, rect)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(cropped)
}

package slide

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels bounds the decoded size of one image. Larger inputs are rejected
// from their header before any pixel buffer is allocated.
const MaxPixels = 50_000_000

// ErrTooManyPixels reports an image above MaxPixels.
var ErrTooManyPixels = errors.New("image exceeds pixel budget")

// Decode decodes raw image bytes and applies the EXIF orientation tag, if any,
// so pixel data matches the intended visual orientation. The returned image
// carries no metadata.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("image has no pixels")
	}
	return img, nil
}

// Normalize converts img to opaque truecolor. Alpha is flattened over an
// opaque black canvas of the same size; every other color model is converted
// by the same draw.
func Normalize(img image.Image) *image.NRGBA {
	b := img.Bounds()
	// RGBA destination keeps image/draw on its fast paths for the common
	// source models (YCbCr, Gray, NRGBA, CMYK).
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)

	// Every pixel is opaque, so premultiplied and straight alpha are the same bytes.
	return &image.NRGBA{Pix: dst.Pix, Stride: dst.Stride, Rect: dst.Rect}
}

// Placeholder returns an opaque black image of exactly frame size. It stands
// in for the slide set when no article image survived download.
func Placeholder(frame FrameSize) *image.NRGBA {
	return imaging.New(frame.Width, frame.Height, color.Black)
}

package slide

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ivlev/article2video/internal/effects"
)

// Slide is one article image turned into a foreground/background layer pair.
// Both layers are exactly the frame size. Background is nil when only the
// background transform failed; the assembler fills black instead.
type Slide struct {
	Index int
	Name  string

	// Source is the normalized image the zoom animation is rendered from,
	// downscaled to at most SourceHeadroom times its fitted size.
	Source *image.NRGBA

	Foreground *image.NRGBA
	Background *image.NRGBA

	// Content is the area of Foreground covered by the image (the rest is bars).
	Content    image.Rectangle
	CoverScale float64

	BackgroundErr error
}

// Foreground scales img down to fit entirely within frame, keeping the aspect
// ratio, and centers it on an opaque black canvas of frame size. Images that
// already fit are not upscaled. The returned rectangle is the image area.
func Foreground(img image.Image, frame FrameSize) (*image.NRGBA, image.Rectangle, error) {
	if !frame.Valid() {
		return nil, image.Rectangle{}, fmt.Errorf("invalid frame %s", frame)
	}
	fitted := imaging.Fit(img, frame.Width, frame.Height, imaging.Lanczos)
	w, h := fitted.Bounds().Dx(), fitted.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, image.Rectangle{}, errors.New("image too thin to fit frame")
	}

	pos := image.Pt((frame.Width-w)/2, (frame.Height-h)/2)
	canvas := imaging.New(frame.Width, frame.Height, color.Black)
	canvas = imaging.Paste(canvas, fitted, pos)
	return canvas, image.Rectangle{Min: pos, Max: pos.Add(image.Pt(w, h))}, nil
}

// CoverScale is the smallest scale at which an iw x ih image covers frame.
func CoverScale(frame FrameSize, iw, ih int) float64 {
	return math.Max(float64(frame.Width)/float64(iw), float64(frame.Height)/float64(ih))
}

// Cover center-crops img to the frame's aspect ratio and resizes the crop to
// exactly frame size, which equals scaling by CoverScale and cutting the
// excess symmetrically. Nothing is padded and no intermediate is larger than
// the source crop or the frame.
func Cover(img image.Image, frame FrameSize) (*image.NRGBA, float64, error) {
	if !frame.Valid() {
		return nil, 0, fmt.Errorf("invalid frame %s", frame)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, 0, errors.New("empty image")
	}
	scale := CoverScale(frame, b.Dx(), b.Dy())

	cw := min(b.Dx(), max(1, int(math.Round(float64(frame.Width)/scale))))
	ch := min(b.Dy(), max(1, int(math.Round(float64(frame.Height)/scale))))

	crop := imaging.CropCenter(img, cw, ch)
	return imaging.Resize(crop, frame.Width, frame.Height, imaging.Lanczos), scale, nil
}

// SourceHeadroom is how far above the fitted size the kept source stays
// sharp: the peak of the default breathing zoom.
var SourceHeadroom = effects.DefaultBreathing.Peak()

// ShrinkSource downscales img so it is no larger than its fitted size in
// frame times headroom. Smaller images are returned as is.
func ShrinkSource(img *image.NRGBA, frame FrameSize, headroom float64) *image.NRGBA {
	b := img.Bounds()
	peak := effects.BaseScale(frame.Width, frame.Height, b.Dx(), b.Dy()) * headroom
	if peak <= 0 || peak >= 1 {
		return img
	}
	w := max(1, int(math.Round(float64(b.Dx())*peak)))
	h := max(1, int(math.Round(float64(b.Dy())*peak)))
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// BlurRadius grows with the cover scale: heavier upscaling leaves softer,
// blockier pixels to hide.
func BlurRadius(scale float64) float64 {
	return math.Max(2, math.Round(3*scale))
}

// Background is the cover-cropped image blurred by BlurRadius.
func Background(img image.Image, frame FrameSize) (*image.NRGBA, float64, error) {
	cover, scale, err := Cover(img, frame)
	if err != nil {
		return nil, 0, err
	}
	return imaging.Blur(cover, BlurRadius(scale)), scale, nil
}

// Compose builds both layers of a slide from a normalized image.
// A foreground failure fails the slide; a background failure only leaves
// Background nil. The full-size img is not retained.
func Compose(img *image.NRGBA, frame FrameSize) (*Slide, error) {
	s := &Slide{}

	err := guard(func() error {
		fg, content, err := Foreground(img, frame)
		if err != nil {
			return err
		}
		s.Foreground, s.Content = fg, content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("foreground: %w", err)
	}

	s.BackgroundErr = guard(func() error {
		bg, scale, err := Background(img, frame)
		if err != nil {
			return err
		}
		s.Background, s.CoverScale = bg, scale
		return nil
	})

	err = guard(func() error {
		s.Source = ShrinkSource(img, frame, SourceHeadroom)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return s, nil
}

// guard turns a panic inside an image transform into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

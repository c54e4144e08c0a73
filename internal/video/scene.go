package video

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ivlev/article2video/internal/effects"
	"github.com/ivlev/article2video/internal/slide"
	"github.com/ivlev/article2video/internal/timeline"
)

// Scene - слайд и его интервал. Slide == nil для черной сцены.
type Scene struct {
	Index      int
	Interval   timeline.Interval
	Slide      *slide.Slide
	FirstFrame int
	Frames     int
}

// buildScenes сопоставляет интервалы и слайды и относит каждый кадр ровно
// к одной сцене: кадр k показывается в момент k/fps.
func buildScenes(slides []*slide.Slide, tl timeline.Timeline, fps, total int) []Scene {
	scenes := make([]Scene, len(tl))
	for i, iv := range tl {
		scenes[i] = Scene{Index: i, Interval: iv, FirstFrame: -1}
		if i < len(slides) {
			scenes[i].Slide = slides[i]
		}
	}
	for k := 0; k < total; k++ {
		i := tl.At(float64(k) / float64(fps))
		if scenes[i].FirstFrame < 0 {
			scenes[i].FirstFrame = k
		}
		scenes[i].Frames++
	}
	for i := range scenes {
		if scenes[i].FirstFrame < 0 {
			scenes[i].FirstFrame = total
		}
	}
	return scenes
}

var black = image.NewUniform(color.Black)

// sceneRenderer рисует кадры одной сцены. После создания только читается,
// поэтому кадры сцены можно рисовать параллельно.
type sceneRenderer struct {
	scene  Scene
	frame  slide.FrameSize
	motion effects.Motion
	filter imaging.ResampleFilter

	// src - исходник слайда, один раз уменьшенный до максимального размера
	// зума; srcScale - его масштаб относительно оригинала.
	src      *image.NRGBA
	srcScale float64
	iw, ih   int
	base     float64
}

func newSceneRenderer(s Scene, frame slide.FrameSize, motion effects.Motion, filter imaging.ResampleFilter) *sceneRenderer {
	r := &sceneRenderer{scene: s, frame: frame, motion: motion, filter: filter}
	if s.Slide == nil || s.Slide.Source == nil {
		return r
	}

	src := s.Slide.Source
	r.iw, r.ih = src.Bounds().Dx(), src.Bounds().Dy()
	r.base = effects.BaseScale(frame.Width, frame.Height, r.iw, r.ih)
	r.src, r.srcScale = src, 1

	if peak := r.base * effects.Peak(motion); peak < 1 {
		w := max(1, int(math.Round(float64(r.iw)*peak)))
		h := max(1, int(math.Round(float64(r.ih)*peak)))
		r.src, r.srcScale = imaging.Resize(src, w, h, filter), peak
	}
	return r
}

// render рисует сцену в момент t в dst.
func (r *sceneRenderer) render(dst *image.RGBA, t float64) {
	bounds := dst.Bounds()
	if r.scene.Slide == nil {
		draw.Draw(dst, bounds, black, image.Point{}, draw.Src)
		return
	}

	if bg := r.scene.Slide.Background; bg != nil {
		draw.Draw(dst, bounds, bg, bg.Bounds().Min, draw.Src)
	} else {
		draw.Draw(dst, bounds, black, image.Point{}, draw.Src)
	}
	if r.src == nil {
		return
	}

	s := r.motion.ScaleAt(t, r.scene.Interval.Duration, r.base)
	w := max(1, int(math.Round(float64(r.iw)*s)))
	h := max(1, int(math.Round(float64(r.ih)*s)))

	img := r.src
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		img = imaging.Resize(r.src, w, h, r.filter)
	}

	// По центру; все, что за кадром, обрезает draw.
	x0 := (r.frame.Width - w) / 2
	y0 := (r.frame.Height - h) / 2
	draw.Draw(dst, image.Rect(x0, y0, x0+w, y0+h), img, img.Bounds().Min, draw.Src)
}

package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/article2video/internal/effects"
	"github.com/ivlev/article2video/internal/failure"
	"github.com/ivlev/article2video/internal/slide"
	"github.com/ivlev/article2video/internal/system"
	"github.com/ivlev/article2video/internal/timeline"
)

// ErrBusy: выходной файл уже собирается другим процессом.
var ErrBusy = errors.New("output is locked by another assembly")

// Audio - дорожка озвучки. Ее длительность задает длину видео.
type Audio struct {
	Path     string
	Duration float64
}

// Asset - готовый видеофайл.
type Asset struct {
	Path     string
	Duration float64
	Frames   int
	FPS      int
	Frame    slide.FrameSize
	Scenes   []Scene
}

// Assembler рендерит слайды по таймлайну и сводит их с аудио.
// Пустой Motion - дыхание по умолчанию, пустой Filter - Linear.
type Assembler struct {
	Encoder Encoder
	Motion  effects.Motion
	Filter  imaging.ResampleFilter
	Pool    *system.ImagePool
	Workers int
}

// Assemble пишет видео в outPath. Файл появляется только после успешного
// кодирования. Любая ошибка - EncodeFailure.
func (a *Assembler) Assemble(ctx context.Context, slides []*slide.Slide, tl timeline.Timeline, audio Audio, frame slide.FrameSize, fps int, outPath string) (*Asset, error) {
	asset, err := a.assemble(ctx, slides, tl, audio, frame, fps, outPath)
	if err != nil {
		return nil, failure.New(failure.EncodeFailure, "assemble "+filepath.Base(outPath), err)
	}
	return asset, nil
}

func (a *Assembler) assemble(ctx context.Context, slides []*slide.Slide, tl timeline.Timeline, audio Audio, frame slide.FrameSize, fps int, outPath string) (*Asset, error) {
	switch {
	case a.Encoder == nil:
		return nil, errors.New("no encoder")
	case !frame.Valid():
		return nil, fmt.Errorf("invalid frame %s", frame)
	case fps <= 0:
		return nil, fmt.Errorf("invalid fps %d", fps)
	case audio.Duration <= 0 || math.IsNaN(audio.Duration):
		return nil, fmt.Errorf("invalid audio duration %v", audio.Duration)
	case len(tl) == 0:
		return nil, errors.New("empty timeline")
	}
	if len(slides) > len(tl) {
		return nil, fmt.Errorf("%d slides for %d intervals", len(slides), len(tl))
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, err
	}
	unlock, err := lockOutput(outPath)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tmp, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+".*"+filepath.Ext(outPath))
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	total := max(1, int(math.Round(audio.Duration*float64(fps))))
	scenes := buildScenes(slides, tl, fps, total)

	encCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := a.Encoder.Open(encCtx, EncodeSpec{
		Frame:    frame,
		FPS:      fps,
		Duration: audio.Duration,
		Audio:    audio.Path,
		Output:   tmpPath,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := a.renderAll(ctx, w, scenes, frame, fps); err != nil {
		// Close сообщает, почему упал энкодер (хвост stderr).
		return nil, errors.Join(err, w.Close())
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return nil, err
	}
	renamed = true

	fmt.Printf("[>] Собрано %d кадров (%d сцен) за %v\n", total, len(scenes), time.Since(start).Round(time.Millisecond))
	return &Asset{
		Path:     outPath,
		Duration: audio.Duration,
		Frames:   total,
		FPS:      fps,
		Frame:    frame,
		Scenes:   scenes,
	}, nil
}

// renderAll рендерит сцену за сценой. Внутри сцены до Workers кадров
// рисуются параллельно и пишутся по порядку.
func (a *Assembler) renderAll(ctx context.Context, w FrameWriter, scenes []Scene, frame slide.FrameSize, fps int) error {
	motion := a.Motion
	if motion == nil {
		motion = effects.DefaultBreathing
	}
	filter := a.Filter
	if filter.Kernel == nil && filter.Support == 0 {
		filter = imaging.Linear
	}
	pool := a.Pool
	if pool == nil {
		pool = system.NewImagePool()
	}
	batch := max(1, a.Workers)
	size := image.Pt(frame.Width, frame.Height)

	bufs := make([]*image.RGBA, batch)
	for _, sc := range scenes {
		if sc.Frames == 0 {
			continue
		}
		r := newSceneRenderer(sc, frame, motion, filter)

		for k := sc.FirstFrame; k < sc.FirstFrame+sc.Frames; k += batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			n := min(batch, sc.FirstFrame+sc.Frames-k)

			var g errgroup.Group
			for j := 0; j < n; j++ {
				bufs[j] = pool.Get(size)
				local := float64(k+j)/float64(fps) - sc.Interval.Start
				dst := bufs[j]
				g.Go(func() error {
					r.render(dst, max(0, local))
					return nil
				})
			}
			_ = g.Wait()

			var err error
			for j := 0; j < n; j++ {
				if err == nil {
					err = w.WriteFrame(bufs[j])
				}
				pool.Put(bufs[j])
				bufs[j] = nil
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// lockOutput занимает outPath до вызова возвращенной функции.
func lockOutput(outPath string) (func(), error) {
	lock := outPath + ".lock"
	f, err := os.OpenFile(lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, lock)
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return func() { os.Remove(lock) }, nil
}

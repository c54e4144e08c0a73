package video

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/ivlev/article2video/internal/effects"
	"github.com/ivlev/article2video/internal/failure"
	"github.com/ivlev/article2video/internal/slide"
	"github.com/ivlev/article2video/internal/timeline"
)

// fakeEncoder считает кадры и запоминает центральный пиксель каждого.
type fakeEncoder struct {
	spec    EncodeSpec
	frames  int
	centers []color.RGBA
	failAt  int

	// widths - ширина светлой части средней строки каждого кадра.
	widths   []int
	closeErr error
}

func (f *fakeEncoder) Open(_ context.Context, spec EncodeSpec) (FrameWriter, error) {
	f.spec = spec
	return f, nil
}

func (f *fakeEncoder) WriteFrame(img *image.RGBA) error {
	if f.failAt > 0 && f.frames == f.failAt {
		return errors.New("disk full")
	}
	f.frames++
	c := img.Bounds().Size().Div(2)
	f.centers = append(f.centers, img.RGBAAt(c.X, c.Y))
	f.widths = append(f.widths, litWidth(img, c.Y))
	return nil
}

func (f *fakeEncoder) Close() error {
	if f.closeErr != nil {
		return f.closeErr
	}
	return os.WriteFile(f.spec.Output, []byte("mp4"), 0o644)
}

func litWidth(img *image.RGBA, y int) int {
	n := 0
	for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
		if img.RGBAAt(x, y).R > 127 {
			n++
		}
	}
	return n
}

func solidSlide(t *testing.T, frame slide.FrameSize, c color.NRGBA) *slide.Slide {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	s, err := slide.Compose(slide.Normalize(img), frame)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAssembleThreeSlides(t *testing.T) {
	frame := slide.FrameSize{Width: 32, Height: 18}
	colors := []color.NRGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	}
	var slides []*slide.Slide
	for _, c := range colors {
		slides = append(slides, solidSlide(t, frame, c))
	}

	enc := &fakeEncoder{}
	a := &Assembler{Encoder: enc, Workers: 4}
	out := filepath.Join(t.TempDir(), "out.mp4")

	tl := timeline.Plan(9.0, len(slides))
	asset, err := a.Assemble(context.Background(), slides, tl, Audio{Path: "audio.mp3", Duration: 9.0}, frame, 24, out)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if asset.Duration != 9.0 || asset.Frames != 216 || enc.frames != 216 {
		t.Fatalf("duration %v frames %d written %d, want 9.0/216/216", asset.Duration, asset.Frames, enc.frames)
	}
	if len(asset.Scenes) != 3 {
		t.Fatalf("scenes = %d", len(asset.Scenes))
	}
	for i, sc := range asset.Scenes {
		if sc.Interval.Duration != 3.0 {
			t.Errorf("scene %d duration %v", i, sc.Interval.Duration)
		}
		if sc.Frames != 72 || sc.FirstFrame != i*72 {
			t.Errorf("scene %d frames %d first %d", i, sc.Frames, sc.FirstFrame)
		}
		got := enc.centers[sc.FirstFrame+sc.Frames/2]
		want := colors[i]
		if got.R != want.R || got.G != want.G || got.B != want.B {
			t.Errorf("scene %d center = %v, want %v", i, got, want)
		}
	}

	if enc.spec.Output == out {
		t.Error("encoder must write to a temporary path")
	}
	if enc.spec.Duration != 9.0 || enc.spec.Audio != "audio.mp3" {
		t.Errorf("spec = %+v", enc.spec)
	}
	assertOnlyOutput(t, out)
}

func TestAssembleNoSlides(t *testing.T) {
	frame := slide.FrameSize{Width: 16, Height: 16}
	enc := &fakeEncoder{}
	a := &Assembler{Encoder: enc}
	out := filepath.Join(t.TempDir(), "out.mp4")

	asset, err := a.Assemble(context.Background(), nil, timeline.Plan(10.0, 0), Audio{Path: "a.mp3", Duration: 10.0}, frame, 10, out)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if asset.Duration != 10.0 || len(asset.Scenes) != 1 {
		t.Fatalf("duration %v scenes %d", asset.Duration, len(asset.Scenes))
	}
	if asset.Scenes[0].Slide != nil || asset.Scenes[0].Frames != 100 {
		t.Errorf("scene = %+v", asset.Scenes[0])
	}
	for k, c := range enc.centers {
		if c != (color.RGBA{A: 255}) {
			t.Fatalf("frame %d center = %v, want black", k, c)
		}
	}
	assertOnlyOutput(t, out)
}

func TestSceneWithoutBackgroundFillsBlack(t *testing.T) {
	frame := slide.FrameSize{Width: 40, Height: 10}
	s := solidSlide(t, frame, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	s.Background = nil

	sc := Scene{Slide: s, Interval: timeline.Interval{Duration: 1}}
	r := newSceneRenderer(sc, frame, effects.Static{}, imaging.Linear)
	dst := image.NewRGBA(frame.Rect())
	r.render(dst, 0.5)

	if c := dst.RGBAAt(0, 5); c != (color.RGBA{A: 255}) {
		t.Errorf("edge pixel = %v, want black", c)
	}
	if c := dst.RGBAAt(20, 5); c.R < 250 || c.G < 250 || c.B < 250 {
		t.Errorf("center pixel = %v, want white", c)
	}
}

func TestAssembleEncodeErrorLeavesNoOutput(t *testing.T) {
	frame := slide.FrameSize{Width: 8, Height: 8}
	enc := &fakeEncoder{failAt: 5}
	a := &Assembler{Encoder: enc}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mp4")

	_, err := a.Assemble(context.Background(), nil, timeline.Plan(2, 0), Audio{Duration: 2}, frame, 24, out)
	if err == nil {
		t.Fatal("expected error")
	}
	if k := failure.KindOf(err); k != failure.EncodeFailure {
		t.Errorf("kind = %q", k)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestAssembleReportsEncoderCloseError(t *testing.T) {
	frame := slide.FrameSize{Width: 8, Height: 8}
	exited := errors.New("ffmpeg wait error: exit status 1, output: Unknown encoder")
	enc := &fakeEncoder{failAt: 3, closeErr: exited}
	a := &Assembler{Encoder: enc}
	dir := t.TempDir()

	_, err := a.Assemble(context.Background(), nil, timeline.Plan(1, 0), Audio{Duration: 1}, frame, 24, filepath.Join(dir, "out.mp4"))
	if !errors.Is(err, exited) {
		t.Fatalf("err = %v, want the close error joined in", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want the write error kept", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestAssembleRendersBreathingZoom(t *testing.T) {
	// Белый 10x20 в кадре 200x100 вписывается с base 5 (50px в ширину),
	// зум растет по горизонтали только в черные поля.
	frame := slide.FrameSize{Width: 200, Height: 100}
	src := image.NewNRGBA(image.Rect(0, 0, 10, 20))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	s := &slide.Slide{Source: src}

	enc := &fakeEncoder{}
	a := &Assembler{Encoder: enc, Motion: effects.DefaultBreathing, Workers: 3}
	out := filepath.Join(t.TempDir(), "out.mp4")

	// Один слайд 4с при 4 FPS: кадр 4 - t=period/4, кадр 12 - t=3*period/4.
	if _, err := a.Assemble(context.Background(), []*slide.Slide{s}, timeline.Plan(4, 1), Audio{Duration: 4}, frame, 4, out); err != nil {
		t.Fatal(err)
	}
	if len(enc.widths) != 16 {
		t.Fatalf("frames = %d, want 16", len(enc.widths))
	}

	base := effects.BaseScale(frame.Width, frame.Height, 10, 20) * 10
	lo, hi := int(base*1.00)-1, int(math.Ceil(base*1.06))+1
	for k, w := range enc.widths {
		if w < lo || w > hi {
			t.Errorf("frame %d: width %d outside [%d, %d]", k, w, lo, hi)
		}
	}
	if enc.widths[4] <= enc.widths[12] {
		t.Errorf("width at peak %d, at trough %d: zoom not applied", enc.widths[4], enc.widths[12])
	}
	if enc.widths[0] != enc.widths[8] {
		t.Errorf("width at t=0 %d, at t=period/2 %d: want equal", enc.widths[0], enc.widths[8])
	}
}

func TestAssembleLocked(t *testing.T) {
	frame := slide.FrameSize{Width: 8, Height: 8}
	out := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(out+".lock", nil, 0o644); err != nil {
		t.Fatal(err)
	}

	a := &Assembler{Encoder: &fakeEncoder{}}
	_, err := a.Assemble(context.Background(), nil, timeline.Plan(1, 0), Audio{Duration: 1}, frame, 24, out)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if _, err := os.Stat(out + ".lock"); err != nil {
		t.Error("foreign lock must be left in place")
	}
}

func TestAssembleRejectsBadInput(t *testing.T) {
	frame := slide.FrameSize{Width: 8, Height: 8}
	out := filepath.Join(t.TempDir(), "out.mp4")
	a := &Assembler{Encoder: &fakeEncoder{}}
	ctx := context.Background()

	if _, err := a.Assemble(ctx, nil, timeline.Plan(1, 0), Audio{Duration: 0}, frame, 24, out); err == nil {
		t.Error("zero audio duration must fail")
	}
	if _, err := a.Assemble(ctx, nil, timeline.Plan(1, 0), Audio{Duration: 1}, frame, 0, out); err == nil {
		t.Error("zero fps must fail")
	}
	if _, err := a.Assemble(ctx, nil, timeline.Plan(1, 0), Audio{Duration: 1}, slide.FrameSize{}, 24, out); err == nil {
		t.Error("empty frame must fail")
	}
}

func assertOnlyOutput(t *testing.T, out string) {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != filepath.Base(out) {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only %s", names, filepath.Base(out))
	}
}

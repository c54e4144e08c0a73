package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ivlev/article2video/internal/slide"
)

// EncodeSpec описывает один выходной файл.
type EncodeSpec struct {
	Frame    slide.FrameSize
	FPS      int
	Duration float64
	Audio    string
	Output   string
}

// FrameWriter принимает кадры в порядке показа. Close завершает файл,
// после него кадры писать нельзя.
type FrameWriter interface {
	WriteFrame(img *image.RGBA) error
	Close() error
}

type Encoder interface {
	Open(ctx context.Context, spec EncodeSpec) (FrameWriter, error)
}

// FFmpegEncoder передает raw RGBA кадры в stdin ffmpeg и сводит их
// с дорожкой озвучки.
type FFmpegEncoder struct {
	Codec   string
	Quality int
}

func (e *FFmpegEncoder) Open(ctx context.Context, spec EncodeSpec) (FrameWriter, error) {
	args := e.buildArgs(spec)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return &ffmpegWriter{cmd: cmd, stdin: stdin, stderr: stderr, frame: spec.Frame}, nil
}

func (e *FFmpegEncoder) codec() string {
	if e.Codec == "" {
		return "libx264"
	}
	return e.Codec
}

func (e *FFmpegEncoder) buildArgs(spec EncodeSpec) []string {
	video := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         spec.Frame.String(),
		"framerate": spec.FPS,
	})
	audio := ffmpeg.Input(spec.Audio).Audio()

	out := ffmpeg.KwArgs{
		"c:v":      e.codec(),
		"pix_fmt":  "yuv420p",
		"r":        spec.FPS,
		"c:a":      "aac",
		"b:a":      "192k",
		"t":        fmt.Sprintf("%.3f", spec.Duration),
		"movflags": "+faststart",
	}
	for k, v := range qualityArgs(e.codec(), e.Quality) {
		out[k] = v
	}

	return ffmpeg.Output([]*ffmpeg.Stream{video, audio}, spec.Output, out).
		OverWriteOutput().
		GetArgs()
}

// qualityArgs: качество в зависимости от энкодера.
func qualityArgs(codec string, quality int) ffmpeg.KwArgs {
	switch codec {
	case "h264_videotoolbox":
		if quality <= 0 {
			quality = 75
		}
		// VideoToolbox не везде понимает -q:v, поэтому битрейт: 75 -> 7.5 Мбит/с.
		return ffmpeg.KwArgs{"b:v": fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		if quality <= 0 {
			quality = 23
		}
		return ffmpeg.KwArgs{"cq": quality}
	default:
		if quality <= 0 {
			quality = 23
		}
		return ffmpeg.KwArgs{"crf": quality, "preset": "medium"}
	}
}

type ffmpegWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	frame  slide.FrameSize
	closed bool
}

func (w *ffmpegWriter) WriteFrame(img *image.RGBA) error {
	if w.closed {
		return errClosed
	}
	if img.Rect.Dx() != w.frame.Width || img.Rect.Dy() != w.frame.Height {
		return fmt.Errorf("frame %v does not match %s", img.Rect, w.frame)
	}
	if img.Stride == w.frame.Width*4 {
		_, err := w.stdin.Write(img.Pix[:w.frame.Height*img.Stride])
		return w.wrap(err)
	}
	for y := 0; y < w.frame.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w.frame.Width*4]
		if _, err := w.stdin.Write(row); err != nil {
			return w.wrap(err)
		}
	}
	return nil
}

func (w *ffmpegWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	closeErr := w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w, output: %s", err, w.stderr.String())
	}
	return closeErr
}

func (w *ffmpegWriter) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("write raw error: %w", err)
}

// tailBuffer хранит последние limit байт.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if extra := t.buf.Len() - t.limit; extra > 0 {
		t.buf.Next(extra)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(t.buf.String())
}

var errClosed = errors.New("writer closed")

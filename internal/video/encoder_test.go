package video

import (
	"slices"
	"strings"
	"testing"

	"github.com/ivlev/article2video/internal/slide"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		codec   string
		quality int
		want    []string
	}{
		{"libx264", 20, []string{"-crf 20", "-preset medium", "-c:v libx264"}},
		{"", 0, []string{"-crf 23", "-c:v libx264"}},
		{"h264_nvenc", 19, []string{"-cq 19", "-c:v h264_nvenc"}},
		{"h264_videotoolbox", 75, []string{"-b:v 7500k", "-c:v h264_videotoolbox"}},
	}

	spec := EncodeSpec{
		Frame:    slide.FrameSize{Width: 1280, Height: 720},
		FPS:      24,
		Duration: 9.5,
		Audio:    "/tmp/run/audio.mp3",
		Output:   "/tmp/run/out.mp4",
	}

	for _, tt := range tests {
		enc := &FFmpegEncoder{Codec: tt.codec, Quality: tt.quality}
		args := enc.buildArgs(spec)
		line := strings.Join(args, " ")

		common := []string{
			"-f rawvideo",
			"-pix_fmt rgba",
			"-s 1280x720",
			"-i pipe:",
			"-i /tmp/run/audio.mp3",
			"-map",
			":a",
			"-t 9.500",
			"-pix_fmt yuv420p",
			"-c:a aac",
		}
		for _, want := range append(common, tt.want...) {
			if !strings.Contains(line, want) {
				t.Errorf("%s: args %q lack %q", tt.codec, line, want)
			}
		}
		if !slices.Contains(args, spec.Output) || !slices.Contains(args, "-y") {
			t.Errorf("%s: output or overwrite flag missing: %q", tt.codec, line)
		}
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 8}
	tb.Write([]byte("hello "))
	tb.Write([]byte("ffmpeg error"))
	if got := tb.String(); got != "eg error" {
		t.Errorf("tail = %q", got)
	}
}

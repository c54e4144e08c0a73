package engine

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ivlev/article2video/internal/config"
	"github.com/ivlev/article2video/internal/video"
)

type stage struct {
	name string
	took time.Duration
}

// stats собирает время этапов для отчета о производительности.
type stats struct {
	start   time.Time
	current string
	began   time.Time
	stages  []stage
}

func newStats() *stats {
	return &stats{start: time.Now()}
}

func (s *stats) begin(name string) {
	s.current, s.began = name, time.Now()
}

func (s *stats) end() {
	if s.current == "" {
		return
	}
	s.stages = append(s.stages, stage{name: s.current, took: time.Since(s.began)})
	s.current = ""
}

func (s *stats) total() time.Duration {
	return time.Since(s.start)
}

func (s *stats) took(name string) time.Duration {
	for _, st := range s.stages {
		if st.name == name {
			return st.took
		}
	}
	return 0
}

func (s *stats) report(w io.Writer, cfg *config.Config, url string, asset *video.Asset) {
	total := s.total()
	var b strings.Builder
	b.WriteString("--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(&b, "Build: %s\n", cfg.BuildVersion)
	fmt.Fprintf(&b, "Article: %s\n", url)
	fmt.Fprintf(&b, "Total Time: %.2fs\n", total.Seconds())
	for _, st := range s.stages {
		fmt.Fprintf(&b, "%-10s %.2fs\n", st.name+":", st.took.Seconds())
	}
	fmt.Fprintf(&b, "Frames: %d | Effective FPS: %.2f\n", asset.Frames, effectiveFPS(asset.Frames, s.took("assemble")))
	b.WriteString("----------------------------\n")
	io.WriteString(w, b.String())
}

func (s *stats) appendLog(path string, cfg *config.Config, url string, asset *video.Asset) error {
	entry := fmt.Sprintf("[%s] Build: %s | Article: %s | Slides: %d | Total: %.2fs | Compose: %.2fs | TTS: %.2fs | Assemble: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		cfg.BuildVersion,
		url,
		len(asset.Scenes),
		s.total().Seconds(),
		s.took("compose").Seconds(),
		s.took("tts").Seconds(),
		s.took("assemble").Seconds(),
		effectiveFPS(asset.Frames, s.took("assemble")),
	)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(entry)
	return err
}

func effectiveFPS(frames int, took time.Duration) float64 {
	if took <= 0 {
		return 0
	}
	return float64(frames) / took.Seconds()
}

// Package workspace lays out the per-run output directory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	AudioFile    = "audio.mp3"
	TextFile     = "text.txt"
	ManifestFile = "manifest.yaml"
	SourceFile   = "source.png"

	rawDir       = "raw"
	processedDir = "processed"
	maxNameRunes = 100
)

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

// SafeName turns an article title into a file name stem.
func SafeName(title string) string {
	s := strings.TrimSpace(unsafeChars.ReplaceAllString(title, "_"))
	if r := []rune(s); len(r) > maxNameRunes {
		s = string(r[:maxNameRunes])
	}
	if s == "" {
		return "article"
	}
	return s
}

var imageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp)(\?|$)`)

// ImageExt guesses the file extension from an image URL, defaulting to .jpg.
func ImageExt(u string) string {
	m := imageExt.FindStringSubmatch(u)
	if m == nil {
		return ".jpg"
	}
	switch strings.ToLower(m[1]) {
	case "png":
		return ".png"
	case "webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// Run is one run directory: <outdir>/<name>_<8 hex>.
type Run struct {
	Dir  string
	Name string
}

// NewRun creates the run directory with its raw and processed subdirectories.
func NewRun(outdir, title string) (*Run, error) {
	name := SafeName(title)
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	r := &Run{Dir: filepath.Join(outdir, name+"_"+id), Name: name}

	for _, d := range []string{r.Dir, r.RawDir(), r.ProcessedDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
	}
	return r, nil
}

func (r *Run) RawDir() string       { return filepath.Join(r.Dir, rawDir) }
func (r *Run) ProcessedDir() string { return filepath.Join(r.Dir, processedDir) }
func (r *Run) AudioPath() string    { return filepath.Join(r.Dir, AudioFile) }
func (r *Run) TextPath() string     { return filepath.Join(r.Dir, TextFile) }
func (r *Run) ManifestPath() string { return filepath.Join(r.Dir, ManifestFile) }
func (r *Run) SourcePath() string   { return filepath.Join(r.Dir, SourceFile) }
func (r *Run) VideoPath() string    { return filepath.Join(r.Dir, r.Name+".mp4") }

// RawName is the file name of the i-th downloaded image.
func RawName(i int, ext string) string {
	return fmt.Sprintf("img_%d%s", i, ext)
}

// LayerNames returns the processed foreground and background file names
// derived from a raw image name.
func LayerNames(raw string) (fg, bg string) {
	return raw + ".jpg", raw + ".bg.jpg"
}

// WriteRaw stores downloaded bytes under raw/.
func (r *Run) WriteRaw(name string, data []byte) (string, error) {
	return filepath.Join(r.RawDir(), name), WriteFileAtomic(r.RawDir(), name, data)
}

// WriteProcessed stores an encoded layer under processed/.
func (r *Run) WriteProcessed(name string, data []byte) (string, error) {
	return filepath.Join(r.ProcessedDir(), name), WriteFileAtomic(r.ProcessedDir(), name, data)
}

// WriteText stores the narrated text.
func (r *Run) WriteText(text string) error {
	return WriteFileAtomic(r.Dir, TextFile, []byte(text))
}

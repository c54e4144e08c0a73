package workspace

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "Hello World"},
		{`a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"  padded  ", "padded"},
		{"tab\there", "tab_here"},
		{"line\nbreak", "line_break"},
		{"", "article"},
		{"   ", "article"},
		{strings.Repeat("я", 150), strings.Repeat("я", 100)},
	}
	for _, tt := range tests {
		if got := SafeName(tt.in); got != tt.want {
			t.Errorf("SafeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestImageExt(t *testing.T) {
	tests := map[string]string{
		"https://x.com/a.JPEG":            ".jpg",
		"https://x.com/a.jpg?w=100":       ".jpg",
		"https://x.com/a.png":             ".png",
		"https://x.com/a.webp?x=1":        ".webp",
		"https://x.com/a.gif":             ".jpg",
		"https://x.com/image?id=4":        ".jpg",
		"https://x.com/a.png.html":        ".jpg",
		"https://x.com/photo.png?fmt=jpg": ".png",
	}
	for u, want := range tests {
		if got := ImageExt(u); got != want {
			t.Errorf("ImageExt(%q) = %s, want %s", u, got, want)
		}
	}
}

func TestNewRun(t *testing.T) {
	out := t.TempDir()
	r, err := NewRun(out, "My: Article")
	if err != nil {
		t.Fatal(err)
	}

	base := filepath.Base(r.Dir)
	if !regexp.MustCompile(`^My_ Article_[0-9a-f]{8}$`).MatchString(base) {
		t.Errorf("run dir = %q", base)
	}
	for _, d := range []string{r.RawDir(), r.ProcessedDir()} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("%s missing", d)
		}
	}
	if filepath.Base(r.VideoPath()) != "My_ Article.mp4" {
		t.Errorf("video path = %s", r.VideoPath())
	}

	other, err := NewRun(out, "My: Article")
	if err != nil {
		t.Fatal(err)
	}
	if other.Dir == r.Dir {
		t.Error("two runs share a directory")
	}
}

func TestWriteFiles(t *testing.T) {
	r, err := NewRun(t.TempDir(), "t")
	if err != nil {
		t.Fatal(err)
	}

	raw := RawName(3, ".png")
	p, err := r.WriteRaw(raw, []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(r.Dir, "raw", "img_3.png") {
		t.Errorf("raw path = %s", p)
	}

	fg, bg := LayerNames(raw)
	if fg != "img_3.png.jpg" || bg != "img_3.png.bg.jpg" {
		t.Errorf("layer names = %s %s", fg, bg)
	}
	if _, err := r.WriteProcessed(fg, []byte("jpg")); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteText("narration"); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(r.TextPath())
	if err != nil || string(got) != "narration" {
		t.Errorf("text = %q, %v", got, err)
	}
	entries, _ := os.ReadDir(r.ProcessedDir())
	if len(entries) != 1 {
		t.Errorf("processed holds %d entries, temp files left behind?", len(entries))
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFileAtomic(dir, "a.txt", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(dir, "a.txt", []byte("two")); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	if string(got) != "two" {
		t.Errorf("content = %q", got)
	}
}

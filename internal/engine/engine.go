package engine

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/article2video/internal/config"
	"github.com/ivlev/article2video/internal/effects"
	"github.com/ivlev/article2video/internal/extract"
	"github.com/ivlev/article2video/internal/failure"
	"github.com/ivlev/article2video/internal/fetch"
	"github.com/ivlev/article2video/internal/manifest"
	"github.com/ivlev/article2video/internal/slide"
	"github.com/ivlev/article2video/internal/system"
	"github.com/ivlev/article2video/internal/timeline"
	"github.com/ivlev/article2video/internal/tts"
	"github.com/ivlev/article2video/internal/video"
	"github.com/ivlev/article2video/internal/workspace"
)

type Extractor interface {
	Extract(ctx context.Context, url string) (*extract.Article, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, outPath string) (*tts.Asset, error)
}

type Assembler interface {
	Assemble(ctx context.Context, slides []*slide.Slide, tl timeline.Timeline, audio video.Audio, frame slide.FrameSize, fps int, outPath string) (*video.Asset, error)
}

type Publisher interface {
	Publish(ctx context.Context, run string, files ...string) ([]string, error)
}

// VideoProject собирает одно видео из одной статьи в новой папке запуска.
type VideoProject struct {
	Config    *config.Config
	Fetcher   fetch.Fetcher
	Extractor Extractor
	Synth     Synthesizer
	Assembler Assembler

	// Publisher необязателен: nil оставляет результаты локально.
	Publisher Publisher

	// EncoderName и Motion попадают в манифест.
	EncoderName string
	Motion      effects.Motion
}

func NewVideoProject(cfg *config.Config, f fetch.Fetcher, ex Extractor, synth Synthesizer, asm Assembler) *VideoProject {
	return &VideoProject{
		Config:    cfg,
		Fetcher:   f,
		Extractor: ex,
		Synth:     synth,
		Assembler: asm,
		Motion:    effects.DefaultBreathing,
	}
}

// Result описывает завершенный запуск.
type Result struct {
	Run      *workspace.Run
	Video    *video.Asset
	Audio    *tts.Asset
	Manifest *manifest.Manifest
	Uploaded []string
}

// download - один URL изображения и его судьба.
type download struct {
	Index int
	URL   string
	Name  string
	Data  []byte
	Err   error
}

// Run выполняет весь пайплайн для Config.URL. Ошибки отдельных изображений
// логируются и пишутся в манифест; ошибки извлечения, озвучки и кодирования
// возвращаются.
func (p *VideoProject) Run(ctx context.Context) (*Result, error) {
	cfg := p.Config
	st := newStats()
	frame := slide.FrameSize{Width: cfg.Width, Height: cfg.Height}
	workers := cfg.Workers
	if workers <= 0 {
		workers = system.DefaultWorkers()
	}

	fmt.Println("--- [PROJECT: ARTICLE2VIDEO] ---")
	fmt.Printf("[*] Статья: %s\n", cfg.URL)
	fmt.Printf("[*] Разрешение: %s @ %d FPS | Потоков: %d\n", frame, cfg.FPS, workers)
	fmt.Println("--------------------------------")

	st.begin("extract")
	art, err := p.Extractor.Extract(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	st.end()
	fmt.Printf("[*] Заголовок: %s | Символов: %d | Изображений: %d\n", art.Title, len([]rune(art.Text)), len(art.Images))

	run, err := workspace.NewRun(cfg.OutDir, art.Title)
	if err != nil {
		return nil, err
	}
	if err := run.WriteText(art.Text); err != nil {
		return nil, fmt.Errorf("write text: %w", err)
	}
	fmt.Printf("[*] Папка запуска: %s\n", run.Dir)

	st.begin("download")
	downloads := p.downloadImages(ctx, run, art.Images, workers)
	st.end()

	var inputs []slide.Input
	var failures []manifest.Failure
	for _, d := range downloads {
		if d.Err != nil {
			log.Printf("[!] Не удалось скачать %s: %v", d.URL, d.Err)
			failures = append(failures, failureRecord(d.Index, d.URL, d.Err))
			continue
		}
		inputs = append(inputs, slide.Input{Index: d.Index, Name: d.Name, Data: d.Data})
	}

	st.begin("compose")
	var slides []*slide.Slide
	if len(inputs) == 0 {
		log.Printf("[!] Нет ни одного изображения, используется черный кадр")
		failures = append(failures, manifest.Failure{
			Index: -1,
			Kind:  string(failure.EmptyAssetFailure),
			Error: "no image could be downloaded",
		})
		ph, err := slide.Compose(slide.Placeholder(frame), frame)
		if err != nil {
			return nil, fmt.Errorf("placeholder: %w", err)
		}
		// Index -1: за заглушкой нет скачанного файла.
		ph.Index, ph.Name = -1, "placeholder"
		slides = []*slide.Slide{ph}
	} else {
		results := slide.ComposeAll(inputs, frame, workers)
		slides = slide.Slides(results)
		for _, r := range slide.Failures(results) {
			failures = append(failures, failureRecord(r.Index, urlAt(downloads, r.Index), r.Err))
		}
	}
	layers := p.persistLayers(run, slides, workers)
	st.end()
	fmt.Printf("[>] Слайдов: %d, пропущено: %d\n", len(slides), len(failures))

	st.begin("tts")
	audio, err := p.Synth.Synthesize(ctx, art.Text, cfg.Language, run.AudioPath())
	if err != nil {
		return nil, err
	}
	st.end()
	fmt.Printf("[*] Озвучка: %.2fs\n", audio.Duration)

	tl := timeline.Plan(audio.Duration, len(slides))

	st.begin("assemble")
	asset, err := p.Assembler.Assemble(ctx, slides, tl, video.Audio{Path: audio.Path, Duration: audio.Duration}, frame, cfg.FPS, run.VideoPath())
	if err != nil {
		return nil, err
	}
	st.end()

	res := &Result{Run: run, Video: asset, Audio: audio}

	if cfg.QR {
		if err := writeQR(run, art.URL); err != nil {
			log.Printf("[!] QR-код не записан: %v", err)
		}
	}

	res.Manifest = p.buildManifest(art, run, audio, asset, downloads, layers, failures)
	if err := manifest.Write(res.Manifest, run.ManifestPath()); err != nil {
		log.Printf("[!] Манифест не записан: %v", err)
	}

	if p.Publisher != nil {
		st.begin("publish")
		uris, err := p.Publisher.Publish(ctx, filepath.Base(run.Dir), run.VideoPath(), run.ManifestPath(), run.TextPath(), run.AudioPath())
		if err != nil {
			log.Printf("[!] Загрузка в S3 не удалась: %v", err)
		}
		res.Uploaded = uris
		st.end()
		for _, u := range uris {
			fmt.Printf("[*] Загружено: %s\n", u)
		}
	}

	if cfg.ShowStats {
		st.report(os.Stdout, cfg, art.URL, asset)
		if err := st.appendLog(filepath.Join(cfg.OutDir, "benchmark.log"), cfg, art.URL, asset); err != nil {
			fmt.Printf("[!] Не удалось записать benchmark.log: %v\n", err)
		}
	}
	return res, nil
}

// downloadImages параллельно скачивает до MaxImages изображений. Порядок
// результатов совпадает с порядком в статье.
func (p *VideoProject) downloadImages(ctx context.Context, run *workspace.Run, urls []string, workers int) []download {
	if n := p.Config.MaxImages; len(urls) > n {
		urls = urls[:n]
	}
	out := make([]download, len(urls))

	var g errgroup.Group
	g.SetLimit(max(4, workers))
	for i, u := range urls {
		g.Go(func() error {
			d := download{Index: i, URL: u, Name: workspace.RawName(i, workspace.ImageExt(u))}
			data, err := p.Fetcher.Fetch(ctx, u)
			switch {
			case err != nil:
				d.Err = failure.New(failure.RetrievalFailure, "download", err)
			case len(data) == 0:
				d.Err = failure.New(failure.RetrievalFailure, "download", fmt.Errorf("empty body"))
			default:
				d.Data = data
				if _, err := run.WriteRaw(d.Name, data); err != nil {
					log.Printf("[!] Не удалось сохранить %s: %v", d.Name, err)
				}
			}
			out[i] = d
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type layerFiles struct {
	Foreground string
	Background string
}

// persistLayers пишет оба слоя каждого слайда в processed/ как JPEG.
// Ошибка записи теряет только файл, но не слайд.
func (p *VideoProject) persistLayers(run *workspace.Run, slides []*slide.Slide, workers int) map[int]layerFiles {
	files := make([]layerFiles, len(slides))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, s := range slides {
		g.Go(func() error {
			fgName, bgName := workspace.LayerNames(s.Name)
			if path, err := writeLayer(run, fgName, s.Foreground); err != nil {
				log.Printf("[!] Слой %s не сохранен: %v", fgName, err)
			} else {
				files[i].Foreground = path
			}
			if s.Background != nil {
				if path, err := writeLayer(run, bgName, s.Background); err != nil {
					log.Printf("[!] Слой %s не сохранен: %v", bgName, err)
				} else {
					files[i].Background = path
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[int]layerFiles, len(slides))
	for i, s := range slides {
		out[s.Index] = files[i]
	}
	return out
}

func writeLayer(run *workspace.Run, name string, img *image.NRGBA) (string, error) {
	data, err := slide.EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	return run.WriteProcessed(name, data)
}

func writeQR(run *workspace.Run, url string) error {
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return err
	}
	return workspace.WriteFileAtomic(run.Dir, workspace.SourceFile, png)
}

func (p *VideoProject) buildManifest(art *extract.Article, run *workspace.Run, audio *tts.Asset, asset *video.Asset, downloads []download, layers map[int]layerFiles, failures []manifest.Failure) *manifest.Manifest {
	cfg := p.Config
	m := &manifest.Manifest{
		Version:   manifest.Version,
		URL:       art.URL,
		Title:     art.Title,
		CreatedAt: time.Now().Format(time.RFC3339),
		Language:  cfg.Language,
		Width:     asset.Frame.Width,
		Height:    asset.Frame.Height,
		FPS:       asset.FPS,
		Audio: manifest.Audio{
			Path:     relTo(run.Dir, audio.Path),
			Engine:   cfg.TTSEngine,
			Duration: audio.Duration,
			Chars:    audio.Chars,
		},
		Video: manifest.Video{
			Path:     relTo(run.Dir, asset.Path),
			Duration: asset.Duration,
			Frames:   asset.Frames,
			Encoder:  p.EncoderName,
		},
		Failures: failures,
	}

	motion := p.Motion
	if motion == nil {
		motion = effects.DefaultBreathing
	}
	for _, sc := range asset.Scenes {
		ms := manifest.Slide{
			ID:       sc.Index,
			Start:    sc.Interval.Start,
			Duration: sc.Interval.Duration,
			Frames:   sc.Frames,
		}
		if s := sc.Slide; s != nil {
			ms.Input = urlAt(downloads, s.Index)
			if ms.Input != "" {
				ms.Source = filepath.ToSlash(filepath.Join("raw", s.Name))
			}
			if lf, ok := layers[s.Index]; ok {
				ms.Foreground = relTo(run.Dir, lf.Foreground)
				ms.Background = relTo(run.Dir, lf.Background)
			}
			ms.Keyframes = manifest.Sample(motion, sc.Interval.Duration, 4)
		}
		m.Slides = append(m.Slides, ms)
	}
	return m
}

func failureRecord(index int, url string, err error) manifest.Failure {
	return manifest.Failure{
		Index: index,
		URL:   url,
		Kind:  string(failure.KindOf(err)),
		Error: err.Error(),
	}
}

func urlAt(downloads []download, index int) string {
	if index >= 0 && index < len(downloads) {
		return downloads[index].URL
	}
	return ""
}

func relTo(dir, path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

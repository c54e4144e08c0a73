package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ivlev/article2video/internal/config"
	"github.com/ivlev/article2video/internal/effects"
	"github.com/ivlev/article2video/internal/engine"
	"github.com/ivlev/article2video/internal/extract"
	"github.com/ivlev/article2video/internal/failure"
	"github.com/ivlev/article2video/internal/fetch"
	"github.com/ivlev/article2video/internal/publish"
	"github.com/ivlev/article2video/internal/system"
	"github.com/ivlev/article2video/internal/tts"
	"github.com/ivlev/article2video/internal/video"
)

// version задается при сборке: -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	// .env необязателен
	if err := godotenv.Load(); err == nil {
		fmt.Println("[*] Загружен .env")
	}

	def := config.Default()
	configPtr := flag.String("config", "", "Путь к YAML-конфигу (флаги имеют приоритет)")
	urlPtr := flag.String("url", "", "URL статьи")
	feedPtr := flag.String("feed", "", "URL RSS/Atom ленты (вместо -url)")
	feedCountPtr := flag.Int("feed-count", def.FeedCount, "Сколько статей взять из ленты")
	langPtr := flag.String("lang", def.Language, "Язык озвучки (en, ru, de, ...)")
	maxImagesPtr := flag.Int("max-images", def.MaxImages, "Максимум изображений из статьи")
	outdirPtr := flag.String("outdir", def.OutDir, "Папка для результатов")
	widthPtr := flag.Int("width", def.Width, "Ширина")
	heightPtr := flag.Int("height", def.Height, "Высота")
	presetPtr := flag.String("preset", "", "Пресет формата: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	fpsPtr := flag.Int("fps", def.FPS, "FPS")
	workersPtr := flag.Int("workers", 0, "Потоки (0 - по числу ядер и памяти)")
	motionPtr := flag.String("motion", def.Motion, "Движение: breathing, static")
	encoderPtr := flag.String("encoder", "", "Кодек H.264 (пусто - автоопределение)")
	qualityPtr := flag.Int("quality", 0, "Качество видео (0 - авто, x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	ttsPtr := flag.String("tts", def.TTSEngine, "Движок озвучки: google, edge")
	voicePtr := flag.String("voice", "", "Голос edge-tts (пусто - по языку)")
	timeoutPtr := flag.Duration("timeout", def.Timeout, "Таймаут HTTP-запросов")
	qrPtr := flag.Bool("qr", def.QR, "Сохранить QR-код со ссылкой на статью")
	statsPtr := flag.Bool("stats", false, "Показать отчет о производительности")

	flag.Parse()

	cfg := def
	if *configPtr != "" {
		loaded, err := config.Load(*configPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка конфигурации: %v", err)
		}
		cfg = loaded
	}

	// Явно заданные флаги перекрывают файл
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.URL = *urlPtr
		case "feed":
			cfg.Feed = *feedPtr
		case "feed-count":
			cfg.FeedCount = *feedCountPtr
		case "lang":
			cfg.Language = *langPtr
		case "max-images":
			cfg.MaxImages = *maxImagesPtr
		case "outdir":
			cfg.OutDir = *outdirPtr
		case "width":
			cfg.Width = *widthPtr
		case "height":
			cfg.Height = *heightPtr
		case "preset":
			cfg.Preset = *presetPtr
		case "fps":
			cfg.FPS = *fpsPtr
		case "workers":
			cfg.Workers = *workersPtr
		case "motion":
			cfg.Motion = *motionPtr
		case "encoder":
			cfg.VideoEncoder = *encoderPtr
		case "quality":
			cfg.Quality = *qualityPtr
		case "tts":
			cfg.TTSEngine = *ttsPtr
		case "voice":
			cfg.Voice = *voicePtr
		case "timeout":
			cfg.Timeout = *timeoutPtr
		case "qr":
			cfg.QR = *qrPtr
		case "stats":
			cfg.ShowStats = *statsPtr
		}
	})
	if cfg.URL == "" && cfg.Feed == "" && flag.NArg() > 0 {
		cfg.URL = flag.Arg(0)
	}
	cfg.BuildVersion = version
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.ApplyPreset(); err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}
	if err := system.CheckTools(); err != nil {
		log.Fatalf("[-] %v", err)
	}

	if cfg.VideoEncoder == "" {
		cfg.VideoEncoder = system.GetBestH264Encoder()
	}
	if cfg.VideoEncoder != "libx264" {
		fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", cfg.VideoEncoder)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = system.DefaultWorkers()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	project, err := newProject(ctx, cfg)
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации: %v", err)
	}

	urls := []string{cfg.URL}
	if cfg.Feed != "" {
		urls, err = extract.FeedLinks(ctx, project.Fetcher, cfg.Feed, cfg.FeedCount)
		if err != nil {
			log.Fatalf("[-] Ошибка ленты: %v", err)
		}
		fmt.Printf("[*] Статей в ленте: %d\n", len(urls))
	}

	failed := 0
	for _, u := range urls {
		cfg.URL = u
		res, err := project.Run(ctx)
		if err != nil {
			failed++
			log.Printf("[!] Ошибка проекта (%s): %v", failure.KindOf(err), err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		fmt.Printf("[+++] Успех! Результат: %s\n", res.Run.VideoPath())
	}

	if failed > 0 {
		if failed == len(urls) {
			log.Fatalf("[-] Ни одно видео не собрано")
		}
		fmt.Printf("[!] Не удалось собрать %d из %d\n", failed, len(urls))
	}
}

func newProject(ctx context.Context, cfg *config.Config) (*engine.VideoProject, error) {
	fetcher := fetch.New(cfg.Timeout)

	provider, err := tts.New(tts.EngineType(cfg.TTSEngine), tts.Options{
		Voice:   cfg.Voice,
		BaseURL: cfg.TTSURL,
		HTTP:    fetcher.HTTP,
	})
	if err != nil {
		return nil, err
	}
	motion, err := effects.ByName(cfg.Motion)
	if err != nil {
		return nil, err
	}

	asm := &video.Assembler{
		Encoder: &video.FFmpegEncoder{Codec: cfg.VideoEncoder, Quality: cfg.Quality},
		Motion:  motion,
		Pool:    system.NewImagePool(),
		Workers: cfg.Workers,
	}
	p := engine.NewVideoProject(cfg, fetcher, &extract.Extractor{Fetcher: fetcher}, &tts.Synthesizer{Provider: provider}, asm)
	p.EncoderName = cfg.VideoEncoder
	p.Motion = motion

	if cfg.Publish.Enabled() {
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		pub, err := publish.New(pctx, cfg.Publish)
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		p.Publisher = pub
		fmt.Printf("[*] Публикация в s3://%s\n", cfg.Publish.Bucket)
	}
	return p, nil
}

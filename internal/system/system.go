package system

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// InitResourceLimits поднимает лимит открытых файлов: параллельные загрузки
// и слои слайдов держат много дескрипторов одновременно.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}
	if rLimit.Cur >= 2048 {
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	} else {
		fmt.Printf("[*] Системный лимит открытых файлов увеличен до %d\n", rLimit.Cur)
	}
}

// CheckTools проверяет, что ffmpeg и ffprobe есть в PATH.
func CheckTools() error {
	var missing []string
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("не найдены в PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetAudioDuration возвращает длительность контейнера в секундах.
func GetAudioDuration(path string) (float64, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(out string) (float64, error) {
	var info probeFormat
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if info.Format.Duration == "" {
		return 0, errors.New("ffprobe reported no duration")
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(info.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", info.Format.Duration, err)
	}
	return d, nil
}

var (
	encoderOnce sync.Once
	encoderName string
)

// GetBestH264Encoder выбирает аппаратный H.264 энкодер, если ffmpeg его знает.
// Приоритеты: VideoToolbox (macOS), NVENC (NVIDIA), затем libx264.
func GetBestH264Encoder() string {
	encoderOnce.Do(func() {
		encoderName = "libx264"
		out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
		if err != nil {
			return
		}
		encoderName = pickEncoder(string(out))
	})
	return encoderName
}

func pickEncoder(list string) string {
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(list, name) {
			return name
		}
	}
	return "libx264"
}

// bytesPerWorker - грубая оценка пика на одно изображение: исходник,
// два слоя размером с кадр и буферы ресемплинга.
const bytesPerWorker = 256 << 20

// DefaultWorkers: по числу логических ядер, но не больше, чем влезает
// в доступную память.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		n = runtime.NumCPU()
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Available > 0 {
		byMem := int(vm.Available / bytesPerWorker)
		n = min(n, max(1, byMem))
	}
	return max(1, n)
}

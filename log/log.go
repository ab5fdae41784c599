package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

// SendMetrics describes one transcription request round-trip, including
// the network phase breakdown of the attempt that succeeded.
type SendMetrics struct {
	AudioLengthS float64
	RawSizeKB    float64
	TotalTimeMs  float64
	Attempts     int
	BufferSizeMS int

	ConnWaitMs float64
	TTFBMs     float64
	DownloadMs float64
	ConnReused bool
}

// CaptureMetrics describes one capture stream's lifetime totals.
type CaptureMetrics struct {
	Device       string
	Published    int64
	Dropped      int64
	LagResubs    int64
	Disconnected bool
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: MEETING_MINUTES_LOG_PATH environment variable
	envPath := os.Getenv("MEETING_MINUTES_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Send(m SendMetrics) {
	if !logReady {
		return
	}
	diagLog.Info().
		Float64("audio_s", m.AudioLengthS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("total_ms", m.TotalTimeMs).
		Int("attempts", m.Attempts).
		Int("buffer_ms", m.BufferSizeMS).
		Float64("conn_wait_ms", m.ConnWaitMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("download_ms", m.DownloadMs).
		Bool("conn_reused", m.ConnReused).
		Msg("transcription_send")
}

func Capture(m CaptureMetrics) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("device", m.Device).
		Int64("published", m.Published).
		Int64("dropped", m.Dropped).
		Int64("lag_resubs", m.LagResubs).
		Bool("disconnected", m.Disconnected).
		Msg("capture_stream")
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func SessionStart(mic, system string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("mic", mic).
		Str("system", system).
		Msg("session_start")
}

func SessionEnd(sentences int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("sentences", sentences).
		Msg("session_end")
}

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/sobiesie/meeting-minutes/audio"
	"github.com/sobiesie/meeting-minutes/log"
	"github.com/sobiesie/meeting-minutes/sentence"
	"github.com/sobiesie/meeting-minutes/session"
	"github.com/sobiesie/meeting-minutes/shutdown"
	"github.com/sobiesie/meeting-minutes/transcriber"
)

var version = "dev"

// consoleSink prints session events to stdout for terminal use.
type consoleSink struct{}

func (consoleSink) RecordingStart(mic, system string) {
	fmt.Printf("Recording: %s + %s (Ctrl+C to stop)\n", mic, system)
}

func (consoleSink) RecordingStop(sentences int) {
	fmt.Printf("Stopped. %d sentences transcribed.\n", sentences)
}

func (consoleSink) Sentence(ev sentence.Event) {
	fmt.Printf("[%s] %s\n", ev.Timestamp(), ev.Text)
}

func (consoleSink) AudioLevel(level float64) {}

func (consoleSink) SessionError(msg string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
}

func main() {
	run()
}

func run() {
	micFlag := flag.String("mic", "", `Microphone device, e.g. "USB Mic (input)" (default: system default)`)
	systemFlag := flag.String("system", "", `System audio device, e.g. "Speakers (output)" (default: system default)`)
	listFlag := flag.Bool("list", false, "List capture devices and exit")
	setupFlag := flag.Bool("setup", false, "Select devices interactively")
	serverFlag := flag.String("server", "http://127.0.0.1:8178/stream", "Transcription server URL")
	outFlag := flag.String("out", "", "Write session mixdown WAV to this path")
	flacFlag := flag.Bool("flac", false, "Also write a FLAC archive next to the WAV")
	intervalFlag := flag.Duration("interval", session.DefaultSendInterval, "How often buffered audio is sent for transcription")
	timeoutFlag := flag.Duration("timeout", sentence.DefaultTimeout, "Silence timeout that flushes a pending sentence")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("meeting-minutes %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer log.Close()

	backend, err := audio.NewBackend()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: audio backend: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	if *listFlag {
		listDevices(backend)
		os.Exit(0)
	}

	cfg := session.Config{
		SendInterval:    *intervalFlag,
		SentenceTimeout: *timeoutFlag,
		OutputPath:      *outFlag,
		ArchiveFLAC:     *flacFlag,
	}

	if *setupFlag {
		mic, err := audio.SelectDevice(backend, audio.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		system, err := audio.SelectDevice(backend, audio.Output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.Mic, cfg.System = &mic, &system
	} else {
		if *micFlag != "" {
			dev, err := audio.ParseDevice(*micFlag)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: -mic: %v\n", err)
				os.Exit(1)
			}
			cfg.Mic = &dev
		}
		if *systemFlag != "" {
			dev, err := audio.ParseDevice(*systemFlag)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: -system: %v\n", err)
				os.Exit(1)
			}
			cfg.System = &dev
		}
	}

	client := transcriber.NewHTTPClient(*serverFlag, session.DefaultTargetRate)
	s := session.New(backend, client, consoleSink{}, cfg)
	if err := s.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)
	select {
	case <-sig:
	case <-s.Done():
	}

	if err := s.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func listDevices(backend audio.Backend) {
	for _, t := range []audio.DeviceType{audio.Input, audio.Output} {
		devices, err := backend.Devices(t)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: listing %s devices: %v\n", t, err)
			continue
		}
		fmt.Printf("%s devices:\n", t)
		for _, d := range devices {
			fmt.Printf("  %s\n", d)
		}
	}
}

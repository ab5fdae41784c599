// Package session owns one recording: two capture streams, the per-stream
// chunk pipelines, the mixer, the transcription loop and the sentence
// events going to the sink. All handles live on the Session; there is no
// package-level state.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sobiesie/meeting-minutes/audio"
	"github.com/sobiesie/meeting-minutes/capture"
	"github.com/sobiesie/meeting-minutes/dsp"
	"github.com/sobiesie/meeting-minutes/encoder"
	"github.com/sobiesie/meeting-minutes/log"
	"github.com/sobiesie/meeting-minutes/sentence"
	"github.com/sobiesie/meeting-minutes/transcriber"
)

const (
	DefaultTargetRate   = 16000
	DefaultSendInterval = 30 * time.Second
	DefaultMinSend      = 2 * time.Second

	pollInterval  = 10 * time.Millisecond
	levelInterval = 500 * time.Millisecond

	// maxQueuedChunks bounds a feed's unmixed backlog while its partner
	// stalls. 50 chunks of 0.1s is 5s of audio; anything older is stale
	// real-time capture and gets dropped, same as a lagged subscription.
	maxQueuedChunks = 50
)

// Config selects the devices and tuning for one recording session. Nil
// devices resolve to the backend defaults at Start.
type Config struct {
	Mic    *audio.Device
	System *audio.Device

	TargetRate      int
	SendInterval    time.Duration
	MinSend         time.Duration
	SentenceTimeout time.Duration
	SourceLabel     string
	Mixer           dsp.MixerConfig

	// OutputPath, when set, receives the full session mixdown as float32
	// WAV at the target rate. ArchiveFLAC writes a compressed copy next
	// to it.
	OutputPath  string
	ArchiveFLAC bool
}

func (c *Config) applyDefaults() {
	if c.TargetRate == 0 {
		c.TargetRate = DefaultTargetRate
	}
	if c.SendInterval == 0 {
		c.SendInterval = DefaultSendInterval
	}
	if c.MinSend == 0 {
		c.MinSend = DefaultMinSend
	}
	if c.SourceLabel == "" {
		c.SourceLabel = "meeting"
	}
	if c.Mixer == (dsp.MixerConfig{}) {
		c.Mixer = dsp.DefaultMixerConfig()
	}
}

// Session is one active recording. Create with New, run with Start, end
// with Stop.
type Session struct {
	backend audio.Backend
	client  transcriber.Client
	sink    EventSink
	cfg     Config

	running  *capture.Flag
	mic      *capture.Stream
	system   *capture.Stream
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	started  bool

	mu        sync.Mutex
	micRaw    []float32
	sysRaw    []float32
	sentences int
}

func New(backend audio.Backend, client transcriber.Client, sink EventSink, cfg Config) *Session {
	cfg.applyDefaults()
	if sink == nil {
		sink = NopSink{}
	}
	return &Session{
		backend:  backend,
		client:   client,
		sink:     sink,
		cfg:      cfg,
		loopDone: make(chan struct{}),
	}
}

// Start resolves the devices, opens both capture streams and launches the
// processing loop.
func (s *Session) Start() error {
	if s.started {
		return fmt.Errorf("session already started")
	}

	micDev, err := s.resolveDevice(s.cfg.Mic, audio.Input)
	if err != nil {
		return err
	}
	sysDev, err := s.resolveDevice(s.cfg.System, audio.Output)
	if err != nil {
		return err
	}

	s.running = capture.NewFlag()
	s.mic, err = capture.Start(s.backend, micDev, s.running)
	if err != nil {
		return err
	}
	s.system, err = capture.Start(s.backend, sysDev, s.running)
	if err != nil {
		s.mic.Stop()
		return err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.started = true

	log.SessionStart(micDev.String(), sysDev.String())
	s.sink.RecordingStart(micDev.String(), sysDev.String())

	go s.loop()
	return nil
}

func (s *Session) resolveDevice(dev *audio.Device, t audio.DeviceType) (audio.Device, error) {
	if dev != nil {
		return *dev, nil
	}
	d, err := s.backend.DefaultDevice(t)
	if err != nil {
		return audio.Device{}, fmt.Errorf("resolving default %s device: %w", t, err)
	}
	return d, nil
}

// Running reports whether the processing loop is still live. It goes false
// on Stop, on transcription exhaustion, and on a capture permission
// failure.
func (s *Session) Running() bool {
	return s.started && s.running.IsSet()
}

// Done closes when the processing loop exits, whether from Stop or from a
// terminal error. Stop must still be called to release the streams.
func (s *Session) Done() <-chan struct{} {
	return s.loopDone
}

// feed is one stream's consumer-side state: subscription, rate conversion
// and the queue of chunks awaiting a mix partner.
type feed struct {
	stream  *capture.Stream
	sub     *capture.Subscriber
	buf     *dsp.SampleBuffer
	chunks  [][]float32
	dropped int
}

func newFeed(stream *capture.Stream, targetRate int) *feed {
	// The stream publishes mono regardless of the device channel count;
	// the buffer only converts the rate.
	return &feed{
		stream: stream,
		sub:    stream.Subscribe(),
		buf:    dsp.NewSampleBuffer(stream.Config().SampleRate, targetRate, 1),
	}
}

// drain moves everything the subscription has buffered through the sample
// buffer. A lagged subscription is replaced rather than caught up: the
// backlog is stale real-time audio.
func (f *feed) drain() {
	if f.sub.Lagged() > 0 {
		f.stream.CountLagResub()
		f.sub.Unsubscribe()
		f.sub = f.stream.Subscribe()
	}

	for {
		raw, ok := f.sub.TryRecv()
		if !ok {
			break
		}
		if chunk, ok := f.buf.AddSamples(raw); ok {
			f.chunks = append(f.chunks, chunk)
		}
	}
	for {
		chunk, ok := f.buf.AddSamples(nil)
		if !ok {
			break
		}
		f.chunks = append(f.chunks, chunk)
	}

	if drop := len(f.chunks) - maxQueuedChunks; drop > 0 {
		if f.dropped == 0 {
			log.Warnf("%s: mix partner stalled, dropping oldest queued audio", f.stream.Device())
		}
		f.dropped += drop
		f.chunks = append(f.chunks[:0], f.chunks[drop:]...)
	}
}

// ended reports that no more chunks will arrive from this feed.
func (f *feed) ended() bool {
	return f.sub.Closed() || f.stream.Disconnected()
}

func (f *feed) pop() []float32 {
	chunk := f.chunks[0]
	f.chunks = f.chunks[1:]
	return chunk
}

func (s *Session) loop() {
	defer close(s.loopDone)

	micFeed := newFeed(s.mic, s.cfg.TargetRate)
	sysFeed := newFeed(s.system, s.cfg.TargetRate)
	mixer := dsp.NewMixer(s.cfg.Mixer)
	acc := sentence.NewAccumulator(sentence.Config{
		Source:  s.cfg.SourceLabel,
		Timeout: s.cfg.SentenceTimeout,
	})

	var transmit []float32
	minSendSamples := int(s.cfg.MinSend.Seconds() * float64(s.cfg.TargetRate))
	lastSend := time.Now()
	lastLevel := time.Now()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for s.running.IsSet() {
		<-ticker.C

		if ev, ok := acc.CheckTimeout(); ok {
			s.emit(ev)
		}

		micFeed.drain()
		sysFeed.drain()

		if micFeed.ended() && sysFeed.ended() {
			s.sink.SessionError("all capture devices disconnected")
			s.running.Clear()
			break
		}

		for len(micFeed.chunks) > 0 && len(sysFeed.chunks) > 0 {
			mic, sys := micFeed.pop(), sysFeed.pop()
			s.recordRaw(mic, sys)
			transmit = append(transmit, mixer.Mix(sys, mic)...)
		}
		// A dead partner stops producing; mix the survivor alone.
		if sysFeed.ended() {
			for len(micFeed.chunks) > 0 {
				mic := micFeed.pop()
				s.recordRaw(mic, nil)
				transmit = append(transmit, mixer.Mix(nil, mic)...)
			}
		}
		if micFeed.ended() {
			for len(sysFeed.chunks) > 0 {
				sys := sysFeed.pop()
				s.recordRaw(nil, sys)
				transmit = append(transmit, mixer.Mix(sys, nil)...)
			}
		}

		if len(transmit) > 0 && time.Since(lastLevel) >= levelInterval {
			tail := transmit
			if len(tail) > s.cfg.TargetRate/10 {
				tail = tail[len(tail)-s.cfg.TargetRate/10:]
			}
			s.sink.AudioLevel(dsp.RMS(tail))
			lastLevel = time.Now()
		}

		if time.Since(lastSend) >= s.cfg.SendInterval && len(transmit) >= minSendSamples {
			if err := s.send(acc, transmit); err != nil {
				s.sink.SessionError(transcriber.Explain(err))
				s.running.Clear()
				break
			}
			transmit = transmit[:0]
			lastSend = time.Now()
		}
	}

	// Final flush: whatever buffered audio is worth sending, then any
	// trailing partial sentence.
	if len(transmit) >= minSendSamples {
		if err := s.send(acc, transmit); err != nil {
			s.sink.SessionError(transcriber.Explain(err))
		}
	}
	if ev, ok := acc.CheckTimeout(); ok {
		s.emit(ev)
	}
}

func (s *Session) send(acc *sentence.Accumulator, samples []float32) error {
	resp, err := s.client.Transcribe(s.ctx, samples)
	if err != nil {
		return err
	}
	for _, seg := range resp.Segments {
		frag := sentence.Fragment{Text: seg.Text, Start: seg.T0, End: seg.T1}
		if ev, ok := acc.AddFragment(frag); ok {
			s.emit(ev)
		}
	}
	return nil
}

func (s *Session) emit(ev sentence.Event) {
	s.mu.Lock()
	s.sentences++
	s.mu.Unlock()
	log.TranscriptionText(ev.Timestamp() + " " + ev.Text)
	s.sink.Sentence(ev)
}

func (s *Session) recordRaw(mic, sys []float32) {
	s.mu.Lock()
	s.micRaw = append(s.micRaw, mic...)
	s.sysRaw = append(s.sysRaw, sys...)
	s.mu.Unlock()
}

// Stop ends the session: stops the loop, tears down both capture streams,
// reports the final counts and writes any configured output files.
func (s *Session) Stop() error {
	if !s.started {
		return fmt.Errorf("session not started")
	}

	s.running.Clear()
	<-s.loopDone
	s.cancel()

	s.mic.Stop()
	s.system.Stop()

	s.mu.Lock()
	sentences := s.sentences
	s.mu.Unlock()
	log.SessionEnd(sentences)
	s.sink.RecordingStop(sentences)

	return s.finalize()
}

// finalize mixes the accumulated raw streams and writes the configured
// containers.
func (s *Session) finalize() error {
	if s.cfg.OutputPath == "" {
		return nil
	}

	s.mu.Lock()
	mixed := dsp.MixSimple(s.micRaw, s.sysRaw)
	s.mu.Unlock()

	if dir := filepath.Dir(s.cfg.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	wav := encoder.NewWav(s.cfg.TargetRate)
	if err := encoder.Encode(wav, mixed); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := os.WriteFile(s.cfg.OutputPath, wav.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.cfg.OutputPath, err)
	}
	log.Info(fmt.Sprintf("wrote %s (%d frames)", s.cfg.OutputPath, wav.TotalFrames()))

	if s.cfg.ArchiveFLAC {
		flacPath := strings.TrimSuffix(s.cfg.OutputPath, filepath.Ext(s.cfg.OutputPath)) + ".flac"
		fe, err := encoder.NewFlac(s.cfg.TargetRate)
		if err != nil {
			return err
		}
		if err := encoder.Encode(fe, mixed); err != nil {
			return fmt.Errorf("encoding flac: %w", err)
		}
		if err := os.WriteFile(flacPath, fe.Bytes(), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", flacPath, err)
		}
		log.Info(fmt.Sprintf("wrote %s", flacPath))
	}
	return nil
}

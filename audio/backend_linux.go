//go:build linux

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
)

// PulseAudio exposes system-output capture as "monitor" sources, so the
// output capability maps to monitor sources and the input capability to
// everything else.
const pulseSampleRate = 48000

type pulseBackend struct {
	client *pulse.Client
}

func NewBackend() (Backend, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseBackend{client: c}, nil
}

func isMonitorSource(name string) bool {
	return strings.Contains(strings.ToLower(name), "monitor")
}

func (b *pulseBackend) Devices(t DeviceType) ([]Device, error) {
	sources, err := b.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	var devices []Device
	for _, s := range sources {
		if isMonitorSource(s.Name()) == (t == Output) {
			devices = append(devices, Device{Name: s.Name(), Type: t})
		}
	}
	return devices, nil
}

func (b *pulseBackend) DefaultDevice(t DeviceType) (Device, error) {
	devices, err := b.Devices(t)
	if err != nil {
		return Device{}, err
	}
	if len(devices) == 0 {
		return Device{}, fmt.Errorf("%w: no default %s device", ErrDeviceNotFound, t)
	}
	return devices[0], nil
}

func (b *pulseBackend) Open(dev Device) (RawStream, error) {
	sources, err := b.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	var source *pulse.Source
	for _, s := range sources {
		if s.Name() == dev.Name {
			source = s
			break
		}
	}
	if source == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, dev)
	}

	return &pulseStream{
		client: b.client,
		source: source,
		config: StreamConfig{
			SampleRate: pulseSampleRate,
			Channels:   1,
			Format:     FormatF32,
		},
	}, nil
}

func (b *pulseBackend) Close() {
	b.client.Close()
}

type pulseStream struct {
	client *pulse.Client
	source *pulse.Source
	config StreamConfig
	data   atomic.Pointer[DataCallback]
	errCb  atomic.Pointer[ErrorCallback]

	mu     sync.Mutex
	stream *pulse.RecordStream
	stop   chan struct{}
	done   chan struct{}
}

func (s *pulseStream) Config() StreamConfig { return s.config }

func (s *pulseStream) SetCallbacks(data DataCallback, errCb ErrorCallback) {
	s.data.Store(&data)
	s.errCb.Store(&errCb)
}

func (s *pulseStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	writer := pulse.Float32Writer(func(buf []float32) (int, error) {
		if len(buf) == 0 {
			return 0, nil
		}
		cb := s.data.Load()
		if cb == nil {
			return len(buf), nil
		}
		data := make([]byte, len(buf)*4)
		for i, v := range buf {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
		}
		(*cb)(data, uint32(len(buf)))
		return len(buf), nil
	})

	stream, err := s.client.NewRecord(writer,
		pulse.RecordMono,
		pulse.RecordSampleRate(pulseSampleRate),
		pulse.RecordLatency(0.05),
		pulse.RecordSource(s.source),
	)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}

	s.stream = stream
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		stream.Start()
		<-s.stop
		stream.Stop()
		stream.Close()
	}()

	return nil
}

func (s *pulseStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

func (s *pulseStream) Close() {
	s.Stop()
}

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// FakeBackend is a scriptable in-memory backend for tests. Streams deliver
// whatever the test pushes and surface whatever errors the test injects,
// from the caller's goroutine, standing in for the hardware thread.
type FakeBackend struct {
	mu      sync.Mutex
	devices []Device
	configs map[string]StreamConfig
	streams []*FakeStream
	openErr error
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{configs: make(map[string]StreamConfig)}
}

func (b *FakeBackend) AddDevice(dev Device, cfg StreamConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = append(b.devices, dev)
	b.configs[dev.String()] = cfg
}

// FailOpen makes every subsequent Open return err.
func (b *FakeBackend) FailOpen(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

func (b *FakeBackend) Devices(t DeviceType) ([]Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Device
	for _, d := range b.devices {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out, nil
}

func (b *FakeBackend) DefaultDevice(t DeviceType) (Device, error) {
	devices, _ := b.Devices(t)
	if len(devices) == 0 {
		return Device{}, fmt.Errorf("%w: no default %s device", ErrDeviceNotFound, t)
	}
	return devices[0], nil
}

func (b *FakeBackend) Open(dev Device) (RawStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	cfg, ok := b.configs[dev.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, dev)
	}
	s := &FakeStream{config: cfg}
	b.streams = append(b.streams, s)
	return s, nil
}

// Streams returns every stream opened so far, in open order.
func (b *FakeBackend) Streams() []*FakeStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*FakeStream(nil), b.streams...)
}

func (b *FakeBackend) Close() {}

type FakeStream struct {
	config StreamConfig

	mu      sync.Mutex
	data    DataCallback
	errCb   ErrorCallback
	started bool
	stopped bool
	closed  bool
}

func (s *FakeStream) Config() StreamConfig { return s.config }

func (s *FakeStream) SetCallbacks(data DataCallback, errCb ErrorCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.errCb = errCb
}

func (s *FakeStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *FakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *FakeStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *FakeStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *FakeStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Push delivers raw bytes through the data callback as one hardware batch.
func (s *FakeStream) Push(data []byte, frames uint32) {
	s.mu.Lock()
	cb := s.data
	running := s.started && !s.stopped
	s.mu.Unlock()
	if cb != nil && running {
		cb(data, frames)
	}
}

// PushSamples encodes float32 samples in the stream's native format and
// delivers them as one batch.
func (s *FakeStream) PushSamples(samples []float32) {
	width := s.config.Format.BytesPerSample()
	data := make([]byte, len(samples)*width)
	for i, v := range samples {
		switch s.config.Format {
		case FormatF32:
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
		case FormatI32:
			binary.LittleEndian.PutUint32(data[i*4:], uint32(int32(v*float32(math.MaxInt32))))
		case FormatI16:
			binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v*32767)))
		case FormatI8:
			data[i] = byte(int8(v * 127))
		}
	}
	s.Push(data, uint32(len(samples)/s.config.Channels))
}

// Fail delivers err through the error callback.
func (s *FakeStream) Fail(err error) {
	s.mu.Lock()
	cb := s.errCb
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

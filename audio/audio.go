package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidDeviceName = errors.New("device type (input/output) not specified in the name")
	ErrDeviceNotFound    = errors.New("audio device not found")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	ErrDeviceLost        = errors.New("audio device is no longer available")
	ErrPermissionDenied  = errors.New("access to audio device denied")
)

// SampleFormat is the native encoding a device delivers samples in.
// Anything outside these four is rejected before a capture stream starts.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatF32
	FormatI32
	FormatI16
	FormatI8
)

func (f SampleFormat) String() string {
	switch f {
	case FormatF32:
		return "f32"
	case FormatI32:
		return "i32"
	case FormatI16:
		return "i16"
	case FormatI8:
		return "i8"
	}
	return "unknown"
}

// BytesPerSample returns the width of one sample, or 0 for unknown formats.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatF32, FormatI32:
		return 4
	case FormatI16:
		return 2
	case FormatI8:
		return 1
	}
	return 0
}

// StreamConfig is a device's native configuration as reported by the backend.
type StreamConfig struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
}

// DataCallback receives raw interleaved sample bytes. It is invoked on a
// thread owned by the audio backend and must not block.
type DataCallback func(data []byte, frames uint32)

// ErrorCallback receives asynchronous stream errors. Device loss and
// permission failures are reported wrapped in ErrDeviceLost and
// ErrPermissionDenied respectively.
type ErrorCallback func(err error)

// Backend enumerates devices for the {input, output-loopback} capability set
// and opens raw streams on them. Platform backends are interchangeable;
// nothing above this interface branches on platform.
type Backend interface {
	Devices(t DeviceType) ([]Device, error)
	DefaultDevice(t DeviceType) (Device, error)
	Open(dev Device) (RawStream, error)
	Close()
}

// RawStream is one open hardware stream. Callbacks must be set before Start.
type RawStream interface {
	Config() StreamConfig
	SetCallbacks(data DataCallback, errCb ErrorCallback)
	Start() error
	Stop()
	Close()
}

// DecodeSamples converts raw interleaved bytes into float32 samples in
// [-1, 1]. The sample count is frames * channels; short buffers decode as
// many whole samples as are present.
func DecodeSamples(data []byte, cfg StreamConfig) ([]float32, error) {
	width := cfg.Format.BytesPerSample()
	if width == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Format)
	}

	n := len(data) / width
	out := make([]float32, n)
	switch cfg.Format {
	case FormatF32:
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case FormatI32:
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(data[i*4:]))
			out[i] = float32(v) / float32(math.MaxInt32)
		}
	case FormatI16:
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(data[i*2:]))
			out[i] = float32(v) / 32768.0
		}
	case FormatI8:
		for i := 0; i < n; i++ {
			out[i] = float32(int8(data[i])) / 128.0
		}
	}
	return out, nil
}

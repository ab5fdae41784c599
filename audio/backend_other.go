//go:build !linux

package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoBackend struct {
	ctx *malgo.AllocatedContext
}

func NewBackend() (Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init: %w", err)
	}
	return &malgoBackend{ctx: ctx}, nil
}

func (b *malgoBackend) Devices(t DeviceType) ([]Device, error) {
	infos, err := b.enumerate(t)
	if err != nil {
		return nil, err
	}
	var devices []Device
	for _, info := range infos {
		devices = append(devices, Device{Name: info.Name(), Type: t})
	}
	return devices, nil
}

func (b *malgoBackend) DefaultDevice(t DeviceType) (Device, error) {
	infos, err := b.enumerate(t)
	if err != nil {
		return Device{}, err
	}
	if len(infos) == 0 {
		return Device{}, fmt.Errorf("%w: no default %s device", ErrDeviceNotFound, t)
	}
	for _, info := range infos {
		if info.IsDefault != 0 {
			return Device{Name: info.Name(), Type: t}, nil
		}
	}
	return Device{Name: infos[0].Name(), Type: t}, nil
}

// enumerate maps the capability set onto malgo device classes: inputs are
// capture devices, outputs are playback devices (opened in loopback mode).
func (b *malgoBackend) enumerate(t DeviceType) ([]malgo.DeviceInfo, error) {
	class := malgo.Capture
	if t == Output {
		class = malgo.Playback
	}
	infos, err := b.ctx.Devices(class)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	return infos, nil
}

func (b *malgoBackend) Open(dev Device) (RawStream, error) {
	infos, err := b.enumerate(dev.Type)
	if err != nil {
		return nil, err
	}
	var id *malgo.DeviceID
	for i := range infos {
		if infos[i].Name() == dev.Name {
			id = &infos[i].ID
			break
		}
	}
	if id == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, dev)
	}

	class := malgo.Capture
	if dev.Type == Output {
		class = malgo.Loopback
	}
	deviceConfig := malgo.DefaultDeviceConfig(class)
	deviceConfig.Capture.Format = malgo.FormatUnknown // use the device's native format
	deviceConfig.Capture.DeviceID = id.Pointer()

	s := &malgoStream{}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			if cb := s.data.Load(); cb != nil {
				(*cb)(data, frameCount)
			}
		},
		Stop: func() {
			if s.stopping.Load() {
				return
			}
			if cb := s.errCb.Load(); cb != nil {
				(*cb)(fmt.Errorf("%w: %s", ErrDeviceLost, dev))
			}
		},
	}

	d, err := malgo.InitDevice(b.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("malgo device init: %w", err)
	}

	format, err := fromMalgoFormat(d.CaptureFormat())
	if err != nil {
		d.Uninit()
		return nil, err
	}
	s.device = d
	s.config = StreamConfig{
		SampleRate: int(d.SampleRate()),
		Channels:   int(d.CaptureChannels()),
		Format:     format,
	}
	return s, nil
}

func (b *malgoBackend) Close() {
	b.ctx.Uninit()
	b.ctx.Free()
}

type malgoStream struct {
	device   *malgo.Device
	config   StreamConfig
	data     atomic.Pointer[DataCallback]
	errCb    atomic.Pointer[ErrorCallback]
	stopping atomic.Bool
	stopOnce sync.Once
}

func (s *malgoStream) Config() StreamConfig { return s.config }

func (s *malgoStream) SetCallbacks(data DataCallback, errCb ErrorCallback) {
	s.data.Store(&data)
	s.errCb.Store(&errCb)
}

func (s *malgoStream) Start() error {
	return s.device.Start()
}

func (s *malgoStream) Stop() {
	s.stopping.Store(true)
	s.stopOnce.Do(func() { s.device.Stop() })
}

func (s *malgoStream) Close() {
	s.stopping.Store(true)
	s.device.Uninit()
}

func fromMalgoFormat(f malgo.FormatType) (SampleFormat, error) {
	switch f {
	case malgo.FormatF32:
		return FormatF32, nil
	case malgo.FormatS32:
		return FormatI32, nil
	case malgo.FormatS16:
		return FormatI16, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: malgo format %d", ErrUnsupportedFormat, f)
	}
}

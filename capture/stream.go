package capture

import (
	"errors"
	"fmt"
	"sync/atomic"
	"weak"

	"github.com/sobiesie/meeting-minutes/audio"
	"github.com/sobiesie/meeting-minutes/dsp"
	"github.com/sobiesie/meeting-minutes/log"
)

// Flag is the session-wide running indicator. The orchestration loop polls
// it; a capture stream's error callback may clear it through a weak
// reference that never extends the owner's lifetime.
type Flag struct {
	v atomic.Bool
}

func NewFlag() *Flag {
	f := &Flag{}
	f.v.Store(true)
	return f
}

func (f *Flag) Set()        { f.v.Store(true) }
func (f *Flag) Clear()      { f.v.Store(false) }
func (f *Flag) IsSet() bool { return f.v.Load() }

type stopRequest struct {
	ack chan struct{}
}

// Stream is one active capture on a device: a dedicated goroutine owning
// the hardware stream, a fan-out of normalized mono chunks, and a
// disconnect marker. Create with Start, end with Stop.
type Stream struct {
	device audio.Device
	config audio.StreamConfig
	raw    audio.RawStream
	bc     *Broadcaster

	control      chan stopRequest
	done         chan struct{}
	disconnected atomic.Bool
	published    atomic.Int64
	lagResubs    atomic.Int64
}

// Start opens the device, validates its native format, begins capture and
// spawns the stream's goroutine. running is held weakly: a permission
// failure clears it if its owner is still alive, and is a no-op otherwise.
func Start(backend audio.Backend, dev audio.Device, running *Flag) (*Stream, error) {
	raw, err := backend.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dev, err)
	}

	cfg := raw.Config()
	if cfg.Format.BytesPerSample() == 0 {
		raw.Close()
		return nil, fmt.Errorf("%s: %w: %s", dev, audio.ErrUnsupportedFormat, cfg.Format)
	}

	s := &Stream{
		device:  dev,
		config:  cfg,
		raw:     raw,
		bc:      NewBroadcaster(),
		control: make(chan stopRequest, 1),
		done:    make(chan struct{}),
	}

	flagRef := weak.Make(running)
	raw.SetCallbacks(
		func(data []byte, frames uint32) {
			samples, err := audio.DecodeSamples(data, cfg)
			if err != nil {
				log.Errorf("%s: decode: %v", dev, err)
				return
			}
			mono := dsp.ToMono(samples, cfg.Channels)
			dsp.Normalize(mono)
			s.bc.Publish(mono)
			s.published.Add(1)
		},
		func(err error) {
			switch {
			case errors.Is(err, audio.ErrDeviceLost):
				log.Warnf("%s: device lost, stopping stream", dev)
				s.disconnected.Store(true)
				s.requestStop()
			case errors.Is(err, audio.ErrPermissionDenied):
				log.Errorf("%s: %v", dev, err)
				if f := flagRef.Value(); f != nil {
					f.Clear()
				}
			default:
				log.Errorf("%s: stream error: %v", dev, err)
			}
		},
	)

	if err := raw.Start(); err != nil {
		raw.Close()
		s.bc.Close()
		return nil, fmt.Errorf("starting %s: %w", dev, err)
	}

	go s.run()
	return s, nil
}

func (s *Stream) run() {
	defer close(s.done)

	req := <-s.control
	s.raw.Stop()
	s.raw.Close()
	s.bc.Close()
	if req.ack != nil {
		close(req.ack)
	}
}

// requestStop enqueues an internal shutdown without waiting for it. A
// pending request means shutdown is already underway.
func (s *Stream) requestStop() {
	select {
	case s.control <- stopRequest{}:
	default:
	}
}

// Subscribe returns a fresh chunk receiver for this stream.
func (s *Stream) Subscribe() *Subscriber {
	return s.bc.Subscribe()
}

// Config returns the device's native configuration.
func (s *Stream) Config() audio.StreamConfig { return s.config }

// Device returns the captured device.
func (s *Stream) Device() audio.Device { return s.device }

// Disconnected reports whether the device vanished mid-stream.
func (s *Stream) Disconnected() bool { return s.disconnected.Load() }

// CountLagResub records one consumer resubscription after lag, for the
// stream's closing metrics.
func (s *Stream) CountLagResub() { s.lagResubs.Add(1) }

// Stop requests shutdown, waits for the hardware teardown acknowledgment
// and joins the stream goroutine. Safe to race with an in-flight
// disconnect; the second arrival observes a no-op. Must not be called from
// the stream's own callbacks.
func (s *Stream) Stop() {
	ack := make(chan struct{})
	select {
	case s.control <- stopRequest{ack: ack}:
		select {
		case <-ack:
		case <-s.done:
		}
	case <-s.done:
	}
	<-s.done

	log.Capture(log.CaptureMetrics{
		Device:       s.device.String(),
		Published:    s.published.Load(),
		Dropped:      s.bc.Dropped(),
		LagResubs:    s.lagResubs.Load(),
		Disconnected: s.disconnected.Load(),
	})
}

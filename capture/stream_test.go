package capture

import (
	"errors"
	"testing"

	"github.com/sobiesie/meeting-minutes/audio"
	"github.com/sobiesie/meeting-minutes/dsp"
)

func fakeMic(t *testing.T, cfg audio.StreamConfig) (*audio.FakeBackend, audio.Device) {
	t.Helper()
	b := audio.NewFakeBackend()
	dev := audio.NewDevice("fake mic", audio.Input)
	b.AddDevice(dev, cfg)
	return b, dev
}

func TestStartUnsupportedFormat(t *testing.T) {
	b, dev := fakeMic(t, audio.StreamConfig{SampleRate: 48000, Channels: 1, Format: audio.FormatUnknown})

	_, err := Start(b, dev, NewFlag())
	if !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if !b.Streams()[0].Closed() {
		t.Error("raw stream not released after failed start")
	}
}

func TestStartUnknownDevice(t *testing.T) {
	b := audio.NewFakeBackend()
	_, err := Start(b, audio.NewDevice("ghost", audio.Input), NewFlag())
	if !errors.Is(err, audio.ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestStreamDelivery(t *testing.T) {
	b, dev := fakeMic(t, audio.StreamConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatF32})

	s, err := Start(b, dev, NewFlag())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	sub := s.Subscribe()

	// Interleaved stereo: every frame averages to 0.3.
	in := make([]float32, 960)
	for i := 0; i < len(in); i += 2 {
		in[i] = 0.2
		in[i+1] = 0.4
	}
	b.Streams()[0].PushSamples(in)

	chunk, ok := sub.TryRecv()
	if !ok {
		t.Fatal("no chunk delivered")
	}
	if len(chunk) != 480 {
		t.Fatalf("chunk len = %d, want 480 mono frames", len(chunk))
	}
	// Constant input: mono mix is uniform, and normalization keeps the
	// level at or below its peak target.
	for i := 1; i < len(chunk); i++ {
		if chunk[i] != chunk[0] {
			t.Fatalf("sample %d = %v, want uniform %v", i, chunk[i], chunk[0])
		}
	}
	if rms := dsp.RMS(chunk); rms > 0.95 {
		t.Errorf("rms = %v after normalization", rms)
	}
}

func TestStreamStop(t *testing.T) {
	b, dev := fakeMic(t, audio.StreamConfig{SampleRate: 48000, Channels: 1, Format: audio.FormatF32})

	s, err := Start(b, dev, NewFlag())
	if err != nil {
		t.Fatal(err)
	}
	sub := s.Subscribe()

	s.Stop()

	fs := b.Streams()[0]
	if !fs.Stopped() || !fs.Closed() {
		t.Error("hardware stream not released on Stop")
	}
	if _, ok := sub.Recv(); ok {
		t.Error("subscription still open after Stop")
	}
}

func TestStreamDisconnect(t *testing.T) {
	b, dev := fakeMic(t, audio.StreamConfig{SampleRate: 48000, Channels: 1, Format: audio.FormatF32})

	s, err := Start(b, dev, NewFlag())
	if err != nil {
		t.Fatal(err)
	}
	sub := s.Subscribe()

	b.Streams()[0].Fail(audio.ErrDeviceLost)

	// The stream tears itself down; the blocked receive ends when the
	// fan-out closes.
	if _, ok := sub.Recv(); ok {
		t.Fatal("unexpected chunk while waiting for disconnect teardown")
	}

	if !s.Disconnected() {
		t.Error("Disconnected() = false after device loss")
	}

	// Racing an explicit Stop against the completed disconnect shutdown
	// is a no-op.
	s.Stop()
}

func TestStreamPermissionDenied(t *testing.T) {
	b, dev := fakeMic(t, audio.StreamConfig{SampleRate: 48000, Channels: 1, Format: audio.FormatF32})

	running := NewFlag()
	s, err := Start(b, dev, running)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	b.Streams()[0].Fail(audio.ErrPermissionDenied)

	if running.IsSet() {
		t.Error("running flag still set after permission denial")
	}
	if s.Disconnected() {
		t.Error("permission denial should not mark the stream disconnected")
	}
}

func TestStreamGenericError(t *testing.T) {
	b, dev := fakeMic(t, audio.StreamConfig{SampleRate: 48000, Channels: 1, Format: audio.FormatF32})

	running := NewFlag()
	s, err := Start(b, dev, running)
	if err != nil {
		t.Fatal(err)
	}

	b.Streams()[0].Fail(errors.New("transient xrun"))

	// Logged only: stream keeps running.
	if !running.IsSet() || s.Disconnected() {
		t.Error("generic error changed stream state")
	}
	sub := s.Subscribe()
	b.Streams()[0].PushSamples(make([]float32, 480))
	if _, ok := sub.TryRecv(); !ok {
		t.Error("stream stopped delivering after generic error")
	}

	s.Stop()
}

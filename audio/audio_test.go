package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestDecodeSamplesF32(t *testing.T) {
	want := []float32{0, 0.5, -0.5, 1, -1}
	data := make([]byte, len(want)*4)
	for i, v := range want {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}

	got, err := DecodeSamples(data, StreamConfig{SampleRate: 48000, Channels: 1, Format: FormatF32})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeSamplesInt(t *testing.T) {
	t.Run("i16", func(t *testing.T) {
		data := make([]byte, 6)
		binary.LittleEndian.PutUint16(data[0:], uint16(int16(16384)))
		minI16 := int16(-32768)
		binary.LittleEndian.PutUint16(data[2:], uint16(minI16))
		binary.LittleEndian.PutUint16(data[4:], 0)

		got, err := DecodeSamples(data, StreamConfig{Format: FormatI16})
		if err != nil {
			t.Fatal(err)
		}
		want := []float32{0.5, -1, 0}
		for i := range want {
			if math.Abs(float64(got[i]-want[i])) > 1e-6 {
				t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("i32", func(t *testing.T) {
		data := make([]byte, 8)
		binary.LittleEndian.PutUint32(data[0:], uint32(int32(math.MaxInt32)))
		binary.LittleEndian.PutUint32(data[4:], uint32(int32(math.MaxInt32/2)))

		got, err := DecodeSamples(data, StreamConfig{Format: FormatI32})
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(float64(got[0]-1)) > 1e-6 || math.Abs(float64(got[1]-0.5)) > 1e-6 {
			t.Errorf("got %v, want [1 0.5]", got)
		}
	})

	t.Run("i8", func(t *testing.T) {
		minI8 := int8(-128)
		got, err := DecodeSamples([]byte{byte(minI8), byte(int8(64))}, StreamConfig{Format: FormatI8})
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != -1 || got[1] != 0.5 {
			t.Errorf("got %v, want [-1 0.5]", got)
		}
	})
}

func TestDecodeSamplesUnsupported(t *testing.T) {
	_, err := DecodeSamples([]byte{0, 0}, StreamConfig{Format: FormatUnknown})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFakeStreamDelivery(t *testing.T) {
	b := NewFakeBackend()
	dev := NewDevice("fake mic", Input)
	b.AddDevice(dev, StreamConfig{SampleRate: 48000, Channels: 1, Format: FormatF32})

	raw, err := b.Open(dev)
	if err != nil {
		t.Fatal(err)
	}

	var got []float32
	raw.SetCallbacks(func(data []byte, frames uint32) {
		samples, err := DecodeSamples(data, raw.Config())
		if err != nil {
			t.Errorf("decode: %v", err)
		}
		got = append(got, samples...)
	}, nil)

	fs := raw.(*FakeStream)
	fs.PushSamples([]float32{0.25, -0.25}) // before Start: dropped

	if err := raw.Start(); err != nil {
		t.Fatal(err)
	}
	fs.PushSamples([]float32{0.25, -0.25})

	if len(got) != 2 || got[0] != 0.25 || got[1] != -0.25 {
		t.Errorf("got %v, want [0.25 -0.25]", got)
	}
}

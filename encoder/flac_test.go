package encoder

import (
	"math"
	"testing"
)

func TestFlacEncoder(t *testing.T) {
	// One second of 440Hz tone at 16kHz.
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	enc, err := NewFlac(16000)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := Encode(enc, samples); err != nil {
		t.Fatal(err)
	}

	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}

	flacData := enc.Bytes()
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}

	rawSize := len(samples) * 4
	t.Logf("Raw: %d bytes, FLAC: %d bytes (%.1f%% compression)",
		rawSize, len(flacData), (1-float64(len(flacData))/float64(rawSize))*100)
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac(16000)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected stream header bytes for empty input")
	}
}

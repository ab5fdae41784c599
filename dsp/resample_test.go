package dsp

import (
	"math"
	"testing"
)

func TestResamplerPassthrough(t *testing.T) {
	r := NewResampler(16000, 16000)
	in := []float32{0.1, -0.2, 0.3}
	out := r.Process(in)
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestResamplerRatio(t *testing.T) {
	r := NewResampler(48000, 16000)

	total := 0
	for i := 0; i < 100; i++ {
		total += len(r.Process(make([]float32, 480)))
	}
	total += len(r.Flush())

	// 48000 input samples at a 1:3 ratio.
	if total != 16000 {
		t.Errorf("output %d samples for 48000 in, want 16000", total)
	}
}

func TestResamplerDownsamplesTone(t *testing.T) {
	r := NewResampler(48000, 16000)

	const freq = 440.0
	in := make([]float32, 48000)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / 48000))
	}

	out := r.Process(in)
	if len(out) == 0 {
		t.Fatal("no output")
	}

	// Skip the first block edge and compare against the ideal 440Hz tone
	// at 16kHz. Block-FFT conversion is not phase-perfect at boundaries,
	// so check correlation rather than per-sample equality.
	var dot, normA, normB float64
	for i := 2048; i < len(out)-2048; i++ {
		want := math.Sin(2 * math.Pi * freq * float64(i) / 16000)
		got := float64(out[i])
		dot += want * got
		normA += want * want
		normB += got * got
	}
	corr := dot / math.Sqrt(normA*normB)
	if corr < 0.95 {
		t.Errorf("correlation with ideal tone = %v, want >= 0.95", corr)
	}
}

func TestResamplerUpsamples(t *testing.T) {
	r := NewResampler(16000, 48000)
	out := r.Process(make([]float32, 4000))
	out = append(out, r.Flush()...)
	if len(out) != 12000 {
		t.Errorf("output %d samples for 4000 in at 1:3, want 12000", len(out))
	}
}

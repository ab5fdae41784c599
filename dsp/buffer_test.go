package dsp

import (
	"math"
	"testing"
)

func TestSampleBufferEmissionCadence(t *testing.T) {
	// 48kHz in and out: chunk 4800, overlap 1200, drain 3600 per chunk.
	b := NewSampleBuffer(48000, 48000, 1)
	if b.ChunkSize() != 4800 {
		t.Fatalf("ChunkSize = %d, want 4800", b.ChunkSize())
	}
	if b.Overlap() != 1200 {
		t.Fatalf("Overlap = %d, want 1200", b.Overlap())
	}

	push := make([]float32, 4800)
	chunk, ok := b.AddSamples(push)
	if !ok {
		t.Fatal("no chunk after first full push")
	}
	if len(chunk) != 4800 {
		t.Fatalf("chunk len = %d, want 4800", len(chunk))
	}

	// 1200 carried over; the next chunk needs 3600 more samples.
	if _, ok := b.AddSamples(make([]float32, 3599)); ok {
		t.Fatal("chunk emitted one sample early")
	}
	if _, ok := b.AddSamples(make([]float32, 1)); !ok {
		t.Fatal("no chunk at exactly 3600 additional samples")
	}
}

func TestSampleBufferEmissionCount(t *testing.T) {
	b := NewSampleBuffer(48000, 48000, 1)

	total := 0
	emitted := 0
	for total < 48000 {
		_, ok := b.AddSamples(make([]float32, 480))
		if ok {
			emitted++
		}
		total += 480
	}

	// First chunk consumes chunkSize, every later one chunkSize-overlap.
	want := 1 + (total-b.ChunkSize())/(b.ChunkSize()-b.Overlap())
	if emitted != want {
		t.Errorf("emitted %d chunks for %d samples, want %d", emitted, total, want)
	}
}

func TestSampleBufferCrossfadeRoundTrip(t *testing.T) {
	b := NewSampleBuffer(48000, 48000, 1)

	signal := make([]float32, 3*b.ChunkSize())
	for i := range signal {
		signal[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 48000))
	}

	var chunks [][]float32
	for off := 0; off+b.ChunkSize() <= len(signal); off += b.ChunkSize() {
		if chunk, ok := b.AddSamples(signal[off : off+b.ChunkSize()]); ok {
			chunks = append(chunks, chunk)
		}
		for {
			chunk, ok := b.AddSamples(nil)
			if !ok {
				break
			}
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, need 3", len(chunks))
	}

	// The tail of chunk k blends the retained overlap with samples that
	// reappear unfaded at the head of chunk k+1; the retained overlap is
	// chunk k's own unblended head. Inverting the fade weights must
	// recover it.
	fresh := b.ChunkSize() - b.Overlap()
	cur, next := chunks[1], chunks[2]
	// Past the midpoint 1-fade vanishes and the inversion is numerically
	// meaningless in float32, so check the front half.
	for i := 1; i < b.Overlap()/2; i++ {
		fade := float32(0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(b.Overlap()))))
		recovered := (cur[fresh+i] - next[i]*fade) / (1 - fade)
		if math.Abs(float64(recovered-cur[i])) > 1e-3 {
			t.Fatalf("overlap sample %d: recovered %v, want %v", i, recovered, cur[i])
		}
	}
}

func TestSampleBufferStereoInput(t *testing.T) {
	b := NewSampleBuffer(48000, 48000, 2)

	// 9600 interleaved stereo samples = 4800 mono frames = one chunk.
	chunk, ok := b.AddSamples(make([]float32, 9600))
	if !ok {
		t.Fatal("no chunk from one chunk's worth of stereo frames")
	}
	if len(chunk) != 4800 {
		t.Errorf("chunk len = %d, want 4800", len(chunk))
	}
}

func TestSampleBufferResampling(t *testing.T) {
	// 48k -> 16k: chunk 1600 at the target rate.
	b := NewSampleBuffer(48000, 16000, 1)
	if b.ChunkSize() != 1600 {
		t.Fatalf("ChunkSize = %d, want 1600", b.ChunkSize())
	}

	emitted := 0
	for i := 0; i < 20; i++ {
		if _, ok := b.AddSamples(make([]float32, 4800)); ok {
			emitted++
		}
		for {
			if _, ok := b.AddSamples(nil); !ok {
				break
			}
			emitted++
		}
	}
	// 96000 input samples -> ~32000 resampled; the first chunk takes
	// 1600, each later chunk 1200, minus whatever the resampler still
	// buffers internally.
	if emitted < 25 {
		t.Errorf("emitted %d chunks from 2s of input, want >= 25", emitted)
	}
}

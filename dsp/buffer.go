package dsp

import (
	"math"
)

const (
	// DefaultChunkDuration is the length of one analysis chunk.
	DefaultChunkDuration = 0.1
	// DefaultOverlapRatio is the fraction of a chunk shared with its successor.
	DefaultOverlapRatio = 0.25
)

// SampleBuffer turns an arbitrary stream of interleaved device samples into
// fixed-size mono chunks at the target rate, with consecutive chunks joined
// by a raised-cosine crossfade over the overlap region. Single-owner, not
// safe for concurrent use.
type SampleBuffer struct {
	channels  int
	chunkSize int
	overlap   int

	res     *Resampler
	carry   []float32
	fade    []float32
	overBuf []float32
}

// NewSampleBuffer returns a buffer consuming samples at sourceRate with the
// given channel count and emitting mono chunks at targetRate. Chunk size is
// DefaultChunkDuration at the target rate; the overlap is
// DefaultOverlapRatio of the chunk.
func NewSampleBuffer(sourceRate, targetRate, channels int) *SampleBuffer {
	chunkSize := int(DefaultChunkDuration * float64(targetRate))
	overlap := int(float64(chunkSize) * DefaultOverlapRatio)

	b := &SampleBuffer{
		channels:  channels,
		chunkSize: chunkSize,
		overlap:   overlap,
		res:       NewResampler(sourceRate, targetRate),
		fade:      make([]float32, overlap),
		overBuf:   make([]float32, overlap),
	}
	for i := range b.fade {
		b.fade[i] = float32(0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(overlap))))
	}
	return b
}

// ChunkSize returns the emitted chunk length in samples.
func (b *SampleBuffer) ChunkSize() int { return b.chunkSize }

// Overlap returns the number of samples shared between consecutive chunks.
func (b *SampleBuffer) Overlap() int { return b.overlap }

// AddSamples feeds interleaved device samples and returns one complete chunk
// if enough samples have accumulated. Each emission drains
// chunkSize − overlap samples; the overlap region is re-read by the next
// chunk.
func (b *SampleBuffer) AddSamples(samples []float32) ([]float32, bool) {
	mono := ToMono(samples, b.channels)
	b.carry = append(b.carry, b.res.Process(mono)...)
	return b.drain()
}

func (b *SampleBuffer) drain() ([]float32, bool) {
	if len(b.carry) < b.chunkSize {
		return nil, false
	}

	fresh := b.chunkSize - b.overlap
	chunk := make([]float32, b.chunkSize)
	copy(chunk, b.carry[:fresh])
	b.carry = b.carry[:copy(b.carry, b.carry[fresh:])]

	// Blend the previous chunk's tail into this chunk's tail region. The
	// same carry samples open the next chunk unfaded, which is what makes
	// the fade invertible.
	for i := 0; i < b.overlap; i++ {
		chunk[fresh+i] = b.overBuf[i]*(1-b.fade[i]) + b.carry[i]*b.fade[i]
	}
	copy(b.overBuf, b.carry[:b.overlap])

	return chunk, true
}

// Flush drains the resampler's buffered partial block into the carry and
// returns a final chunk if one completes. Called once at stream shutdown.
func (b *SampleBuffer) Flush() ([]float32, bool) {
	b.carry = append(b.carry, b.res.Flush()...)
	return b.drain()
}

// Pending returns the number of carried samples awaiting the next emission.
func (b *SampleBuffer) Pending() int { return len(b.carry) }

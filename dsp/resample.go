package dsp

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// Resampler converts a sample stream between two fixed rates by translating
// FFT bins between block sizes chosen from the rate ratio. Input is buffered
// and processed one full block at a time, so output arrives in bursts; Flush
// zero-pads and drains the final partial block.
type Resampler struct {
	from, to int

	inBlock  int
	outBlock int
	fwd      *fourier.FFT
	inv      *fourier.FFT

	pending []float32
	inBuf   []float64
	coeffs  []complex128
	outBuf  []float64
}

// NewResampler returns a resampler from one sample rate to another. Equal
// rates yield a pass-through.
func NewResampler(from, to int) *Resampler {
	r := &Resampler{from: from, to: to}
	if from == to {
		return r
	}

	g := gcd(from, to)
	baseIn := from / g
	baseOut := to / g

	// Scale the minimal ratio blocks up to at least 1024 input samples so
	// each FFT covers enough signal for clean bin translation.
	k := (1024 + baseIn - 1) / baseIn
	r.inBlock = k * baseIn
	r.outBlock = k * baseOut

	r.fwd = fourier.NewFFT(r.inBlock)
	r.inv = fourier.NewFFT(r.outBlock)
	r.inBuf = make([]float64, r.inBlock)
	r.coeffs = make([]complex128, r.outBlock/2+1)
	r.outBuf = make([]float64, r.outBlock)
	return r
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Ratio returns the output/input rate ratio.
func (r *Resampler) Ratio() float64 {
	return float64(r.to) / float64(r.from)
}

// Process buffers samples and returns the converted output for every
// complete block now available. The returned slice is valid until the next
// call.
func (r *Resampler) Process(samples []float32) []float32 {
	if r.from == r.to {
		return samples
	}

	r.pending = append(r.pending, samples...)

	var out []float32
	for len(r.pending) >= r.inBlock {
		out = append(out, r.convertBlock(r.pending[:r.inBlock])...)
		r.pending = r.pending[:copy(r.pending, r.pending[r.inBlock:])]
	}
	return out
}

// Flush converts any buffered partial block, zero-padded to a full block,
// and returns the proportionally trimmed tail. The resampler is reusable
// afterwards.
func (r *Resampler) Flush() []float32 {
	if r.from == r.to || len(r.pending) == 0 {
		return nil
	}

	n := len(r.pending)
	block := make([]float32, r.inBlock)
	copy(block, r.pending)
	r.pending = r.pending[:0]

	out := r.convertBlock(block)
	keep := n * r.outBlock / r.inBlock
	if keep > len(out) {
		keep = len(out)
	}
	return out[:keep]
}

func (r *Resampler) convertBlock(block []float32) []float32 {
	for i, v := range block {
		r.inBuf[i] = float64(v)
	}
	fwdCoeffs := r.fwd.Coefficients(nil, r.inBuf)

	// Copy the shared low-frequency bins; bins beyond the narrower
	// spectrum are dropped (downsampling) or left zero (upsampling).
	for i := range r.coeffs {
		r.coeffs[i] = 0
	}
	n := len(fwdCoeffs)
	if len(r.coeffs) < n {
		n = len(r.coeffs)
	}
	copy(r.coeffs[:n], fwdCoeffs[:n])

	r.inv.Sequence(r.outBuf, r.coeffs)

	out := make([]float32, r.outBlock)
	scale := 1.0 / float64(r.inBlock)
	for i, v := range r.outBuf {
		out[i] = float32(v * scale)
	}
	return out
}

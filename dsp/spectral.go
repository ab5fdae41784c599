package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	fftSize    = 1024
	minGain    = 0.3
	floorRatio = 0.1
	minWindow  = 0.01
)

// SpectralProcessor suppresses broadband noise in a chunk using windowed-FFT
// spectral attenuation. The noise floor is estimated independently per
// window from the mean bin magnitude; there is no adaptive noise profile.
// Single-owner, not safe for concurrent use.
type SpectralProcessor struct {
	fft    *fourier.FFT
	hann   []float64
	window []float64
	coeffs []complex128
	synth  []float64
}

func NewSpectralProcessor() *SpectralProcessor {
	p := &SpectralProcessor{
		fft:    fourier.NewFFT(fftSize),
		hann:   make([]float64, fftSize),
		window: make([]float64, fftSize),
		coeffs: make([]complex128, fftSize/2+1),
		synth:  make([]float64, fftSize),
	}
	for i := range p.hann {
		p.hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/fftSize))
	}
	return p
}

// Process normalizes the chunk, then attenuates noise in disjoint
// fftSize/2 blocks, each zero-padded to a full fftSize analysis window.
// Only the block-length prefix of each synthesized window is written
// back. The chunk is modified in place and returned.
func (p *SpectralProcessor) Process(chunk []float32) []float32 {
	Normalize(chunk)

	for start := 0; start < len(chunk); start += fftSize / 2 {
		end := start + fftSize/2
		if end > len(chunk) {
			end = len(chunk)
		}
		p.processWindow(chunk[start:end])
	}
	return chunk
}

func (p *SpectralProcessor) processWindow(window []float32) {
	for i := range p.window {
		if i < len(window) {
			p.window[i] = float64(window[i]) * p.hann[i]
		} else {
			p.window[i] = 0
		}
	}

	p.fft.Coefficients(p.coeffs, p.window)

	var mean float64
	for _, c := range p.coeffs {
		mean += cmplx.Abs(c)
	}
	mean /= float64(len(p.coeffs))
	floor := floorRatio * mean

	for i, c := range p.coeffs {
		mag := cmplx.Abs(c)
		gain := minGain
		if mag > floor {
			gain = math.Max(minGain, 1-0.5*math.Sqrt(floor/mag))
		}
		p.coeffs[i] = c * complex(gain, 0)
	}

	p.fft.Sequence(p.synth, p.coeffs)

	// Undo the analysis window and the unnormalized transform; the clamp
	// keeps the taper edges from exploding.
	for i := range window {
		h := math.Max(p.hann[i], minWindow)
		window[i] = float32(p.synth[i] / h / fftSize)
	}
}

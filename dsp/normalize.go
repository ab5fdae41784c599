// Package dsp holds the sample-domain processing pipeline: channel
// down-mixing, level normalization, sample-rate conversion, chunk assembly
// with overlap crossfading, spectral noise suppression and stream mixing.
// Everything operates on float32 samples in [-1, 1].
package dsp

import "math"

const (
	targetRMS    = 0.2
	targetPeak   = 0.95
	silenceFloor = 1e-6
)

// ToMono down-mixes interleaved multi-channel samples by averaging each
// frame. Mono input is returned as-is. A trailing incomplete frame is
// zero-padded before averaging.
func ToMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}

	frames := (len(samples) + channels - 1) / channels
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		start := f * channels
		end := start + channels
		if end > len(samples) {
			end = len(samples)
		}
		var sum float32
		for _, v := range samples[start:end] {
			sum += v
		}
		out[f] = sum / float32(channels)
	}
	return out
}

// Normalize scales samples in place toward an RMS of 0.2 without letting the
// peak exceed 0.95. Near-silent input (RMS or peak below 1e-6) is left
// untouched so the suppression stages downstream never amplify noise floors.
func Normalize(samples []float32) {
	if len(samples) == 0 {
		return
	}

	var sumSq float64
	var peak float64
	for _, v := range samples {
		sumSq += float64(v) * float64(v)
		if a := math.Abs(float64(v)); a > peak {
			peak = a
		}
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))

	if rms < silenceFloor || peak < silenceFloor {
		return
	}

	scale := math.Min(targetRMS/rms, targetPeak/peak)
	for i := range samples {
		samples[i] *= float32(scale)
	}
}

// RMS returns the root-mean-square level of samples, 0 for empty input.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range samples {
		sumSq += float64(v) * float64(v)
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

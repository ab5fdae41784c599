package dsp

import "math"

// MixerConfig carries the stream weights applied when combining system and
// microphone chunks.
type MixerConfig struct {
	SystemGain     float32
	MicGain        float32
	MicAttenuation float32
}

// DefaultMixerConfig weights the microphone over system playback, with the
// fixed attenuation that keeps close-mic speech from dominating the mix.
func DefaultMixerConfig() MixerConfig {
	return MixerConfig{SystemGain: 0.3, MicGain: 0.7, MicAttenuation: 0.8}
}

// Mixer combines a system-audio chunk and a microphone chunk into one
// buffer. System audio is only normalized (spectral processing would
// distort music and playback); the microphone path gets full noise
// suppression. Single-owner, not safe for concurrent use.
type Mixer struct {
	cfg  MixerConfig
	proc *SpectralProcessor
}

func NewMixer(cfg MixerConfig) *Mixer {
	return &Mixer{cfg: cfg, proc: NewSpectralProcessor()}
}

// Mix returns the weighted, soft-limited combination of the two chunks.
// Either input may be nil or shorter; missing samples read as zero. Inputs
// are not modified.
func (m *Mixer) Mix(system, mic []float32) []float32 {
	sys := append([]float32(nil), system...)
	Normalize(sys)

	voice := append([]float32(nil), mic...)
	m.proc.Process(voice)

	n := len(sys)
	if len(voice) > n {
		n = len(voice)
	}

	out := make([]float32, n)
	micWeight := m.cfg.MicGain * m.cfg.MicAttenuation
	for i := range out {
		var v float32
		if i < len(sys) {
			v += sys[i] * m.cfg.SystemGain
		}
		if i < len(voice) {
			v += voice[i] * micWeight
		}
		out[i] = softLimit(v)
	}
	return out
}

// softLimit passes |x| <= 1 through unchanged and compresses anything
// beyond into (-1, 1) with sign(x)*(1 - e^-|x|).
func softLimit(x float32) float32 {
	if x > 1 {
		return float32(1 - math.Exp(-float64(x)))
	}
	if x < -1 {
		return float32(-(1 - math.Exp(float64(x))))
	}
	return x
}

// MixSimple averages two buffers with equal weight and hard-clips to
// [-1, 1]. Used for offline mixdown where both inputs are already
// level-controlled.
func MixSimple(a, b []float32) []float32 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}

	out := make([]float32, n)
	for i := range out {
		var v float32
		if i < len(a) {
			v += a[i]
		}
		if i < len(b) {
			v += b[i]
		}
		v *= 0.5
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = v
	}
	return out
}

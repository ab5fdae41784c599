package encoder

import (
	"bytes"
	"encoding/binary"
	"math"
)

const wavHeaderSize = 44

// WavEncoder produces a mono 32-bit IEEE-float WAV stream. The header is
// written with final sizes on Close, so Bytes is only valid afterwards.
type WavEncoder struct {
	sampleRate  int
	data        bytes.Buffer
	out         []byte
	totalFrames uint64
	closed      bool
}

func NewWav(sampleRate int) *WavEncoder {
	return &WavEncoder{sampleRate: sampleRate}
}

func (e *WavEncoder) EncodeBlock(block []float32) error {
	for _, v := range block {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		e.data.Write(buf[:])
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	dataSize := e.data.Len()
	e.out = make([]byte, 0, wavHeaderSize+dataSize)
	e.out = append(e.out, wavHeader(e.sampleRate, dataSize)...)
	e.out = append(e.out, e.data.Bytes()...)
	return nil
}

func (e *WavEncoder) Bytes() []byte { return e.out }

func (e *WavEncoder) TotalFrames() uint64 { return e.totalFrames }

// wavHeader builds the 44-byte RIFF header for mono IEEE-float samples
// (format tag 3, 32 bits per sample).
func wavHeader(sampleRate, dataSize int) []byte {
	const (
		fmtFloat      = 3
		bitsPerSample = 32
	)
	byteRate := sampleRate * Channels * bitsPerSample / 8
	blockAlign := Channels * bitsPerSample / 8

	h := make([]byte, wavHeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+dataSize))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], fmtFloat)
	binary.LittleEndian.PutUint16(h[22:], Channels)
	binary.LittleEndian.PutUint32(h[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:], bitsPerSample)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(dataSize))
	return h
}

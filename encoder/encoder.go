// Package encoder writes finalized session audio to disk containers. Input
// is mono float32 blocks in [-1, 1].
package encoder

const (
	Channels  = 1
	BlockSize = 4096
)

// Encoder consumes sample blocks and produces one encoded byte stream.
// Close must be called before Bytes.
type Encoder interface {
	EncodeBlock(block []float32) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

// Encode feeds samples to enc in BlockSize blocks and closes it.
func Encode(enc Encoder, samples []float32) error {
	for i := 0; i < len(samples); i += BlockSize {
		end := i + BlockSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return err
		}
	}
	return enc.Close()
}

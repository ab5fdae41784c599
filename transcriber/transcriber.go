// Package transcriber talks to the external speech recognition service.
// Audio goes out as raw little-endian float32 PCM; timestamped text
// segments come back.
package transcriber

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Segment is one recognized span within a submitted buffer. T0 and T1 are
// seconds relative to the start of the buffer.
type Segment struct {
	Text string  `json:"text"`
	T0   float32 `json:"t0"`
	T1   float32 `json:"t1"`
}

// Response is the service's answer for one buffer. BufferSizeMS reports how
// much audio the service has queued, which the caller may use to pace
// sends.
type Response struct {
	Segments     []Segment `json:"segments"`
	BufferSizeMS int       `json:"buffer_size_ms"`
}

// Client submits mono float32 samples for recognition. Implementations
// handle their own retry policy; an error return is terminal for the
// session.
type Client interface {
	Transcribe(ctx context.Context, samples []float32) (*Response, error)
}

// ErrRetriesExhausted wraps the last failure after the retry limit.
var ErrRetriesExhausted = errors.New("transcription retries exhausted")

// Explain turns a terminal transcription error into a user-facing message
// naming the likely cause.
func Explain(err error) string {
	if err == nil {
		return ""
	}

	var netErr net.Error
	switch {
	case strings.Contains(err.Error(), "connection refused"):
		return "transcription service is not reachable (connection refused) - is the server running?"
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return "transcription service timed out - check the server and network"
	default:
		return "transcription failed: " + err.Error()
	}
}

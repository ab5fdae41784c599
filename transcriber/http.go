package transcriber

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/sobiesie/meeting-minutes/log"
)

const (
	maxRetries  = 3
	baseBackoff = 100 * time.Millisecond
)

// HTTPClient posts raw PCM buffers to the recognition server. Failed
// requests are retried with exponential backoff; exhausting the retries is
// terminal.
type HTTPClient struct {
	client     *TracedClient
	url        string
	sampleRate int
}

// NewHTTPClient returns a client for the server at url, sending audio at
// sampleRate (used only for send metrics).
func NewHTTPClient(url string, sampleRate int) *HTTPClient {
	return &HTTPClient{
		client:     NewTracedClient(),
		url:        url,
		sampleRate: sampleRate,
	}
}

func (c *HTTPClient) Transcribe(ctx context.Context, samples []float32) (*Response, error) {
	body, contentType, err := encodeRequest(samples)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var lastErr error
	// One initial attempt plus maxRetries retries, backing off
	// 100ms * 2^attempt before each retry.
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << attempt
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, metrics, err := c.send(ctx, body, contentType)
		if err != nil {
			lastErr = err
			log.Warnf("transcription retry %d/%d: %v", attempt, maxRetries, err)
			continue
		}

		log.Send(log.SendMetrics{
			AudioLengthS: float64(len(samples)) / float64(c.sampleRate),
			RawSizeKB:    float64(len(body)) / 1024,
			TotalTimeMs:  float64(time.Since(start).Milliseconds()),
			Attempts:     attempt + 1,
			BufferSizeMS: resp.BufferSizeMS,
			ConnWaitMs:   float64(metrics.ConnWait.Milliseconds()),
			TTFBMs:       float64(metrics.TTFB.Milliseconds()),
			DownloadMs:   float64(metrics.Download.Milliseconds()),
			ConnReused:   metrics.Reused,
		})
		return resp, nil
	}

	return nil, fmt.Errorf("%w after %d retries: %w", ErrRetriesExhausted, maxRetries, lastErr)
}

func (c *HTTPClient) send(ctx context.Context, body []byte, contentType string) (*Response, *NetworkMetrics, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, truncate(resp.Body, 200))
	}

	var out Response
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, resp.Metrics, nil
}

// encodeRequest packs samples as little-endian float32, clamped to [-1, 1],
// into a multipart body under the field the server expects.
func encodeRequest(samples []float32) ([]byte, string, error) {
	pcm := make([]byte, len(samples)*4)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint32(pcm[i*4:], math.Float32bits(v))
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="audio"; filename="audio.raw"`)
	header.Set("Content-Type", "audio/x-raw")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(pcm); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

package transcriber

import (
	"context"
	"sync"
)

// FakeClient returns scripted responses in order, then repeats the last
// one. Records every submitted buffer's length.
type FakeClient struct {
	mu        sync.Mutex
	responses []*Response
	err       error
	calls     []int
}

func NewFake(responses ...*Response) *FakeClient {
	return &FakeClient{responses: responses}
}

// Fail makes every subsequent Transcribe return err.
func (f *FakeClient) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeClient) Transcribe(_ context.Context, samples []float32) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, len(samples))
	if f.err != nil {
		return nil, f.err
	}

	if len(f.responses) == 0 {
		return &Response{}, nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

// Calls returns the sample count of each Transcribe invocation so far.
func (f *FakeClient) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

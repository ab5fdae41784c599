// Package sentence assembles recognizer transcript fragments into complete
// sentences. Fragments arrive per analysis window and may repeat, overlap,
// or trail off mid-sentence; the accumulator deduplicates, joins, and emits
// an event on terminal punctuation or after a silence timeout.
package sentence

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"
)

const minFragmentSeconds = 1.0

// DefaultTimeout flushes a pending sentence when no fragment has extended
// it for this long.
const DefaultTimeout = time.Second

var nonSpeechMarkers = []string{"[BLANK_AUDIO]", "[AUDIO OUT]"}

// Fragment is one recognizer segment for an analysis window, with start and
// end offsets in seconds from the session start.
type Fragment struct {
	Text  string
	Start float32
	End   float32
}

// Event is a completed sentence delivered to the session's event sink.
type Event struct {
	Text   string
	Start  float32
	End    float32
	Source string
}

// Timestamp renders the event's time range for display.
func (e Event) Timestamp() string {
	return fmt.Sprintf("%.1f - %.1f", e.Start, e.End)
}

// Config controls one accumulator. Source labels the stream the fragments
// came from and is carried through to emitted events.
type Config struct {
	Source  string
	Timeout time.Duration
}

// Accumulator builds sentences from a fragment stream. Single-owner; the
// orchestrator calls AddFragment for each recognizer segment and polls
// CheckTimeout on a fixed cadence.
type Accumulator struct {
	cfg Config

	pending    strings.Builder
	startTime  float32
	lastUpdate time.Time
	lastHash   uint64
	now        func() time.Time
}

func NewAccumulator(cfg Config) *Accumulator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Accumulator{cfg: cfg, now: time.Now}
}

// AddFragment folds one fragment into the pending sentence. It returns a
// completed Event when the fragment's text ends a sentence. Fragments that
// are empty after marker stripping, shorter than one second, or identical
// to the previous fragment are discarded.
func (a *Accumulator) AddFragment(f Fragment) (Event, bool) {
	// Any fragment, even one that gets discarded below, is recognizer
	// activity and holds off the silence timeout.
	a.lastUpdate = a.now()

	text := f.Text
	for _, marker := range nonSpeechMarkers {
		text = strings.ReplaceAll(text, marker, "")
	}
	text = strings.TrimSpace(text)

	if text == "" || f.End-f.Start < minFragmentSeconds {
		return Event{}, false
	}

	h := fragmentHash(f)
	if h == a.lastHash {
		return Event{}, false
	}
	a.lastHash = h

	if a.pending.Len() == 0 {
		a.startTime = f.Start
	} else {
		a.pending.WriteByte(' ')
	}
	a.pending.WriteString(text)

	if !endsSentence(text) {
		return Event{}, false
	}

	return a.flush(f.End), true
}

// CheckTimeout flushes the pending sentence if it has gone stale. The end
// time is approximated as start + timeout, since no recognizer fragment
// bounded the sentence.
func (a *Accumulator) CheckTimeout() (Event, bool) {
	if a.pending.Len() == 0 || a.now().Sub(a.lastUpdate) < a.cfg.Timeout {
		return Event{}, false
	}
	return a.flush(a.startTime + float32(a.cfg.Timeout.Seconds())), true
}

func (a *Accumulator) flush(end float32) Event {
	ev := Event{
		Text:   a.pending.String(),
		Start:  a.startTime,
		End:    end,
		Source: a.cfg.Source,
	}
	a.pending.Reset()
	return ev
}

func endsSentence(text string) bool {
	return strings.HasSuffix(text, ".") ||
		strings.HasSuffix(text, "?") ||
		strings.HasSuffix(text, "!")
}

// fragmentHash identifies a fragment by its raw text and exact time bits,
// so a recognizer re-emitting the same window is caught even when the text
// alone recurs legitimately.
func fragmentHash(f Fragment) uint64 {
	h := fnv.New64a()
	h.Write([]byte(f.Text))
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(f.Start))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(f.End))
	h.Write(buf[:])
	return h.Sum64()
}

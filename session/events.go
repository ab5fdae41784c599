package session

import "github.com/sobiesie/meeting-minutes/sentence"

// EventSink abstracts the display layer so a console frontend and any
// future UI receive the same recording events. Methods are called from the
// session's own goroutine and must not block for long.
type EventSink interface {
	RecordingStart(mic, system string)
	RecordingStop(sentences int)
	Sentence(ev sentence.Event)
	AudioLevel(level float64)
	SessionError(msg string)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordingStart(mic, system string) {}
func (NopSink) RecordingStop(sentences int)       {}
func (NopSink) Sentence(ev sentence.Event)        {}
func (NopSink) AudioLevel(level float64)          {}
func (NopSink) SessionError(msg string)           {}

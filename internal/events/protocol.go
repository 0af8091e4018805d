package events

import (
	"encoding/json"
	"time"
)

// Bundler lifecycle event types.
const (
	TypeRun        = "run"
	TypeWatchRun   = "watchRun"
	TypeInvalid    = "invalid"
	TypeDone       = "done"
	TypeWatchClose = "watchClose"
)

// Event is the message pushed to every connected listener, one JSON text
// frame per event.
type Event struct {
	Type   string    `json:"type"`
	Seq    int       `json:"seq,omitempty"`
	Target string    `json:"target,omitempty"` // bundler target name
	Time   time.Time `json:"time,omitzero"`

	// For done
	Errors int `json:"errors,omitempty"`
}

// Sink receives events. A nil Sink drops them.
type Sink func(Event)

// Emitter stamps events for a single bundler target and hands them to a sink.
type Emitter struct {
	target string
	sink   Sink
}

func NewEmitter(target string, sink Sink) *Emitter {
	return &Emitter{target: target, sink: sink}
}

func (e *Emitter) Emit(eventType string, mutators ...func(*Event)) {
	if e == nil || e.sink == nil {
		return
	}
	evt := Event{
		Type:   eventType,
		Target: e.target,
		Time:   time.Now(),
	}
	for _, m := range mutators {
		m(&evt)
	}
	e.sink(evt)
}

// WithErrors sets the error count of a done event.
func WithErrors(n int) func(*Event) {
	return func(e *Event) { e.Errors = n }
}

func decodeEvent(msg []byte) (Event, error) {
	var evt Event
	err := json.Unmarshal(msg, &evt)
	return evt, err
}

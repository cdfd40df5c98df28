package notify

import (
	"encoding/json"
	"time"
)

// EventConfigChanged is the name of the event published for every
// coalesced settings change.
const EventConfigChanged = "config_changed"

// Event is a tagged result of one settings read: either an offset
// (Success) or a failure reason.
type Event struct {
	Name      string
	Seq       uint64
	Timestamp time.Time

	offset float64
	reason string
	failed bool
}

// Success returns a config_changed event carrying offset.
func Success(offset float64) Event {
	return Event{Name: EventConfigChanged, offset: offset}
}

// Failure returns a config_changed event carrying a failure reason.
func Failure(reason string) Event {
	return Event{Name: EventConfigChanged, reason: reason, failed: true}
}

// OK reports whether the event carries an offset.
func (e Event) OK() bool { return !e.failed }

// Offset returns the offset and true for a Success event.
func (e Event) Offset() (float64, bool) {
	if e.failed {
		return 0, false
	}

	return e.offset, true
}

// Reason returns the failure reason, or empty for a Success event.
func (e Event) Reason() string { return e.reason }

type eventPayload struct {
	Event     string    `json:"event"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Offset    *float64  `json:"offset,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// MarshalJSON encodes the event as {"event", "seq", "timestamp"} plus
// either "offset" or "error".
func (e Event) MarshalJSON() ([]byte, error) {
	p := eventPayload{
		Event:     e.Name,
		Seq:       e.Seq,
		Timestamp: e.Timestamp,
	}

	if e.failed {
		p.Error = e.reason
	} else {
		off := e.offset
		p.Offset = &off
	}

	return json.Marshal(p)
}

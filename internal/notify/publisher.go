package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuffer is the subscriber channel capacity used when none is given.
const DefaultBuffer = 16

// Sink receives events. Publish must not block; it reports whether the
// event was handed over.
type Sink interface {
	Publish(Event) bool
}

// Stats counts publisher outcomes.
type Stats struct {
	Published uint64
	Dropped   uint64
}

// Publisher delivers events to a single bounded subscriber channel.
// Delivery is at-most-once: when the channel is full or closed the event
// is logged and dropped.
type Publisher struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
	logger *slog.Logger

	seq       atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewPublisher creates a Publisher with a channel of the given capacity.
// A non-positive buffer selects DefaultBuffer.
func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		ch:     make(chan Event, buffer),
		logger: logger,
	}
}

// Events returns the subscriber channel. It is closed by Close.
func (p *Publisher) Events() <-chan Event {
	return p.ch
}

// Publish stamps e with a sequence number and timestamp and attempts a
// non-blocking send.
func (p *Publisher) Publish(e Event) bool {
	e.Seq = p.seq.Add(1)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.drop(e, "publisher closed")
		return false
	}

	select {
	case p.ch <- e:
		p.published.Add(1)
		return true
	default:
		p.drop(e, "subscriber not keeping up")
		return false
	}
}

// Close closes the subscriber channel. Later publishes are dropped.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.ch)
}

// Stats returns a snapshot of the delivery counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
	}
}

func (p *Publisher) drop(e Event, why string) {
	p.dropped.Add(1)
	p.logger.Warn("dropping event",
		slog.String("event", e.Name),
		slog.Uint64("seq", e.Seq),
		slog.String("reason", why),
	)
}

package notify

import (
	"fmt"
	"log/slog"
)

// OffsetReader reads the current offset from the settings file at path.
type OffsetReader interface {
	Read(path string) (float64, error)
}

// Notifier reads the settings file on each change and publishes exactly one
// event describing the outcome.
type Notifier struct {
	path   string
	reader OffsetReader
	sink   Sink
	logger *slog.Logger
}

// NewNotifier returns a Notifier for the settings file at path.
func NewNotifier(path string, reader OffsetReader, sink Sink, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &Notifier{
		path:   path,
		reader: reader,
		sink:   sink,
		logger: logger,
	}
}

// Notify performs one read and publishes the result. It returns the event
// that was offered to the sink. A panicking reader is reported as a
// failure.
func (n *Notifier) Notify() Event {
	var ev Event

	offset, err := n.read()
	if err != nil {
		n.logger.Warn("settings read failed", slog.String("path", n.path), slog.String("error", err.Error()))
		ev = Failure(err.Error())
	} else {
		n.logger.Debug("settings read", slog.String("path", n.path), slog.Float64("offset", offset))
		ev = Success(offset)
	}

	n.sink.Publish(ev)

	return ev
}

func (n *Notifier) read() (offset float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading settings file panicked: %v", r)
		}
	}()

	return n.reader.Read(n.path)
}

package tui

import (
	"log/slog"

	"mdtasks/internal/syncer"
)

// Sink forwards the events of one document to the TUI. It implements
// syncer.Sink and never blocks the coordinator. When the buffer overflows
// the event is dropped and a resync is requested.
type Sink struct {
	doc    string
	ch     chan syncer.Event
	resync chan struct{}
}

func NewSink(doc string, size int) *Sink {
	if size <= 0 {
		size = 64
	}
	return &Sink{doc: doc, ch: make(chan syncer.Event, size), resync: make(chan struct{}, 1)}
}

func (s *Sink) Publish(doc string, ev syncer.Event) {
	if doc != s.doc {
		return
	}
	select {
	case s.ch <- ev:
	default:
		slog.Warn("tui event dropped", "doc", doc, "kind", ev.Kind().String())
		select {
		case s.resync <- struct{}{}:
		default:
		}
	}
}

func (s *Sink) Events() <-chan syncer.Event {
	return s.ch
}

// Resyncs signals once per overflow burst that events were lost.
func (s *Sink) Resyncs() <-chan struct{} {
	return s.resync
}

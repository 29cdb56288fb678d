package syncer

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"mdtasks/internal/document"
)

type fakeClock struct {
	mu         sync.Mutex
	now        time.Duration
	timers     []*fakeTimer
	ignoreStop bool
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due callbacks in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if t.fired || t.at > c.now {
			continue
		}
		if t.stopped && !c.ignoreStop {
			continue
		}
		t.fired = true
		due = append(due, t)
	}
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

type fakeHost struct {
	mu      sync.Mutex
	docs    map[string]string
	reject  error
	onWrite func(doc, text string)

	// beforeWrite runs ahead of every ReplaceLine without holding mu.
	beforeWrite func()
}

func newFakeHost(docs map[string]string) *fakeHost {
	return &fakeHost{docs: docs}
}

func (h *fakeHost) Snapshot(_ context.Context, doc string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	text, ok := h.docs[doc]
	if !ok {
		return "", ErrUnknownDocument
	}
	return text, nil
}

func (h *fakeHost) ReplaceLine(_ context.Context, doc string, line int, prior, text string) error {
	if h.beforeWrite != nil {
		h.beforeWrite()
	}
	h.mu.Lock()
	if h.reject != nil {
		h.mu.Unlock()
		return h.reject
	}
	buf := document.Parse(h.docs[doc])
	if err := buf.SwapLine(line, prior, text); err != nil {
		h.mu.Unlock()
		return err
	}
	updated := buf.String()
	h.docs[doc] = updated
	onWrite := h.onWrite
	h.mu.Unlock()
	if onWrite != nil {
		onWrite(doc, updated)
	}
	return nil
}

func (h *fakeHost) set(doc, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.docs[doc] = text
}

func (h *fakeHost) text(doc string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.docs[doc]
}

type published struct {
	doc string
	ev  Event
}

type recordSink struct {
	mu     sync.Mutex
	events []published
}

func (s *recordSink) Publish(doc string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, published{doc: doc, ev: ev})
}

func (s *recordSink) take() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, p := range s.events {
		out = append(out, p.ev)
	}
	s.events = nil
	return out
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind())
	}
	return out
}

func sameKinds(got []EventKind, want ...EventKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

type harness struct {
	c     *Coordinator
	host  *fakeHost
	sink  *recordSink
	clock *fakeClock
}

func startHarness(t *testing.T, docs map[string]string, opts Options) *harness {
	t.Helper()
	h := &harness{host: newFakeHost(docs), sink: &recordSink{}, clock: &fakeClock{}}
	opts.Clock = h.clock
	h.c = New(h.host, h.sink, opts)
	h.host.onWrite = h.c.Changed

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.c.Done()
	})
	return h
}

// settle waits until every previously queued operation has run.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := h.c.Documents(ctx); err != nil {
		t.Fatalf("settle: %v", err)
	}
}

func (h *harness) attach(t *testing.T, doc string) string {
	t.Helper()
	id, err := h.c.Attach(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("attach %s: %v", doc, err)
	}
	h.sink.take()
	return id
}

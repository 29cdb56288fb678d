// Package syncer keeps the text, rendered and outline views of open
// documents consistent. All per-document state is owned by one goroutine;
// public methods hand work to it through a queue.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"mdtasks/internal/document"
	"mdtasks/internal/index"
	"mdtasks/internal/storage/fs"
)

var (
	ErrUnknownDocument = errors.New("document has no attached view")
	ErrEditRejected    = errors.New("edit rejected by host")
	ErrClosed          = errors.New("coordinator closed")
)

// Host owns document storage. ReplaceLine must apply the edit to the
// canonical copy of doc as one write, and refuse it when the line no longer
// reads prior.
type Host interface {
	Snapshot(ctx context.Context, doc string) (string, error)
	ReplaceLine(ctx context.Context, doc string, line int, prior, text string) error
}

type Renderer interface {
	Render(text string) (content string, lineMap []int, err error)
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePendingDebounce
	PhaseApplying
)

func (p Phase) String() string {
	switch p {
	case PhasePendingDebounce:
		return "pending_debounce"
	case PhaseApplying:
		return "applying"
	default:
		return "idle"
	}
}

type Options struct {
	Debounce    Debounce
	ShowHeaders bool
	Clock       Clock
	Renderer    Renderer
	QueueSize   int
}

// DocSnapshot is a point-in-time copy of a document's sync state.
type DocSnapshot struct {
	Forest      *index.Forest
	Progress    index.Progress
	ShowHeaders bool
	Phase       Phase
	Pending     int
	Views       int
}

type syncState struct {
	doc           string
	lastKnownText string
	lastStates    []index.CheckboxState
	forest        *index.Forest
	pending       []LocalToggle
	showHeaders   bool
	views         map[string]struct{}
	phase         Phase

	latestText   string
	contentKind  SyncKind
	contentTimer Timer
	contentGen   uint64

	scrollLine  int
	scrollTimer Timer
	scrollGen   uint64
}

type Coordinator struct {
	host     Host
	sink     Sink
	renderer Renderer
	clock    Clock
	debounce Debounce
	headers  bool

	ops     chan func()
	done    chan struct{}
	toggles *fs.Locker

	// owned by the Run goroutine
	states  map[string]*syncState
	nextSeq uint64
}

func New(host Host, sink Sink, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	d := opts.Debounce
	if d.Toggle <= 0 {
		d.Toggle = DefaultDebounce.Toggle
	}
	if d.Edit <= 0 {
		d.Edit = DefaultDebounce.Edit
	}
	if d.Scroll <= 0 {
		d.Scroll = DefaultDebounce.Scroll
	}
	if sink == nil {
		sink = MultiSink(nil)
	}
	return &Coordinator{
		host:     host,
		sink:     sink,
		renderer: opts.Renderer,
		clock:    opts.Clock,
		debounce: d,
		headers:  opts.ShowHeaders,
		ops:      make(chan func(), opts.QueueSize),
		done:     make(chan struct{}),
		toggles:  fs.NewLocker(),
		states:   make(map[string]*syncState),
	}
}

// Run processes queued work until ctx is cancelled. Pending timers are
// stopped and all document state is dropped on exit.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			for doc, st := range c.states {
				c.dispose(st)
				delete(c.states, doc)
			}
			return ctx.Err()
		case op := <-c.ops:
			op()
		}
	}
}

func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) post(ctx context.Context, op func()) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.ops <- op:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the loop and waits for its result.
func (c *Coordinator) call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	if err := c.post(ctx, func() { errc <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-c.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attach registers a view of doc and returns its id. The first view creates
// the document state. The full event set for the new view goes to initial,
// or to every view of doc when initial is nil.
func (c *Coordinator) Attach(ctx context.Context, doc string, initial Sink) (string, error) {
	viewID := uuid.NewString()
	err := c.call(ctx, func() error {
		st, ok := c.states[doc]
		if !ok {
			text, err := c.host.Snapshot(ctx, doc)
			if err != nil {
				return fmt.Errorf("attach %s: %w", doc, err)
			}
			st = &syncState{
				doc:           doc,
				lastKnownText: text,
				latestText:    text,
				lastStates:    index.ScanCheckboxes(text),
				forest:        index.BuildText(text),
				showHeaders:   c.headers,
				views:         make(map[string]struct{}),
			}
			c.states[doc] = st
			slog.Debug("sync state created", "doc", doc)
		}
		st.views[viewID] = struct{}{}
		if initial == nil {
			initial = c.sink
		}
		c.publishFull(st, initial)
		return nil
	})
	if err != nil {
		return "", err
	}
	return viewID, nil
}

// Detach removes a view. The last view disposes the document state and
// cancels its timers.
func (c *Coordinator) Detach(ctx context.Context, doc, viewID string) error {
	return c.call(ctx, func() error {
		st, ok := c.states[doc]
		if !ok {
			return ErrUnknownDocument
		}
		delete(st.views, viewID)
		if len(st.views) > 0 {
			return nil
		}
		c.dispose(st)
		delete(c.states, doc)
		slog.Debug("sync state disposed", "doc", doc)
		return nil
	})
}

func (c *Coordinator) dispose(st *syncState) {
	if st.contentTimer != nil {
		st.contentTimer.Stop()
		st.contentTimer = nil
	}
	if st.scrollTimer != nil {
		st.scrollTimer.Stop()
		st.scrollTimer = nil
	}
	st.contentGen++
	st.scrollGen++
	st.pending = nil
	st.phase = PhaseIdle
}

// Changed reports new buffer text for doc. It never blocks on the loop's
// work; documents without views are ignored.
func (c *Coordinator) Changed(doc, text string) {
	err := c.post(context.Background(), func() {
		st, ok := c.states[doc]
		if !ok || text == st.latestText {
			return
		}
		var ch Change
		ch, st.pending = tagChange(st.latestText, text, st.pending)
		st.latestText = text
		plan := decideSync(st.contentTimer != nil && st.contentKind == SyncFull, ch, c.debounce)
		slog.Debug("buffer changed", "doc", doc, "origin", ch.Origin, "sync", plan.Kind, "delay", plan.Delay)
		c.scheduleContent(st, plan)
	})
	if err != nil {
		slog.Debug("change dropped", "doc", doc, "err", err)
	}
}

func (c *Coordinator) scheduleContent(st *syncState, plan Plan) {
	if st.contentTimer != nil {
		st.contentTimer.Stop()
	}
	st.contentGen++
	gen := st.contentGen
	st.contentKind = plan.Kind
	st.phase = PhasePendingDebounce
	st.contentTimer = c.clock.AfterFunc(plan.Delay, func() {
		_ = c.post(context.Background(), func() { c.fireContent(st, gen) })
	})
}

func (c *Coordinator) fireContent(st *syncState, gen uint64) {
	if c.states[st.doc] != st || st.contentGen != gen {
		return
	}
	st.contentTimer = nil
	st.phase = PhaseApplying
	text := st.latestText
	switch st.contentKind {
	case SyncTargeted:
		states := index.ScanCheckboxes(text)
		diff := index.DiffCheckboxStates(st.lastStates, states)
		st.lastStates = states
		st.lastKnownText = text
		st.forest.ApplyStates(diff)
		if len(diff) > 0 {
			c.sink.Publish(st.doc, TargetedStateSync{States: diff})
		}
		c.sink.Publish(st.doc, ProgressUpdate{Progress: index.Aggregate(st.forest)})
	default:
		st.lastKnownText = text
		st.lastStates = index.ScanCheckboxes(text)
		st.forest = index.BuildText(text)
		st.pending = nil
		c.publishFull(st, c.sink)
	}
	st.contentKind = SyncNone
	st.phase = PhaseIdle
}

func (c *Coordinator) publishFull(st *syncState, sink Sink) {
	content, lineMap, err := c.render(st.lastKnownText, st.lastStates)
	if err != nil {
		slog.Error("render failed", "doc", st.doc, "err", err)
	} else {
		sink.Publish(st.doc, FullRerender{Content: content, LineMap: lineMap})
	}
	sink.Publish(st.doc, ProgressUpdate{Progress: index.Aggregate(st.forest)})
	sink.Publish(st.doc, TreeRebuilt{Forest: c.viewForest(st), ShowHeaders: st.showHeaders})
}

// Resync republishes the full event set of doc to every view, for views
// that lost events.
func (c *Coordinator) Resync(ctx context.Context, doc string) error {
	return c.call(ctx, func() error {
		st, ok := c.states[doc]
		if !ok {
			return ErrUnknownDocument
		}
		c.publishFull(st, c.sink)
		return nil
	})
}

func (c *Coordinator) render(text string, states []index.CheckboxState) (string, []int, error) {
	if c.renderer != nil {
		return c.renderer.Render(text)
	}
	lineMap := make([]int, len(states))
	for i, s := range states {
		lineMap[i] = s.Line
	}
	return text, lineMap, nil
}

func (c *Coordinator) viewForest(st *syncState) *index.Forest {
	if st.showHeaders {
		return st.forest.Clone()
	}
	return st.forest.FlattenHeaders()
}

// Toggle flips the checkbox on line of doc through the host. A line without
// a checkbox or beyond the end is reported in the result, not as an error.
// Toggles of one document run one at a time, each against a fresh snapshot.
func (c *Coordinator) Toggle(ctx context.Context, doc string, line int) (index.ToggleResult, error) {
	unlock := c.toggles.Lock(doc)
	defer unlock()

	var (
		edit    index.LineEdit
		prior   string
		res     index.ToggleResult
		tracked bool
		seq     uint64
	)
	err := c.call(ctx, func() error {
		text, err := c.host.Snapshot(ctx, doc)
		if err != nil {
			return fmt.Errorf("toggle %s: %w", doc, err)
		}
		buf := document.Parse(text)
		edit, res = index.Toggle(buf, line)
		if res != index.Toggled {
			return nil
		}
		prior = buf.Line(line)
		st, ok := c.states[doc]
		if !ok {
			return nil
		}
		c.nextSeq++
		seq = c.nextSeq
		tracked = true
		st.pending = append(st.pending, LocalToggle{
			seq:          seq,
			Line:         line,
			PriorChecked: index.ClassifyLine(prior).Checked,
		})
		return nil
	})
	if err != nil {
		return res, err
	}
	if res != index.Toggled {
		return res, nil
	}
	if err := c.host.ReplaceLine(ctx, doc, edit.Line, prior, edit.Text); err != nil {
		slog.Warn("toggle edit rejected", "doc", doc, "line", line, "err", err)
		if tracked {
			_ = c.post(context.Background(), func() { c.dropPending(doc, seq) })
		}
		return res, fmt.Errorf("toggle %s line %d: %w: %w", doc, line, ErrEditRejected, err)
	}
	return res, nil
}

func (c *Coordinator) dropPending(doc string, seq uint64) {
	st, ok := c.states[doc]
	if !ok {
		return
	}
	for i, lt := range st.pending {
		if lt.seq == seq {
			st.pending = append(st.pending[:i], st.pending[i+1:]...)
			return
		}
	}
}

// Scroll echoes an editor scroll position to the views on its own debounce
// lane, independent of content syncs.
func (c *Coordinator) Scroll(doc string, line int) {
	_ = c.post(context.Background(), func() {
		st, ok := c.states[doc]
		if !ok {
			return
		}
		if st.scrollTimer != nil {
			st.scrollTimer.Stop()
		}
		st.scrollGen++
		gen := st.scrollGen
		st.scrollLine = line
		st.scrollTimer = c.clock.AfterFunc(c.debounce.Scroll, func() {
			_ = c.post(context.Background(), func() {
				if c.states[doc] != st || st.scrollGen != gen {
					return
				}
				st.scrollTimer = nil
				c.sink.Publish(doc, ScrollEcho{Line: st.scrollLine})
			})
		})
	})
}

func (c *Coordinator) SetShowHeaders(ctx context.Context, doc string, show bool) error {
	return c.call(ctx, func() error {
		st, ok := c.states[doc]
		if !ok {
			return ErrUnknownDocument
		}
		st.showHeaders = show
		c.sink.Publish(doc, TreeRebuilt{Forest: c.viewForest(st), ShowHeaders: show})
		return nil
	})
}

func (c *Coordinator) Snapshot(ctx context.Context, doc string) (DocSnapshot, error) {
	var snap DocSnapshot
	err := c.call(ctx, func() error {
		st, ok := c.states[doc]
		if !ok {
			return ErrUnknownDocument
		}
		snap = DocSnapshot{
			Forest:      c.viewForest(st),
			Progress:    index.Aggregate(st.forest),
			ShowHeaders: st.showHeaders,
			Phase:       st.phase,
			Pending:     len(st.pending),
			Views:       len(st.views),
		}
		return nil
	})
	return snap, err
}

// Documents lists documents that currently have views.
func (c *Coordinator) Documents(ctx context.Context) ([]string, error) {
	var docs []string
	err := c.call(ctx, func() error {
		for doc := range c.states {
			docs = append(docs, doc)
		}
		return nil
	})
	return docs, err
}

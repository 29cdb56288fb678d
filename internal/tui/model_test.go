package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"mdtasks/internal/index"
	"mdtasks/internal/syncer"
)

type fakeController struct {
	mu      sync.Mutex
	toggled []int
	headers []bool
	scrolls []int
	resyncs int
	err     error
}

func (f *fakeController) Toggle(_ context.Context, _ string, line int) (index.ToggleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggled = append(f.toggled, line)
	if f.err != nil {
		return index.Toggled, f.err
	}
	return index.Toggled, nil
}

func (f *fakeController) SetShowHeaders(_ context.Context, _ string, show bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = append(f.headers, show)
	return nil
}

func (f *fakeController) Scroll(_ string, line int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls = append(f.scrolls, line)
}

func (f *fakeController) Resync(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resyncs++
	return nil
}

const sample = "# Plan\n- [ ] one\n  - [x] two\n- [ ] three\n"

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", next)
	}
	return model, cmd
}

func loaded(t *testing.T, ctrl Controller, showHeaders bool) Model {
	t.Helper()
	forest := index.BuildText(sample)
	progress := index.Aggregate(forest)
	if !showHeaders {
		forest = forest.FlattenHeaders()
	}
	m := New("plan.md", ctrl, make(chan syncer.Event), nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(t, m, eventMsg{ev: syncer.TreeRebuilt{Forest: forest, ShowHeaders: showHeaders}})
	m, _ = update(t, m, eventMsg{ev: syncer.ProgressUpdate{Progress: progress}})
	return m
}

func TestTreeEventPopulatesRows(t *testing.T) {
	m := loaded(t, &fakeController{}, true)
	if len(m.rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(m.rows))
	}
	view := m.View()
	for _, want := range []string{"plan.md", "# Plan", "[ ] one", "two", "1/3"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}

	m = loaded(t, &fakeController{}, false)
	if len(m.rows) != 3 {
		t.Fatalf("expected headers hidden, got %d rows", len(m.rows))
	}
	if strings.Contains(m.View(), "# Plan") {
		t.Fatalf("expected no header row")
	}
}

func TestToggleKeyTogglesSelectedCheckbox(t *testing.T) {
	ctrl := &fakeController{}
	m := loaded(t, ctrl, true)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if cmd != nil {
		t.Fatalf("expected no command on header row")
	}

	m, cmd = update(t, m, runes("j"))
	if cmd == nil {
		t.Fatalf("expected scroll command after move")
	}
	cmd()
	if len(ctrl.scrolls) != 1 || ctrl.scrolls[0] != 1 {
		t.Fatalf("expected scroll to line 1, got %v", ctrl.scrolls)
	}

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected toggle command")
	}
	msg := cmd()
	if len(ctrl.toggled) != 1 || ctrl.toggled[0] != 1 {
		t.Fatalf("expected toggle of line 1, got %v", ctrl.toggled)
	}
	m, _ = update(t, m, msg)
	if m.status != "" {
		t.Fatalf("expected no status after success, got %q", m.status)
	}
}

func TestToggleFailureShowsStatus(t *testing.T) {
	ctrl := &fakeController{err: errors.New("disk full")}
	m := loaded(t, ctrl, false)
	_, cmd := update(t, m, runes("x"))
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.status, "disk full") {
		t.Fatalf("expected failure status, got %q", m.status)
	}
	m, _ = update(t, m, statusClearMsg{id: m.statusID})
	if m.status != "" {
		t.Fatalf("expected status cleared, got %q", m.status)
	}
}

func TestTargetedSyncUpdatesCheckState(t *testing.T) {
	m := loaded(t, &fakeController{}, true)
	m, _ = update(t, m, eventMsg{ev: syncer.TargetedStateSync{States: []index.CheckboxState{{Line: 1, Checked: true}}}})
	id, ok := m.forest.ByLine(1)
	if !ok || !m.forest.Nodes[id].Checked {
		t.Fatalf("expected line 1 checked")
	}
	m, _ = update(t, m, eventMsg{ev: syncer.ProgressUpdate{Progress: index.Progress{Completed: 2, Total: 3}}})
	if !strings.Contains(m.View(), "2/3") {
		t.Fatalf("expected updated progress in view")
	}
}

func TestScrollEchoMovesCursor(t *testing.T) {
	m := loaded(t, &fakeController{}, true)
	m, _ = update(t, m, eventMsg{ev: syncer.ScrollEcho{Line: 3}})
	if n := m.selected(); n == nil || n.Line != 3 {
		t.Fatalf("expected cursor on line 3, got %+v", n)
	}
}

func TestTreeRebuildKeepsSelection(t *testing.T) {
	m := loaded(t, &fakeController{}, true)
	m, _ = update(t, m, eventMsg{ev: syncer.ScrollEcho{Line: 2}})
	m, _ = update(t, m, eventMsg{ev: syncer.TreeRebuilt{Forest: index.BuildText(sample).FlattenHeaders()}})
	if n := m.selected(); n == nil || n.Line != 2 {
		t.Fatalf("expected cursor to stay on line 2, got %+v", n)
	}
}

func TestHeadersKeyFlipsVisibility(t *testing.T) {
	ctrl := &fakeController{}
	m := loaded(t, ctrl, true)
	_, cmd := update(t, m, runes("h"))
	if cmd == nil {
		t.Fatalf("expected headers command")
	}
	cmd()
	if len(ctrl.headers) != 1 || ctrl.headers[0] {
		t.Fatalf("expected headers hidden request, got %v", ctrl.headers)
	}
}

func TestQuitAndClosedStream(t *testing.T) {
	m := loaded(t, &fakeController{}, true)
	_, cmd := update(t, m, runes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}

	ch := make(chan syncer.Event)
	close(ch)
	if _, ok := waitForEvent(ch, nil)().(streamClosedMsg); !ok {
		t.Fatalf("expected stream closed message")
	}
}

func TestSinkFiltersDocument(t *testing.T) {
	s := NewSink("a.md", 1)
	s.Publish("b.md", syncer.ScrollEcho{Line: 1})
	s.Publish("a.md", syncer.ScrollEcho{Line: 2})
	s.Publish("a.md", syncer.ScrollEcho{Line: 3})
	ev := <-s.Events()
	if echo, ok := ev.(syncer.ScrollEcho); !ok || echo.Line != 2 {
		t.Fatalf("expected scroll to line 2, got %#v", ev)
	}
	select {
	case ev := <-s.Events():
		t.Fatalf("expected overflow dropped, got %#v", ev)
	default:
	}
	select {
	case <-s.Resyncs():
	default:
		t.Fatalf("expected overflow to request a resync")
	}
}

func TestResyncAfterDroppedEvents(t *testing.T) {
	ctrl := &fakeController{}
	resync := make(chan struct{}, 1)
	m := New("plan.md", ctrl, make(chan syncer.Event), resync)

	resync <- struct{}{}
	msg := m.Init()()
	if _, ok := msg.(resyncMsg); !ok {
		t.Fatalf("expected resync message, got %#v", msg)
	}
	m, cmd := update(t, m, msg)
	if cmd == nil {
		t.Fatalf("expected resync command")
	}
	if err := m.resyncCmd()(); err != nil {
		t.Fatalf("expected no message, got %#v", err)
	}
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.resyncs != 1 {
		t.Fatalf("expected one resync, got %d", ctrl.resyncs)
	}
}

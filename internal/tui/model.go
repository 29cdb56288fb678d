// Package tui is a terminal outline of one document's checklist, kept in
// sync by the coordinator's events.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mdtasks/internal/index"
	"mdtasks/internal/syncer"
)

// Controller is the part of the coordinator the TUI drives.
type Controller interface {
	Toggle(ctx context.Context, doc string, line int) (index.ToggleResult, error)
	SetShowHeaders(ctx context.Context, doc string, show bool) error
	Scroll(doc string, line int)
	Resync(ctx context.Context, doc string) error
}

const (
	opTimeout     = 5 * time.Second
	statusTimeout = 3 * time.Second
	barWidth      = 24
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim    = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	colorDone   = lipgloss.AdaptiveColor{Light: "#2E8B57", Dark: "#3CB371"}

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	doneStyle    = lipgloss.NewStyle().Foreground(colorDim).Strikethrough(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(colorDim)
	barDoneStyle = lipgloss.NewStyle().Foreground(colorDone)
	barTodoStyle = lipgloss.NewStyle().Foreground(colorDim)
)

type eventMsg struct {
	ev syncer.Event
}

type streamClosedMsg struct{}

type resyncMsg struct{}

type toggledMsg struct {
	line   int
	result index.ToggleResult
	err    error
}

type errMsg struct {
	err error
}

type statusClearMsg struct {
	id int
}

type row struct {
	id    index.NodeID
	depth int
}

type Model struct {
	doc    string
	ctrl   Controller
	events <-chan syncer.Event
	resync <-chan struct{}

	forest      *index.Forest
	rows        []row
	progress    index.Progress
	showHeaders bool

	cursor int
	offset int
	width  int
	height int

	keys     keyMap
	help     help.Model
	status   string
	statusID int
}

// New builds the outline model. A nil resync channel disables resyncs.
func New(doc string, ctrl Controller, events <-chan syncer.Event, resync <-chan struct{}) Model {
	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(colorDim)
	h.Styles.FullKey = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	h.Styles.FullDesc = lipgloss.NewStyle().Foreground(colorDim)
	return Model{
		doc:    doc,
		ctrl:   ctrl,
		events: events,
		resync: resync,
		keys:   newKeyMap(),
		help:   h,
	}
}

func (m Model) Init() tea.Cmd {
	return m.wait()
}

func (m Model) wait() tea.Cmd {
	return waitForEvent(m.events, m.resync)
}

func waitForEvent(ch <-chan syncer.Event, resync <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-ch:
			if !ok {
				return streamClosedMsg{}
			}
			return eventMsg{ev: ev}
		case <-resync:
			return resyncMsg{}
		}
	}
}

func (m Model) resyncCmd() tea.Cmd {
	ctrl, doc := m.ctrl, m.doc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := ctrl.Resync(ctx, doc); err != nil {
			return errMsg{err: fmt.Errorf("resync: %w", err)}
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clampOffset()
		return m, nil

	case eventMsg:
		m.apply(msg.ev)
		return m, m.wait()

	case resyncMsg:
		return m, tea.Batch(m.resyncCmd(), m.wait())

	case streamClosedMsg:
		return m, tea.Quit

	case toggledMsg:
		switch {
		case msg.err != nil:
			return m, m.setStatus(fmt.Sprintf("toggle line %d failed: %v", msg.line+1, msg.err))
		case msg.result != index.Toggled:
			return m, m.setStatus(fmt.Sprintf("line %d: %s", msg.line+1, msg.result))
		}
		return m, nil

	case errMsg:
		return m, m.setStatus(msg.err.Error())

	case statusClearMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Up):
		return m, m.moveTo(m.cursor - 1)
	case key.Matches(msg, m.keys.Down):
		return m, m.moveTo(m.cursor + 1)
	case key.Matches(msg, m.keys.Top):
		return m, m.moveTo(0)
	case key.Matches(msg, m.keys.Bottom):
		return m, m.moveTo(len(m.rows) - 1)
	case key.Matches(msg, m.keys.Toggle):
		n := m.selected()
		if n == nil || !n.IsCheckbox() {
			return m, nil
		}
		return m, m.toggleCmd(n.Line)
	case key.Matches(msg, m.keys.Headers):
		return m, m.headersCmd(!m.showHeaders)
	}
	return m, nil
}

func (m *Model) apply(ev syncer.Event) {
	switch ev := ev.(type) {
	case syncer.TreeRebuilt:
		line := -1
		if n := m.selected(); n != nil {
			line = n.Line
		}
		m.forest = ev.Forest
		m.showHeaders = ev.ShowHeaders
		m.rebuildRows()
		m.cursor = 0
		if line >= 0 {
			m.selectLine(line)
		}
		m.clampCursor()
	case syncer.TargetedStateSync:
		if m.forest != nil {
			m.forest.ApplyStates(ev.States)
		}
	case syncer.ProgressUpdate:
		m.progress = ev.Progress
	case syncer.ScrollEcho:
		m.selectLine(ev.Line)
	case syncer.FullRerender:
		// the outline follows TreeRebuilt; rendered HTML is for browsers
	}
}

func (m *Model) rebuildRows() {
	m.rows = m.rows[:0]
	if m.forest == nil {
		return
	}
	m.forest.Walk(func(n *index.Node, depth int) bool {
		m.rows = append(m.rows, row{id: n.ID, depth: depth})
		return true
	})
}

func (m *Model) selectLine(line int) {
	for i, r := range m.rows {
		if m.forest.Nodes[r.id].Line == line {
			m.cursor = i
			m.clampOffset()
			return
		}
	}
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.clampOffset()
}

// clampOffset keeps the cursor inside the visible window.
func (m *Model) clampOffset() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if h > 0 && m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m Model) listHeight() int {
	if m.height == 0 {
		return 0
	}
	// title, progress, blank, status and help lines
	h := m.height - 5
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) selected() *index.Node {
	if m.forest == nil || m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.forest.Node(m.rows[m.cursor].id)
}

// moveTo moves the cursor and reports the new position so other views of
// the document follow it.
func (m *Model) moveTo(i int) tea.Cmd {
	if len(m.rows) == 0 {
		return nil
	}
	prev := m.cursor
	m.cursor = i
	m.clampCursor()
	if m.cursor == prev {
		return nil
	}
	n := m.selected()
	doc, ctrl := m.doc, m.ctrl
	return func() tea.Msg {
		ctrl.Scroll(doc, n.Line)
		return nil
	}
}

func (m Model) toggleCmd(line int) tea.Cmd {
	doc, ctrl := m.doc, m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		res, err := ctrl.Toggle(ctx, doc, line)
		return toggledMsg{line: line, result: res, err: err}
	}
}

func (m Model) headersCmd(show bool) tea.Cmd {
	doc, ctrl := m.doc, m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := ctrl.SetShowHeaders(ctx, doc, show); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m *Model) setStatus(text string) tea.Cmd {
	m.statusID++
	m.status = text
	id := m.statusID
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return statusClearMsg{id: id}
	})
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.doc))
	b.WriteByte('\n')
	b.WriteString(progressBar(m.progress))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(statusStyle.Render("no tasks"))
		b.WriteByte('\n')
	}
	end := len(m.rows)
	if h := m.listHeight(); h > 0 && m.offset+h < end {
		end = m.offset + h
	}
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(i))
		b.WriteByte('\n')
	}

	b.WriteString(statusStyle.Render(m.status))
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderRow(i int) string {
	r := m.rows[i]
	n := &m.forest.Nodes[r.id]
	pointer := "  "
	if i == m.cursor {
		pointer = cursorStyle.Render("> ")
	}
	indent := strings.Repeat("  ", r.depth)
	var text string
	switch {
	case !n.IsCheckbox():
		text = headerStyle.Render(strings.Repeat("#", n.Level) + " " + n.Label)
	case n.Checked:
		text = "[x] " + doneStyle.Render(n.Label)
	default:
		text = "[ ] " + n.Label
	}
	return pointer + indent + text
}

func progressBar(p index.Progress) string {
	filled := 0
	if p.Total > 0 {
		filled = p.Completed * barWidth / p.Total
	}
	bar := barDoneStyle.Render(strings.Repeat("█", filled)) +
		barTodoStyle.Render(strings.Repeat("░", barWidth-filled))
	return fmt.Sprintf("%s %d/%d (%d%%)", bar, p.Completed, p.Total, p.Percent())
}

// Run shows the outline fed by sink until the user quits or ctx ends.
func Run(ctx context.Context, doc string, ctrl Controller, sink *Sink) error {
	p := tea.NewProgram(New(doc, ctrl, sink.Events(), sink.Resyncs()), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

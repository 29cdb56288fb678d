package syncer

import "mdtasks/internal/index"

type EventKind int

const (
	KindFullRerender EventKind = iota + 1
	KindTargetedStateSync
	KindProgressUpdate
	KindScrollEcho
	KindTreeRebuilt
)

func (k EventKind) String() string {
	switch k {
	case KindFullRerender:
		return "full_rerender"
	case KindTargetedStateSync:
		return "targeted_sync"
	case KindProgressUpdate:
		return "progress"
	case KindScrollEcho:
		return "scroll"
	case KindTreeRebuilt:
		return "tree"
	default:
		return "unknown"
	}
}

// Event is delivered to every view of a document.
type Event interface {
	Kind() EventKind
}

// FullRerender carries freshly rendered content. LineMap holds the source
// line of each interactive checkbox in render order.
type FullRerender struct {
	Content string `json:"content"`
	LineMap []int  `json:"line_map"`
}

// TargetedStateSync lists only the checkboxes whose state changed since the
// previous sync.
type TargetedStateSync struct {
	States []index.CheckboxState `json:"states"`
}

type ProgressUpdate struct {
	index.Progress
}

type ScrollEcho struct {
	Line int `json:"line"`
}

// TreeRebuilt carries a private copy of the outline; receivers may keep it.
type TreeRebuilt struct {
	Forest      *index.Forest `json:"-"`
	ShowHeaders bool          `json:"show_headers"`
}

func (FullRerender) Kind() EventKind      { return KindFullRerender }
func (TargetedStateSync) Kind() EventKind { return KindTargetedStateSync }
func (ProgressUpdate) Kind() EventKind    { return KindProgressUpdate }
func (ScrollEcho) Kind() EventKind        { return KindScrollEcho }
func (TreeRebuilt) Kind() EventKind       { return KindTreeRebuilt }

// Sink receives events from the coordinator goroutine. Publish must not
// block for long and must not call back into the coordinator synchronously.
type Sink interface {
	Publish(doc string, ev Event)
}

type SinkFunc func(doc string, ev Event)

func (f SinkFunc) Publish(doc string, ev Event) { f(doc, ev) }

type MultiSink []Sink

func (m MultiSink) Publish(doc string, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(doc, ev)
		}
	}
}

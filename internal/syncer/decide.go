package syncer

import (
	"time"

	"mdtasks/internal/index"
)

type Origin int

const (
	ExternalEdit Origin = iota
	LocalToggleEdit
)

func (o Origin) String() string {
	if o == LocalToggleEdit {
		return "local_toggle"
	}
	return "external_edit"
}

// LocalToggle records a toggle issued through the coordinator whose buffer
// change has not been observed yet.
type LocalToggle struct {
	seq          uint64
	Line         int
	PriorChecked bool
}

// Change is a buffer change notification tagged with where it came from.
type Change struct {
	Text    string
	Origin  Origin
	Toggles []LocalToggle
}

type SyncKind int

const (
	SyncNone SyncKind = iota
	SyncTargeted
	SyncFull
)

func (k SyncKind) String() string {
	switch k {
	case SyncTargeted:
		return "targeted"
	case SyncFull:
		return "full"
	default:
		return "none"
	}
}

type Debounce struct {
	Toggle time.Duration
	Edit   time.Duration
	Scroll time.Duration
}

var DefaultDebounce = Debounce{
	Toggle: 30 * time.Millisecond,
	Edit:   300 * time.Millisecond,
	Scroll: 10 * time.Millisecond,
}

type Plan struct {
	Kind  SyncKind
	Delay time.Duration
}

// decideSync picks the sync path for a change. A full sync already waiting
// in the lane is never downgraded.
func decideSync(pendingFull bool, ch Change, d Debounce) Plan {
	if pendingFull || ch.Origin != LocalToggleEdit {
		return Plan{Kind: SyncFull, Delay: d.Edit}
	}
	return Plan{Kind: SyncTargeted, Delay: d.Toggle}
}

// tagChange compares text with the previous snapshot. The change counts as
// a local toggle only when every differing line is a pending toggle whose
// checkbox now holds the opposite of its prior state. Verified toggles are
// returned in the change and removed from the remaining list.
func tagChange(prev, text string, pending []LocalToggle) (Change, []LocalToggle) {
	ch := Change{Text: text, Origin: ExternalEdit}
	if len(pending) == 0 {
		return ch, pending
	}
	prevLines := index.SplitLines(prev)
	nextLines := index.SplitLines(text)
	if len(prevLines) != len(nextLines) {
		return ch, pending
	}
	classified := index.ClassifyLines(nextLines)

	verified := make(map[int]bool, len(pending))
	var matched, remaining []LocalToggle
	for _, lt := range pending {
		if verified[lt.Line] {
			remaining = append(remaining, lt)
			continue
		}
		if lt.Line >= 0 && lt.Line < len(classified) && prevLines[lt.Line] != nextLines[lt.Line] {
			cl := classified[lt.Line]
			if cl.Kind == index.LineCheckbox && cl.Checked == !lt.PriorChecked {
				verified[lt.Line] = true
				matched = append(matched, lt)
				continue
			}
		}
		remaining = append(remaining, lt)
	}
	if len(matched) == 0 {
		return ch, pending
	}
	for i := range nextLines {
		if prevLines[i] != nextLines[i] && !verified[i] {
			return ch, pending
		}
	}
	ch.Origin = LocalToggleEdit
	ch.Toggles = matched
	return ch, remaining
}

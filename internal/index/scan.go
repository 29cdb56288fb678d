package index

// CheckboxBaseLevel is the nesting key of an unindented checkbox. Headers
// use their level (1..6) so every checkbox sorts below every header.
const CheckboxBaseLevel = 6

// Candidate is a header or checkbox line with its resolved nesting key.
type Candidate struct {
	Kind    LineKind
	Line    int
	Label   string
	Checked bool
	Key     int
}

type CheckboxState struct {
	Line    int  `json:"line"`
	Checked bool `json:"checked"`
}

// NestingKey buckets checkbox indentation in steps of two columns. Odd
// indents round down and tabs count as a single column.
func NestingKey(cl ClassifiedLine) int {
	if cl.Kind == LineHeader {
		return cl.HeaderLevel
	}
	return CheckboxBaseLevel + cl.IndentSpaces/2
}

func Scan(text string) []Candidate {
	return ScanLines(ClassifyText(text))
}

func ScanLines(lines []ClassifiedLine) []Candidate {
	out := make([]Candidate, 0, len(lines)/2)
	for _, cl := range lines {
		if cl.Kind == LinePlain {
			continue
		}
		out = append(out, Candidate{
			Kind:    cl.Kind,
			Line:    cl.Index,
			Label:   cl.Content,
			Checked: cl.Kind == LineCheckbox && cl.Checked,
			Key:     NestingKey(cl),
		})
	}
	return out
}

// ScanCheckboxes returns the state of every checkbox line in order.
func ScanCheckboxes(text string) []CheckboxState {
	lines := ClassifyText(text)
	out := make([]CheckboxState, 0, len(lines)/2)
	for _, cl := range lines {
		if cl.Kind != LineCheckbox {
			continue
		}
		out = append(out, CheckboxState{Line: cl.Index, Checked: cl.Checked})
	}
	return out
}

// DiffCheckboxStates lists the entries of next whose state differs from
// prev or whose line was not a checkbox in prev.
func DiffCheckboxStates(prev, next []CheckboxState) []CheckboxState {
	known := make(map[int]bool, len(prev))
	for _, st := range prev {
		known[st.Line] = st.Checked
	}
	var changed []CheckboxState
	for _, st := range next {
		if was, ok := known[st.Line]; ok && was == st.Checked {
			continue
		}
		changed = append(changed, st)
	}
	return changed
}

package index

type ToggleResult int

const (
	Toggled ToggleResult = iota
	NoCheckboxOnLine
	LineOutOfRange
)

func (r ToggleResult) String() string {
	switch r {
	case Toggled:
		return "toggled"
	case NoCheckboxOnLine:
		return "no_checkbox"
	case LineOutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

func (r ToggleResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// LineReader is the read side of a line-addressable buffer.
type LineReader interface {
	LineCount() int
	Line(i int) string
}

// LineEdit replaces the text of one line; the line ending is not part of Text.
type LineEdit struct {
	Line int
	Text string
}

// ToggleLine flips the checkbox token of a single line. Every other byte is
// kept. [ ] becomes [x]; [x] and [X] become [ ].
func ToggleLine(line string) (string, bool) {
	m := checkboxRe.FindStringSubmatchIndex(line)
	if m == nil {
		return line, false
	}
	pos := m[2]
	next := byte('x')
	if line[pos] != ' ' {
		next = ' '
	}
	b := []byte(line)
	b[pos] = next
	return string(b), true
}

func Toggle(buf LineReader, line int) (LineEdit, ToggleResult) {
	if line < 0 || line >= buf.LineCount() {
		return LineEdit{}, LineOutOfRange
	}
	text, ok := ToggleLine(buf.Line(line))
	if !ok {
		return LineEdit{}, NoCheckboxOnLine
	}
	return LineEdit{Line: line, Text: text}, Toggled
}

// Package document holds an in-memory copy of a text document addressed by
// line, keeping each line's original terminator.
package document

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLineOutOfRange = errors.New("line out of range")
	ErrLineChanged    = errors.New("line changed since it was read")
)

type line struct {
	text string
	eol  string
}

// Buffer is a line-addressable view of a document. String reproduces the
// parsed input byte for byte until a line is replaced.
type Buffer struct {
	lines []line
}

// Parse splits text on LF. A CR directly before LF belongs to the line
// ending, so CRLF and LF documents round-trip unchanged.
func Parse(text string) *Buffer {
	b := &Buffer{}
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			b.lines = append(b.lines, line{text: text})
			return b
		}
		l := line{text: text[:i], eol: "\n"}
		if strings.HasSuffix(l.text, "\r") {
			l.text = l.text[:len(l.text)-1]
			l.eol = "\r\n"
		}
		b.lines = append(b.lines, l)
		text = text[i+1:]
	}
}

func (b *Buffer) LineCount() int {
	return len(b.lines)
}

func (b *Buffer) Line(i int) string {
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return b.lines[i].text
}

// EOL returns the terminator of line i, empty for the last line.
func (b *Buffer) EOL(i int) string {
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return b.lines[i].eol
}

// ReplaceLine swaps the text of one line and keeps its terminator. The new
// text must not contain a line break.
func (b *Buffer) ReplaceLine(i int, text string) error {
	if i < 0 || i >= len(b.lines) {
		return fmt.Errorf("replace line %d of %d: %w", i, len(b.lines), ErrLineOutOfRange)
	}
	if strings.ContainsAny(text, "\r\n") {
		return fmt.Errorf("replace line %d: text contains a line break", i)
	}
	b.lines[i].text = text
	return nil
}

// SwapLine replaces line i only if it still reads prior.
func (b *Buffer) SwapLine(i int, prior, text string) error {
	if i >= 0 && i < len(b.lines) && b.lines[i].text != prior {
		return fmt.Errorf("replace line %d: %w", i, ErrLineChanged)
	}
	return b.ReplaceLine(i, text)
}

func (b *Buffer) String() string {
	var sb strings.Builder
	for _, l := range b.lines {
		sb.WriteString(l.text)
		sb.WriteString(l.eol)
	}
	return sb.String()
}

package index

import (
	"regexp"
	"strings"
)

type LineKind int

const (
	LinePlain LineKind = iota
	LineHeader
	LineCheckbox
)

func (k LineKind) String() string {
	switch k {
	case LineHeader:
		return "header"
	case LineCheckbox:
		return "checkbox"
	default:
		return "plain"
	}
}

func (k LineKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ClassifiedLine is one source line tagged as header, checkbox or plain.
// HeaderLevel is set for headers, Checked and IndentSpaces for checkboxes.
type ClassifiedLine struct {
	Index        int
	Kind         LineKind
	HeaderLevel  int
	Checked      bool
	Content      string
	IndentSpaces int
}

var (
	headerRe   = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	checkboxRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s+\[( |x|X)\]\s*(.*)$`)
	fenceRe    = regexp.MustCompile("^\\s*`{3,}[^`]*$")
)

// SplitLines splits on LF and drops the CR of CRLF endings. A trailing
// newline yields a final empty line, matching how editors count lines.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func ClassifyText(text string) []ClassifiedLine {
	return ClassifyLines(SplitLines(text))
}

// ClassifyLines tags every line. Fence delimiters and everything between
// them are plain, so bracket syntax inside code never becomes a checkbox.
func ClassifyLines(lines []string) []ClassifiedLine {
	out := make([]ClassifiedLine, len(lines))
	inFence := false
	for i, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
			out[i] = ClassifiedLine{Index: i, Kind: LinePlain}
			continue
		}
		if inFence {
			out[i] = ClassifiedLine{Index: i, Kind: LinePlain}
			continue
		}
		cl := ClassifyLine(line)
		cl.Index = i
		out[i] = cl
	}
	return out
}

// ClassifyLine classifies a single line without fence context.
func ClassifyLine(line string) ClassifiedLine {
	line = strings.TrimSuffix(line, "\r")
	if m := checkboxRe.FindStringSubmatch(line); m != nil {
		return ClassifiedLine{
			Kind:         LineCheckbox,
			Checked:      m[1] != " ",
			Content:      m[2],
			IndentSpaces: countIndent(line),
		}
	}
	if level, text, ok := parseATXHeading(line); ok {
		return ClassifiedLine{
			Kind:        LineHeader,
			HeaderLevel: level,
			Content:     text,
		}
	}
	return ClassifiedLine{Kind: LinePlain}
}

func isFenceLine(line string) bool {
	return fenceRe.MatchString(strings.TrimSuffix(line, "\r"))
}

func parseATXHeading(line string) (int, string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	m := headerRe.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, "", false
	}
	return len(m[1]), strings.TrimRight(m[2], " \t"), true
}

// countIndent counts leading whitespace characters; a tab counts as one.
func countIndent(line string) int {
	count := 0
	for _, r := range line {
		if r != ' ' && r != '\t' {
			break
		}
		count++
	}
	return count
}

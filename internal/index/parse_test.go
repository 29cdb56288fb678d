package index

import (
	"strings"
	"testing"
)

func TestClassifyLineCheckboxStrictness(t *testing.T) {
	cases := []struct {
		line    string
		kind    LineKind
		checked bool
	}{
		{"- [ ] open", LineCheckbox, false},
		{"- [x] done", LineCheckbox, true},
		{"- [X] done", LineCheckbox, true},
		{"* [ ] star", LineCheckbox, false},
		{"+ [x] plus", LineCheckbox, true},
		{"12. [ ] numbered", LineCheckbox, false},
		{"- [] empty", LinePlain, false},
		{"- [ x] leading space", LinePlain, false},
		{"- [x ] trailing space", LinePlain, false},
		{"- [xx] double", LinePlain, false},
		{"- [y] other", LinePlain, false},
		{"-[ ] no space", LinePlain, false},
		{"[ ] no marker", LinePlain, false},
		{"plain text", LinePlain, false},
	}
	for _, tc := range cases {
		got := ClassifyLine(tc.line)
		if got.Kind != tc.kind {
			t.Fatalf("%q: expected kind %s, got %s", tc.line, tc.kind, got.Kind)
		}
		if got.Checked != tc.checked {
			t.Fatalf("%q: expected checked=%v, got %v", tc.line, tc.checked, got.Checked)
		}
	}
}

func TestClassifyLineFields(t *testing.T) {
	cl := ClassifyLine("    - [x] Ship **it** <now>")
	if cl.Kind != LineCheckbox {
		t.Fatalf("expected checkbox, got %s", cl.Kind)
	}
	if cl.IndentSpaces != 4 {
		t.Fatalf("expected indent 4, got %d", cl.IndentSpaces)
	}
	if cl.Content != "Ship **it** <now>" {
		t.Fatalf("expected raw content, got %q", cl.Content)
	}

	tabbed := ClassifyLine("\t- [ ] tab")
	if tabbed.IndentSpaces != 1 {
		t.Fatalf("expected tab to count as one column, got %d", tabbed.IndentSpaces)
	}

	empty := ClassifyLine("- [x]")
	if empty.Kind != LineCheckbox || empty.Content != "" {
		t.Fatalf("expected empty checkbox, got %+v", empty)
	}
}

func TestClassifyLineHeaders(t *testing.T) {
	cases := []struct {
		line    string
		kind    LineKind
		level   int
		content string
	}{
		{"# Title", LineHeader, 1, "Title"},
		{"### Deep  ", LineHeader, 3, "Deep"},
		{"  ## Indented", LineHeader, 2, "Indented"},
		{"###### Six", LineHeader, 6, "Six"},
		{"####### Seven", LinePlain, 0, ""},
		{"#NoSpace", LinePlain, 0, ""},
		{"#", LinePlain, 0, ""},
	}
	for _, tc := range cases {
		got := ClassifyLine(tc.line)
		if got.Kind != tc.kind {
			t.Fatalf("%q: expected kind %s, got %s", tc.line, tc.kind, got.Kind)
		}
		if got.HeaderLevel != tc.level {
			t.Fatalf("%q: expected level %d, got %d", tc.line, tc.level, got.HeaderLevel)
		}
		if got.Content != tc.content {
			t.Fatalf("%q: expected content %q, got %q", tc.line, tc.content, got.Content)
		}
	}
}

func TestClassifyTextFenceSuppression(t *testing.T) {
	input := strings.Join([]string{
		"- [ ] real one",
		"```mermaid",
		"- [ ] fake",
		"A[Node] --> B[x]",
		"# not a header",
		"```",
		"- [x] real two",
	}, "\n")
	lines := ClassifyText(input)
	if len(lines) != 7 {
		t.Fatalf("expected 7 lines, got %d", len(lines))
	}
	for i := 1; i <= 5; i++ {
		if lines[i].Kind != LinePlain {
			t.Fatalf("expected fenced line %d to be plain, got %s", i, lines[i].Kind)
		}
	}
	states := ScanCheckboxes(input)
	if len(states) != 2 {
		t.Fatalf("expected 2 checkboxes, got %v", states)
	}
	if states[0].Line != 0 || states[1].Line != 6 || !states[1].Checked {
		t.Fatalf("unexpected checkbox states %v", states)
	}
}

func TestClassifyTextUnclosedFence(t *testing.T) {
	states := ScanCheckboxes("- [ ] before\n```\n- [ ] inside\n")
	if len(states) != 1 {
		t.Fatalf("expected unclosed fence to suppress the rest, got %v", states)
	}
}

func TestClassifyTextCRLF(t *testing.T) {
	lines := ClassifyText("# Head\r\n- [ ] a\r\n- [x] b\r\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0].Content != "Head" {
		t.Fatalf("expected header without CR, got %q", lines[0].Content)
	}
	if lines[1].Content != "a" || lines[2].Content != "b" {
		t.Fatalf("expected checkbox content without CR, got %q and %q", lines[1].Content, lines[2].Content)
	}
	for i, cl := range lines {
		if cl.Index != i {
			t.Fatalf("expected index %d, got %d", i, cl.Index)
		}
	}
}

func TestNestingKey(t *testing.T) {
	cases := []struct {
		line string
		key  int
	}{
		{"# H", 1},
		{"###### H", 6},
		{"- [ ] a", 6},
		{" - [ ] a", 6},
		{"  - [ ] a", 7},
		{"   - [ ] a", 7},
		{"    - [ ] a", 8},
	}
	for _, tc := range cases {
		got := NestingKey(ClassifyLine(tc.line))
		if got != tc.key {
			t.Fatalf("%q: expected key %d, got %d", tc.line, tc.key, got)
		}
	}
}

func TestDiffCheckboxStates(t *testing.T) {
	prev := []CheckboxState{{Line: 0, Checked: false}, {Line: 1, Checked: true}, {Line: 3, Checked: false}}
	next := []CheckboxState{{Line: 0, Checked: true}, {Line: 1, Checked: true}, {Line: 2, Checked: false}}
	diff := DiffCheckboxStates(prev, next)
	if len(diff) != 2 {
		t.Fatalf("expected 2 changes, got %v", diff)
	}
	if diff[0] != (CheckboxState{Line: 0, Checked: true}) || diff[1] != (CheckboxState{Line: 2, Checked: false}) {
		t.Fatalf("unexpected diff %v", diff)
	}
}

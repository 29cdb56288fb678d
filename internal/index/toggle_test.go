package index

import "testing"

type lineSlice []string

func (l lineSlice) LineCount() int    { return len(l) }
func (l lineSlice) Line(i int) string { return l[i] }

func TestToggleLine(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"- [ ] A", "- [x] A"},
		{"- [x] A", "- [ ] A"},
		{"- [X] A", "- [ ] A"},
		{"  * [ ] [link](http://x) **bold** 日本語", "  * [x] [link](http://x) **bold** 日本語"},
		{"3. [ ] - [ ] second token stays", "3. [x] - [ ] second token stays"},
	}
	for _, tc := range cases {
		got, ok := ToggleLine(tc.in)
		if !ok {
			t.Fatalf("%q: expected toggle", tc.in)
		}
		if got != tc.out {
			t.Fatalf("%q: expected %q, got %q", tc.in, tc.out, got)
		}
	}
}

func TestToggleIdempotent(t *testing.T) {
	for _, line := range []string{"- [ ] A", "- [x] A", "  + [ ] tail\r", "1. [x] ümlaut"} {
		once, ok := ToggleLine(line)
		if !ok {
			t.Fatalf("%q: expected toggle", line)
		}
		twice, _ := ToggleLine(once)
		if twice != line {
			t.Fatalf("expected %q after two toggles, got %q", line, twice)
		}
	}
}

func TestToggleResults(t *testing.T) {
	buf := lineSlice{"# T", "- [ ] A", "plain"}

	edit, res := Toggle(buf, 1)
	if res != Toggled {
		t.Fatalf("expected toggled, got %s", res)
	}
	if edit.Line != 1 || edit.Text != "- [x] A" {
		t.Fatalf("unexpected edit %+v", edit)
	}
	if _, res := Toggle(buf, 0); res != NoCheckboxOnLine {
		t.Fatalf("expected no_checkbox for header, got %s", res)
	}
	if _, res := Toggle(buf, 2); res != NoCheckboxOnLine {
		t.Fatalf("expected no_checkbox for plain line, got %s", res)
	}
	for _, line := range []int{-1, 3, 100} {
		if _, res := Toggle(buf, line); res != LineOutOfRange {
			t.Fatalf("line %d: expected out_of_range, got %s", line, res)
		}
	}
}

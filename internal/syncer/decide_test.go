package syncer

import "testing"

func TestDecideSync(t *testing.T) {
	d := Debounce{Toggle: 1, Edit: 10, Scroll: 100}
	cases := []struct {
		name        string
		pendingFull bool
		origin      Origin
		want        Plan
	}{
		{"external", false, ExternalEdit, Plan{Kind: SyncFull, Delay: 10}},
		{"toggle", false, LocalToggleEdit, Plan{Kind: SyncTargeted, Delay: 1}},
		{"toggle while full pending", true, LocalToggleEdit, Plan{Kind: SyncFull, Delay: 10}},
		{"external while full pending", true, ExternalEdit, Plan{Kind: SyncFull, Delay: 10}},
	}
	for _, tc := range cases {
		got := decideSync(tc.pendingFull, Change{Origin: tc.origin}, d)
		if got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestTagChange(t *testing.T) {
	prev := "# T\n- [ ] A\n- [x] B\n"

	ch, rest := tagChange(prev, "# T\n- [x] A\n- [x] B\n", []LocalToggle{{Line: 1, PriorChecked: false}})
	if ch.Origin != LocalToggleEdit || len(ch.Toggles) != 1 || len(rest) != 0 {
		t.Fatalf("expected verified toggle, got %+v rest=%v", ch, rest)
	}

	ch, rest = tagChange(prev, "# T\n- [x] A\n- [x] B\n", nil)
	if ch.Origin != ExternalEdit || len(rest) != 0 {
		t.Fatalf("expected external edit without pending toggles, got %+v", ch)
	}

	ch, rest = tagChange(prev, "# T\n- [x] A\n- [ ] B\n", []LocalToggle{{Line: 1, PriorChecked: false}})
	if ch.Origin != ExternalEdit || len(rest) != 1 {
		t.Fatalf("expected unmatched line to force external edit, got %+v rest=%v", ch, rest)
	}

	ch, rest = tagChange(prev, "# T\n- [ ] A edited\n- [x] B\n", []LocalToggle{{Line: 1, PriorChecked: false}})
	if ch.Origin != ExternalEdit || len(rest) != 1 {
		t.Fatalf("expected wrong checkbox state to be external, got %+v", ch)
	}

	ch, _ = tagChange(prev, "# T\n- [x] A\n- [x] B\nextra\n", []LocalToggle{{Line: 1, PriorChecked: false}})
	if ch.Origin != ExternalEdit {
		t.Fatalf("expected line count change to be external, got %+v", ch)
	}

	ch, rest = tagChange(prev, "# T\n- [x] A\n- [ ] B\n", []LocalToggle{
		{Line: 1, PriorChecked: false},
		{Line: 2, PriorChecked: true},
		{Line: 0, PriorChecked: false},
	})
	if ch.Origin != LocalToggleEdit || len(ch.Toggles) != 2 || len(rest) != 1 || rest[0].Line != 0 {
		t.Fatalf("expected two verified toggles and one left, got %+v rest=%v", ch, rest)
	}
}

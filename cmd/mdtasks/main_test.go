package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mdtasks/internal/auth"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MDTASKS_LOG_LEVEL", "error")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const plan = "# Plan\n- [ ] one\n  - [x] two\n```\n- [ ] not a task\n```\n"

func TestTreeCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plan.md", plan)
	out, err := runCmd(t, "", "--root", dir, "tree", path)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	for _, want := range []string{"   1  # Plan", "   2    [ ] one", "   3      [x] two", "1/2 done (50%)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "not a task") {
		t.Fatalf("expected fenced checkbox to be ignored:\n%s", out)
	}
}

func TestTreeCommandJSONWithoutHeaders(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plan.md", plan)
	out, err := runCmd(t, "", "--root", dir, "--show-headers=false", "tree", "--json", path)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	var got struct {
		Progress struct {
			Completed int `json:"completed"`
			Total     int `json:"total"`
		} `json:"progress"`
		Items []struct {
			Label    string `json:"label"`
			Children []struct {
				Label string `json:"label"`
			} `json:"children"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Progress.Completed != 1 || got.Progress.Total != 2 {
		t.Fatalf("expected 1/2, got %+v", got.Progress)
	}
	if len(got.Items) != 1 || got.Items[0].Label != "one" || len(got.Items[0].Children) != 1 {
		t.Fatalf("unexpected items %+v", got.Items)
	}
}

func TestScanCommandReadsStdin(t *testing.T) {
	out, err := runCmd(t, "# H\n- [X] done\n", "--root", t.TempDir(), "scan", "-")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 candidates, got %q", out)
	}
	if !strings.Contains(lines[1], `"kind":"checkbox"`) || !strings.Contains(lines[1], `"key":6`) || !strings.Contains(lines[1], `"checked":true`) {
		t.Fatalf("unexpected checkbox candidate %s", lines[1])
	}
}

func TestToggleAndProgressCommands(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plan.md", plan)

	if _, err := runCmd(t, "", "--root", dir, "toggle", "plan.md", "2"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "plan.md"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "- [x] one") {
		t.Fatalf("expected line toggled, got %q", data)
	}

	if _, err := runCmd(t, "", "--root", dir, "toggle", "plan.md", "1"); err == nil {
		t.Fatalf("expected error toggling a header line")
	}

	out, err := runCmd(t, "", "--root", dir, "progress")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !strings.Contains(out, "plan.md") || !strings.Contains(out, "2/2") {
		t.Fatalf("unexpected progress output:\n%s", out)
	}
}

func TestUserCommands(t *testing.T) {
	dir := t.TempDir()
	authFile := filepath.Join(dir, "users.txt")
	t.Setenv("MDTASKS_AUTH_FILE", authFile)

	if _, err := runCmd(t, "s3cret\n", "--root", dir, "user", "add", "bob", "--role", "viewer", "--password-stdin"); err != nil {
		t.Fatalf("user add: %v", err)
	}
	users, err := auth.LoadFile(authFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := users.Authenticate("bob", "s3cret"); !ok {
		t.Fatalf("expected bob to authenticate")
	}
	if users["bob"].Role != auth.RoleViewer {
		t.Fatalf("expected viewer role, got %s", users["bob"].Role)
	}

	out, err := runCmd(t, "", "--root", dir, "user", "list")
	if err != nil {
		t.Fatalf("user list: %v", err)
	}
	if !strings.Contains(out, "bob\tviewer") {
		t.Fatalf("unexpected list output %q", out)
	}

	if _, err := runCmd(t, "", "--root", dir, "user", "remove", "bob"); err != nil {
		t.Fatalf("user remove: %v", err)
	}
	if _, err := runCmd(t, "", "--root", dir, "user", "remove", "bob"); err == nil {
		t.Fatalf("expected error removing missing user")
	}
}

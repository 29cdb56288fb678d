package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Role string

const (
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleEditor:
		return RoleEditor, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// CanEdit reports whether the role may toggle checkboxes.
func (r Role) CanEdit() bool {
	return r != RoleViewer
}

type User struct {
	Name string
	Hash *Argon2idHash
	Role Role
}

type Users map[string]User

// Authenticate returns the user for name when password matches.
func (u Users) Authenticate(name, password string) (User, bool) {
	user, ok := u[name]
	if !ok || user.Hash == nil {
		return User{}, false
	}
	if !user.Hash.Verify(password) {
		return User{}, false
	}
	return user, true
}

func (u Users) Names() []string {
	names := make([]string, 0, len(u))
	for name := range u {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func LoadFile(path string) (Users, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auth file: %w", err)
	}
	defer f.Close()
	return parseUsers(f)
}

func parseUsers(r io.Reader) (Users, error) {
	users := make(Users)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		user, err := parseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("invalid auth line %d: %w", lineNum, err)
		}
		if _, exists := users[user.Name]; exists {
			return nil, fmt.Errorf("duplicate user %q in auth file", user.Name)
		}
		users[user.Name] = user
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read auth file: %w", err)
	}
	return users, nil
}

func parseEntry(line string) (User, error) {
	name, rest, ok := strings.Cut(line, ":")
	if !ok {
		return User{}, errors.New("expected user:hash")
	}
	name = strings.TrimSpace(name)
	hash, roleText, _ := strings.Cut(rest, ":")
	hash = strings.TrimSpace(hash)
	if name == "" || hash == "" {
		return User{}, errors.New("empty user or hash")
	}
	parsed, err := ParseArgon2idHash(hash)
	if err != nil {
		return User{}, err
	}
	role, err := ParseRole(roleText)
	if err != nil {
		return User{}, err
	}
	return User{Name: name, Hash: parsed, Role: role}, nil
}

func ValidateUserName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("username must not be empty")
	}
	if strings.ContainsAny(name, ": \t\r\n") {
		return errors.New("username must not contain ':' or whitespace")
	}
	return nil
}

// UpsertUser adds or replaces one entry, leaving comments and other users
// untouched. The file is replaced atomically with mode 0600.
func UpsertUser(path, name, hash string, role Role) error {
	if err := ValidateUserName(name); err != nil {
		return err
	}
	entry := fmt.Sprintf("%s:%s", name, hash)
	if role != "" && role != RoleEditor {
		entry += ":" + string(role)
	}
	return rewriteFile(path, func(lines []string) ([]string, error) {
		updated := false
		for i, raw := range lines {
			if entryName(raw) == name {
				lines[i] = entry
				updated = true
			}
		}
		if !updated {
			lines = append(lines, entry)
		}
		return lines, nil
	})
}

func RemoveUser(path, name string) error {
	return rewriteFile(path, func(lines []string) ([]string, error) {
		out := lines[:0]
		found := false
		for _, raw := range lines {
			if entryName(raw) == name {
				found = true
				continue
			}
			out = append(out, raw)
		}
		if !found {
			return nil, fmt.Errorf("user %q not found", name)
		}
		return out, nil
	})
}

func entryName(raw string) string {
	trim := strings.TrimSpace(raw)
	if trim == "" || strings.HasPrefix(trim, "#") {
		return ""
	}
	name, _, _ := strings.Cut(trim, ":")
	return strings.TrimSpace(name)
}

func rewriteFile(path string, edit func([]string) ([]string, error)) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create auth dir: %w", err)
	}
	var lines []string
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		lines = strings.Split(strings.TrimRight(string(content), "\n"), "\n")
		if len(lines) == 1 && lines[0] == "" {
			lines = nil
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("read auth file: %w", err)
	}
	lines, err = edit(lines)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".auth.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp auth file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod auth file: %w", err)
	}
	if _, err := tmp.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("write auth file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close auth file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace auth file: %w", err)
	}
	return nil
}

package web

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"

	"mdtasks/internal/auth"
	"mdtasks/internal/config"
)

type authEntry struct {
	plain string
	hash  *auth.Argon2idHash
	role  auth.Role
}

type Auth struct {
	users map[string]authEntry
}

// newAuth collects users from the auth file and the single configured
// user. It returns nil when neither is present, which disables auth.
func newAuth(cfg config.Config) (*Auth, error) {
	users := make(map[string]authEntry)

	path := cfg.AuthFilePath()
	fileUsers, err := auth.LoadFile(path)
	switch {
	case err == nil:
		for name, u := range fileUsers {
			users[name] = authEntry{hash: u.Hash, role: u.Role}
		}
	case cfg.AuthFile == "" && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("load users: %w", err)
	}

	if cfg.AuthUser != "" || cfg.AuthPass != "" {
		if cfg.AuthUser == "" || cfg.AuthPass == "" {
			return nil, errors.New("MDTASKS_AUTH_USER and MDTASKS_AUTH_PASS must be set together")
		}
		users[cfg.AuthUser] = authEntry{plain: cfg.AuthPass, role: auth.RoleEditor}
	}

	if len(users) == 0 {
		return nil, nil
	}
	return &Auth{users: users}, nil
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, pass, ok := r.BasicAuth()
		if !ok {
			unauthorized(w)
			return
		}
		entry, ok := a.verify(name, pass)
		if !ok {
			unauthorized(w)
			return
		}
		ctx := WithUser(r.Context(), User{Name: name, Role: entry.role, Authenticated: true})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="mdtasks"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

func (a *Auth) verify(name, pass string) (authEntry, bool) {
	entry, ok := a.users[name]
	if !ok {
		return authEntry{}, false
	}
	if entry.hash != nil {
		return entry, entry.hash.Verify(pass)
	}
	return entry, subtle.ConstantTimeCompare([]byte(entry.plain), []byte(pass)) == 1
}

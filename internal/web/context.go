package web

import (
	"context"
	"net/http"

	"mdtasks/internal/auth"
)

type contextKey int

const userKey contextKey = iota

type User struct {
	Name          string
	Role          auth.Role
	Authenticated bool
}

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func CurrentUser(ctx context.Context) (User, bool) {
	value := ctx.Value(userKey)
	user, ok := value.(User)
	return user, ok
}

// anonymous marks every request as an editor when auth is off.
func anonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithUser(r.Context(), User{Name: "anonymous", Role: auth.RoleEditor})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

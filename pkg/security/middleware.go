package security

import (
	"context"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserContextKey stores the *UserContext on the request context
	UserContextKey contextKey = "user_context"

	// SkipAuthKey marks routes that bypass authentication
	SkipAuthKey contextKey = "skip_auth"
)

// SkipAuth returns a context with the skip auth flag set.
func SkipAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, SkipAuthKey, true)
}

// WithUserContext stores a user context on ctx. Used by middleware and
// by tests that drive handlers directly.
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserContext returns the UserContext stored on ctx, or nil.
func GetUserContext(ctx context.Context) *UserContext {
	if user, ok := ctx.Value(UserContextKey).(*UserContext); ok {
		return user
	}
	return nil
}

// createGuestContext creates a guest user context for unauthenticated
// requests.
func createGuestContext(r *http.Request) *UserContext {
	return &UserContext{
		UserID:   0,
		UserName: "guest",
		RemoteID: r.RemoteAddr,
		Roles:    []string{"guest"},
		Claims:   map[string]any{},
	}
}

// NewAuthMiddleware creates an authentication middleware. Requests that
// fail authentication continue with a guest context; permission checks
// downstream decide between 401 and 403.
func NewAuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip, ok := r.Context().Value(SkipAuthKey).(bool); ok && skip {
				next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), createGuestContext(r))))
				return
			}

			user, err := auth.Authenticate(r)
			if err != nil || user == nil {
				user = createGuestContext(r)
			}
			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), user)))
		})
	}
}

// Package security provides request authentication and permission
// checks for the CRUD engine. Authentication pulls a UserContext out of
// the request; authorization checks permission slugs such as
// crud6.users.create against that user.
package security

import (
	"context"
	"net/http"
)

// UserContext holds authenticated user information.
type UserContext struct {
	UserID    int
	UserName  string
	SessionID string
	RemoteID  string
	Roles     []string
	Email     string
	Claims    map[string]any
}

// IsGuest reports whether the context belongs to an unauthenticated
// visitor.
func (u *UserContext) IsGuest() bool {
	return u == nil || u.UserID == 0
}

// Authenticator extracts and validates the user from an HTTP request.
type Authenticator interface {
	// Authenticate returns the UserContext for the request, or an
	// error if the request carries no valid identity.
	Authenticate(r *http.Request) (*UserContext, error)
}

// Authorizer decides whether a user holds a permission slug.
type Authorizer interface {
	CheckAccess(ctx context.Context, user *UserContext, permission string) bool
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(r *http.Request) (*UserContext, error)

func (f AuthenticatorFunc) Authenticate(r *http.Request) (*UserContext, error) {
	return f(r)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, user *UserContext, permission string) bool

func (f AuthorizerFunc) CheckAccess(ctx context.Context, user *UserContext, permission string) bool {
	return f(ctx, user, permission)
}

// Package identity carries the acting back-end user through a request.
package identity

import (
	"context"
	"slices"
)

// contextKey is a private type for context keys.
type contextKey int

const (
	actorContextKey contextKey = iota
	requestURLContextKey
	requestTokenContextKey
)

// Actor is the authenticated back-end user performing an operation.
type Actor struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Admin    bool     `json:"admin"`
	Modules  []string `json:"modules,omitempty"`
}

// HasAccess reports whether the actor may use a back-end module.
// Administrators have access to every module.
func (a *Actor) HasAccess(module string) bool {
	if a == nil {
		return false
	}
	if a.Admin {
		return true
	}
	return slices.Contains(a.Modules, module)
}

// UserID returns the actor ID, or 0 for a nil actor.
func (a *Actor) UserID() int64 {
	if a == nil {
		return 0
	}
	return a.ID
}

// Name returns the username, or an empty string for a nil actor.
func (a *Actor) Name() string {
	if a == nil {
		return ""
	}
	return a.Username
}

// WithActor adds the actor to the context.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

// GetActor retrieves the actor from the context.
func GetActor(ctx context.Context) *Actor {
	if a, ok := ctx.Value(actorContextKey).(*Actor); ok {
		return a
	}
	return nil
}

// WithRequestURL adds the URL of the current back-end request to the context.
// It is used to derive edit links for new versions.
func WithRequestURL(ctx context.Context, url string) context.Context {
	return context.WithValue(ctx, requestURLContextKey, url)
}

// GetRequestURL retrieves the request URL from the context.
func GetRequestURL(ctx context.Context) string {
	if u, ok := ctx.Value(requestURLContextKey).(string); ok {
		return u
	}
	return ""
}

// WithRequestToken adds the anti-CSRF token of the current request to the context.
func WithRequestToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, requestTokenContextKey, token)
}

// GetRequestToken retrieves the request token from the context.
func GetRequestToken(ctx context.Context) string {
	if t, ok := ctx.Value(requestTokenContextKey).(string); ok {
		return t
	}
	return ""
}

package registry

import (
	"context"
)

// PrincipalKind distinguishes the two principal tables
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "user"
	PrincipalAdmin PrincipalKind = "admin"
)

// Caller is the authenticated identity a request runs as
type Caller struct {
	ID   string        `json:"id"`
	Role Role          `json:"role"`
	Kind PrincipalKind `json:"kind"`
}

// IsAdmin reports whether the caller holds the ADMIN role
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type callerKey struct{}

// WithCaller returns a copy of ctx carrying caller
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored in ctx
func CallerFrom(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok
}

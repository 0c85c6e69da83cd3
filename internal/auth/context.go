package auth

import (
	"context"
	"errors"
)

type ctxKey int

const ctxPrincipal ctxKey = iota

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipal, p)
}

// PrincipalFrom returns nil when the request is unauthenticated.
func PrincipalFrom(ctx context.Context) *Principal {
	p, ok := ctx.Value(ctxPrincipal).(Principal)
	if !ok || p.UserID == "" {
		return nil
	}
	return &p
}

func Role(ctx context.Context) (string, error) {
	if p := PrincipalFrom(ctx); p != nil && p.Role != "" {
		return p.Role, nil
	}
	return "", errors.New("role not in context")
}

package auth

import (
	"context"

	"github.com/and161185/inkwell/internal/model"
)

type ctxKey string

const principalKey ctxKey = "inkwell.principal"

// WithPrincipal stores the authenticated principal in context.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the principal from context. Anonymous requests yield (nil, false).
func PrincipalFromCtx(ctx context.Context) (*model.Principal, bool) {
	v := ctx.Value(principalKey)
	if v == nil {
		return nil, false
	}
	p, ok := v.(model.Principal)
	if !ok {
		return nil, false
	}
	return &p, true
}

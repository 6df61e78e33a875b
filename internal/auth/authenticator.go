// Package auth turns bearer tokens into per-request principals and decides ownership checks.
package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/model"
	"github.com/and161185/inkwell/internal/token"
)

// TokenVerifier validates a raw token and returns its claims.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// AccountLookup is the read-only view of accounts the authenticator needs.
type AccountLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Authenticator resolves the Authorization header of a request into a principal.
// It never rejects a request: every failure leaves the request anonymous and
// handlers decide whether anonymous access is acceptable.
type Authenticator struct {
	tokens   TokenVerifier
	accounts AccountLookup
	log      *zap.Logger
}

// NewAuthenticator constructs an Authenticator with explicit dependencies.
func NewAuthenticator(tokens TokenVerifier, accounts AccountLookup, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, accounts: accounts, log: log}
}

// Authenticate inspects an Authorization header value.
//
// The result is (principal, true) when the token verifies and the account is not disabled.
// The role comes from a fresh account lookup, so role changes and disabling take effect
// without reissuing tokens; if the account no longer exists the principal has no role.
func (a *Authenticator) Authenticate(ctx context.Context, authorization string) (model.Principal, bool) {
	raw, ok := BearerToken(authorization)
	if !ok {
		return model.Principal{}, false
	}

	claims, err := a.tokens.Verify(raw)
	if err != nil {
		a.log.Info("token rejected", zap.String("kind", errs.TokenErrorKind(err)), zap.Error(err))
		return model.Principal{}, false
	}

	p := model.Principal{UserID: claims.UserID, Username: claims.Subject}

	u, err := a.accounts.GetByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		a.log.Info("token subject has no account", zap.Int64("user_id", claims.UserID))
		return p, true
	case err != nil:
		// fail closed: without the account status we cannot tell whether it was disabled
		a.log.Warn("account lookup failed", zap.Int64("user_id", claims.UserID), zap.Error(err))
		return model.Principal{}, false
	case u.Status == model.StatusDisabled:
		a.log.Info("token for disabled account", zap.Int64("user_id", claims.UserID))
		return model.Principal{}, false
	}

	p.Role = u.Role
	return p, true
}

// BearerToken extracts the token from "Bearer <token>". The scheme is matched case-insensitively.
func BearerToken(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(v[7:])
	if t == "" {
		return "", false
	}
	return t, true
}

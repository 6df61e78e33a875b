// Package token issues and verifies the signed bearer tokens that authenticate API callers.
//
// Tokens are compact HS512 JWTs. The payload carries the username as "sub", the numeric
// account id as "userId" and the "iat"/"exp" epoch seconds. No server-side record exists:
// a token stays valid until it expires.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock"

	"github.com/and161185/inkwell/internal/errs"
)

// MinKeyLen is the smallest accepted signing key: HS512 wants a key at least as long as its digest.
const MinKeyLen = 64

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"userId"`
}

// Service signs and verifies tokens with one process-wide key.
type Service struct {
	key   []byte
	ttl   time.Duration
	clock clock.Clock
}

// New constructs a token service. The key is copied and never modified afterwards.
func New(key []byte, ttl time.Duration, clk clock.Clock) (*Service, error) {
	if len(key) < MinKeyLen {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", MinKeyLen, len(key))
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Service{key: append([]byte(nil), key...), ttl: ttl, clock: clk}, nil
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a fresh token for the account.
func (s *Service) Issue(username string, userID int64) (string, error) {
	tok, _, err := s.IssueWithExpiry(username, userID)
	return tok, err
}

// IssueWithExpiry signs a fresh token and also reports its expiry.
func (s *Service) IssueWithExpiry(username string, userID int64) (string, time.Time, error) {
	if username == "" || userID <= 0 {
		return "", time.Time{}, fmt.Errorf("issue token: %w", errs.ErrValidation)
	}
	// NumericDate has second precision; truncate first so exp-iat equals the ttl exactly.
	now := s.clock.Now().Truncate(time.Second)
	exp := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: userID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, expiry and required claims and returns the claims as issued.
// Failures wrap errs.ErrTokenMalformed, errs.ErrTokenSignatureInvalid or errs.ErrTokenExpired.
func (s *Service) Verify(raw string) (*Claims, error) {
	var claims Claims
	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithStrictDecoding(),
	)
	_, err := p.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, classify(raw, err)
	}
	if claims.Subject == "" || claims.UserID <= 0 || claims.IssuedAt == nil {
		return nil, fmt.Errorf("missing required claim: %w", errs.ErrTokenMalformed)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("exp not after iat: %w", errs.ErrTokenMalformed)
	}
	return &claims, nil
}

// IsExpired reports whether the token's exp has passed without checking the signature.
// It is a diagnostic only: never trust a token on the strength of this check.
// Unreadable tokens and tokens without exp count as expired.
func (s *Service) IsExpired(raw string) bool {
	return IsExpiredAt(raw, s.clock.Now())
}

// IsExpiredAt is IsExpired against an explicit instant.
func IsExpiredAt(raw string, now time.Time) bool {
	claims, err := Peek(raw)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// Peek decodes the payload without verifying anything.
func Peek(raw string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTokenMalformed, err)
	}
	return &claims, nil
}

func classify(raw string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed) && signingInputValid(raw):
		// header and payload are fine, so the damage is in the signature segment
		return fmt.Errorf("%w: %v", errs.ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", errs.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", errs.ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", errs.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", errs.ErrTokenMalformed, err)
	}
}

// signingInputValid reports whether the header and payload segments decode on their own.
func signingInputValid(raw string) bool {
	head, rest, ok := strings.Cut(raw, ".")
	if !ok {
		return false
	}
	payload, _, ok := strings.Cut(rest, ".")
	if !ok {
		return false
	}
	var claims Claims
	_, _, err := jwt.NewParser(jwt.WithStrictDecoding()).ParseUnverified(head+"."+payload+".", &claims)
	return err == nil
}

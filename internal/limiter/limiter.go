// Package limiter throttles repeated failed logins per (username, client address).
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, username string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}

// Backend names accepted by configuration.
const (
	BackendNone     = "none"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Policy is the shared throttling policy.
type Policy struct {
	Window   time.Duration // failures older than this are forgotten
	MaxFails int           // failures within Window that trigger a block
	BlockFor time.Duration
}

// DefaultPolicy allows five failures per fifteen minutes.
func DefaultPolicy() Policy {
	return Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

func keySuffix(username string, ipHash []byte) string {
	return username + ":" + hex.EncodeToString(ipHash)
}

// Noop never blocks.
type Noop struct{}

func (Noop) Allow(context.Context, string, []byte) (bool, time.Duration, error) { return true, 0, nil }
func (Noop) Success(context.Context, string, []byte) error { return nil }
func (Noop) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}

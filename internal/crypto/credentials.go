package crypto

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Credentials is the credential service used by account workflows.
// Hashing is CPU-bound and deliberately slow, so at most `limit` hash or verify
// operations run at once; further callers wait or give up with their context.
type Credentials struct {
	hasher Hasher
	sem    *semaphore.Weighted
}

// NewCredentials wraps hasher with a concurrency gate. limit <= 0 means GOMAXPROCS.
func NewCredentials(hasher Hasher, limit int) *Credentials {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Credentials{hasher: hasher, sem: semaphore.NewWeighted(int64(limit))}
}

// Hash encodes plaintext with a fresh salt.
func (c *Credentials) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)
	return c.hasher.Hash([]byte(plaintext))
}

// Verify checks plaintext against an encoded hash.
func (c *Credentials) Verify(ctx context.Context, plaintext, encoded string) (bool, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer c.sem.Release(1)
	return Verify([]byte(plaintext), encoded), nil
}

// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names accepted by NewHasher.
const (
	AlgBcrypt   = "bcrypt"
	AlgArgon2id = "argon2id"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

const argonPrefix = "$argon2id$"

// Hasher produces self-describing password hashes: salt and cost travel inside the encoded string.
type Hasher interface {
	Hash(password []byte) (string, error)
}

// NewHasher returns the hasher for alg. cost is the bcrypt work factor and ignored for argon2id.
func NewHasher(alg string, cost int) (Hasher, error) {
	switch alg {
	case "", AlgBcrypt:
		return NewBcrypt(cost)
	case AlgArgon2id:
		return DefaultArgon2id(), nil
	default:
		return nil, fmt.Errorf("unknown password algorithm %q", alg)
	}
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Bcrypt hashes passwords with bcrypt at a fixed cost.
type Bcrypt struct{ cost int }

// NewBcrypt validates cost and constructs a bcrypt hasher.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash returns a freshly salted bcrypt hash.
func (b *Bcrypt) Hash(password []byte) (string, error) {
	h, err := bcrypt.GenerateFromPassword(password, b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Argon2id hashes passwords into PHC strings: $argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<salt>$<key>.
type Argon2id struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
}

// DefaultArgon2id returns the server defaults.
func DefaultArgon2id() *Argon2id {
	return &Argon2id{Time: argonTime, Memory: argonMemory, Threads: argonThreads, KeyLen: argonKeyLen}
}

// Hash returns a freshly salted argon2id hash.
func (a *Argon2id) Hash(password []byte) (string, error) {
	salt, err := RandBytes(argonSaltLen)
	if err != nil {
		return "", err
	}
	key := argon2.IDKey(password, salt, a.Time, a.Memory, a.Threads, a.KeyLen)
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argonPrefix, argon2.Version, a.Memory, a.Time, a.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded, whichever supported algorithm produced it.
// Unknown or corrupt encodings never verify.
func Verify(password []byte, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, argonPrefix):
		ok, err := verifyArgon2id(password, encoded)
		return err == nil && ok
	case isBcrypt(encoded):
		return bcrypt.CompareHashAndPassword([]byte(encoded), password) == nil
	default:
		return false
	}
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

var errBadArgonHash = errors.New("malformed argon2id hash")

func verifyArgon2id(password []byte, encoded string) (bool, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, errBadArgonHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errBadArgonHash
	}
	var (
		mem, iters uint32
		threads    uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &threads); err != nil {
		return false, errBadArgonHash
	}
	if iters == 0 || threads == 0 {
		return false, errBadArgonHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errBadArgonHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, errBadArgonHash
	}
	got := argon2.IDKey(password, salt, iters, mem, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

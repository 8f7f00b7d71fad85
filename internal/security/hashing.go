package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash is returned when a stored hash is not a valid argon2id PHC string.
var ErrInvalidHash = errors.New("invalid argon2id hash")

// ErrPasswordMismatch is returned by Compare when the password does not match the hash.
var ErrPasswordMismatch = errors.New("password does not match")

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// Hasher hashes and verifies passwords using Argon2id. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// NewHasher returns a Hasher with the given Argon2id parameters. Zero values
// fall back to 64 MiB / 3 iterations / 2 lanes, a reasonable default for
// interactive login.
func NewHasher(memoryKiB, iterations uint32, parallelism uint8) *Hasher {
	if memoryKiB == 0 {
		memoryKiB = 64 * 1024
	}
	if iterations == 0 {
		iterations = 3
	}
	if parallelism == 0 {
		parallelism = 2
	}
	return &Hasher{Memory: memoryKiB, Iterations: iterations, Parallelism: parallelism}
}

// Hash produces an argon2id hash of password in PHC string format
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash). The salt is random per call,
// and the parameters are embedded so they can be tuned without invalidating
// stored hashes. Do not pass an empty password.
func (h *Hasher) Hash(password []byte) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password must not be empty")
	}
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(password, salt, h.Iterations, h.Memory, h.Parallelism, argon2KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Iterations, h.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare verifies password against the stored PHC hash using the parameters
// embedded in the hash and constant-time comparison. Returns nil on match,
// ErrPasswordMismatch on mismatch, or ErrInvalidHash for malformed input.
func (h *Hasher) Compare(hash string, password []byte) error {
	memory, iterations, parallelism, salt, key, err := decodeHash(hash)
	if err != nil {
		return err
	}
	candidate := argon2.IDKey(password, salt, iterations, memory, parallelism, uint32(len(key)))
	if subtle.ConstantTimeCompare(candidate, key) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

func decodeHash(hash string) (memory, iterations uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	var p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &p); err != nil {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	if memory == 0 || iterations == 0 || p == 0 || p > 255 {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	parallelism = uint8(p)
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	return memory, iterations, parallelism, salt, key, nil
}

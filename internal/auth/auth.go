// Package auth stores users for the web UI as argon2id password hashes in a
// plain text file, one "user:hash[:role]" entry per line.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	defaultMemory     = 64 * 1024
	defaultIterations = 3
	defaultThreads    = 1
	defaultSaltLength = 16
	defaultKeyLength  = 32
)

var ErrInvalidHash = errors.New("invalid argon2id hash")

type Argon2idHash struct {
	m    uint32
	t    uint32
	p    uint8
	salt []byte
	sum  []byte
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	salt := make([]byte, defaultSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	h := &Argon2idHash{m: defaultMemory, t: defaultIterations, p: defaultThreads, salt: salt}
	h.sum = h.key(password, defaultKeyLength)
	return h.String(), nil
}

func (h *Argon2idHash) key(password string, n uint32) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.t, h.m, h.p, n)
}

// String encodes the hash in PHC format.
func (h *Argon2idHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.m, h.t, h.p,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.sum),
	)
}

func ParseArgon2idHash(phc string) (*Argon2idHash, error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, fmt.Errorf("%w: bad format", ErrInvalidHash)
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported version %s", ErrInvalidHash, parts[2])
	}
	h := &Argon2idHash{}
	seen := 0
	for _, param := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(param, "=")
		if !ok {
			return nil, fmt.Errorf("%w: bad param %q", ErrInvalidHash, param)
		}
		var bits int
		switch name {
		case "m", "t":
			bits = 32
		case "p":
			bits = 8
		default:
			return nil, fmt.Errorf("%w: unknown param %q", ErrInvalidHash, name)
		}
		v, err := strconv.ParseUint(value, 10, bits)
		if err != nil || v == 0 {
			return nil, fmt.Errorf("%w: bad %s", ErrInvalidHash, name)
		}
		switch name {
		case "m":
			h.m = uint32(v)
		case "t":
			h.t = uint32(v)
		case "p":
			h.p = uint8(v)
		}
		seen++
	}
	if seen != 3 {
		return nil, fmt.Errorf("%w: expected m, t and p", ErrInvalidHash)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: bad salt", ErrInvalidHash)
	}
	if h.sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.sum) == 0 {
		return nil, fmt.Errorf("%w: bad key", ErrInvalidHash)
	}
	return h, nil
}

func (h *Argon2idHash) Verify(password string) bool {
	return subtle.ConstantTimeCompare(h.key(password, uint32(len(h.sum))), h.sum) == 1
}

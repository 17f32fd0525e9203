package password

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidHash = errors.New("invalid password hash")

// Hasher hashes new passwords and verifies plaintext against a stored hash.
// Verify returns (false, nil) on mismatch and an error only for malformed hashes.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) (bool, error)
}

// New returns the hasher named by algorithm. Verification of hashes produced by
// the other supported algorithm keeps working, so switching PASSWORD_HASHER does
// not lock out existing members.
func New(algorithm string, bcryptCost int) (Hasher, error) {
	bcryptHasher := NewBcrypt(bcryptCost)
	argonHasher := NewArgon2id(DefaultArgon2idParams())

	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", "bcrypt":
		return &multiHasher{primary: bcryptHasher, bcrypt: bcryptHasher, argon2id: argonHasher}, nil
	case "argon2id":
		return &multiHasher{primary: argonHasher, bcrypt: bcryptHasher, argon2id: argonHasher}, nil
	default:
		return nil, fmt.Errorf("unsupported password hasher: %q", algorithm)
	}
}

type multiHasher struct {
	primary  Hasher
	bcrypt   *Bcrypt
	argon2id *Argon2id
}

func (m *multiHasher) Hash(plaintext string) (string, error) {
	return m.primary.Hash(plaintext)
}

func (m *multiHasher) Verify(plaintext, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return m.argon2id.Verify(plaintext, encoded)
	case strings.HasPrefix(encoded, "$2"):
		return m.bcrypt.Verify(plaintext, encoded)
	default:
		return false, ErrInvalidHash
	}
}

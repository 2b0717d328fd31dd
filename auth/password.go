// Package auth provides password hashing and bearer-token issuance and
// verification for the library API.
package auth

import "golang.org/x/crypto/bcrypt"

// Hasher hashes passwords with bcrypt. It implements
// folio.PasswordHasher.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher at bcrypt's default work factor.
func NewHasher() Hasher {
	return Hasher{cost: bcrypt.DefaultCost}
}

// Hash returns a salted one-way hash of the password.
func (h Hasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether the password matches the stored hash.
// bcrypt's own comparison is constant-time over the digest.
func (h Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

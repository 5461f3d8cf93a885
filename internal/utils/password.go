// Package utils provides helpers for password hashing and access
// token issuing.
package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash of the password.  Costs outside
// bcrypt's supported range are clamped to the library default rather
// than failing registration over a config typo.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether the plain password matches the bcrypt
// hash.  The comparison is constant-time inside bcrypt; malformed
// hashes simply fail the match.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

package utils

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrHashingFailed indicates a configuration-level hashing failure (for
// example an invalid cost). It is never downgraded to a credential error.
var ErrHashingFailed = errors.New("password hashing failed")

var (
	bcryptCost = bcrypt.DefaultCost
	dummyHash  string
)

func init() {
	h, err := generateDummyHash(bcryptCost)
	if err != nil {
		panic(err)
	}
	dummyHash = h
}

// SetBcryptCost sets the work factor used for new password hashes. Existing
// hashes keep the cost encoded in them and remain verifiable. The dummy hash
// is regenerated at the new cost, so the unknown-email verification costs the
// same as a real one.
func SetBcryptCost(cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return ErrHashingFailed
	}
	dummy, err := generateDummyHash(cost)
	if err != nil {
		return err
	}
	bcryptCost = cost
	dummyHash = dummy
	return nil
}

// HashPassword hashes a plaintext password with bcrypt. The output encodes
// algorithm, cost and salt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", errors.Join(ErrHashingFailed, err)
	}
	return string(bytes), nil
}

// CheckPassword verifies a plaintext password against a bcrypt hash.
// bcrypt's comparison is constant-time with respect to the outcome.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NeedsRehash reports whether a stored hash was created with a lower cost
// than the currently configured one, enabling rehash-on-login upgrades.
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return cost < bcryptCost
}

// DummyHash returns a bcrypt hash of a random throwaway secret at the
// configured cost. Login runs CheckPassword against it when the email does
// not resolve to a user, so the failure path takes the same time whether or
// not the account exists. Pinning it to a fixed cost would reopen that timing
// signal whenever the configured cost differs.
func DummyHash() string {
	return dummyHash
}

func generateDummyHash(cost int) (string, error) {
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return "", errors.Join(ErrHashingFailed, err)
	}
	h, err := bcrypt.GenerateFromPassword(secret, cost)
	if err != nil {
		return "", errors.Join(ErrHashingFailed, err)
	}
	return string(h), nil
}

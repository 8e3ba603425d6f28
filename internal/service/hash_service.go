package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHashService implements ports.HashService using bcrypt.
// Used for user passwords and API key secrets.
type BcryptHashService struct {
	cost int
}

// NewBcryptHashService creates a hash service with the given cost.
// Cost 0 selects bcrypt.DefaultCost.
func NewBcryptHashService(cost int) *BcryptHashService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHashService{cost: cost}
}

// Hash generates a bcrypt hash of the plaintext.
func (s *BcryptHashService) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing: %w", err)
	}
	return string(hash), nil
}

// Verify checks if plaintext matches the given bcrypt hash.
// A mismatch is not an error; malformed hashes are.
func (s *BcryptHashService) Verify(plaintext string, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("comparing hash: %w", err)
}

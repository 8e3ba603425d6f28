package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Reference prefixes for public identifiers.
const (
	orderRefPrefix   = "pf_order_"
	paymentRefPrefix = "pf_pay_"
	refundRefPrefix  = "pf_rfnd_"
	keyIDPrefix      = "pf_key_"
	keySecretPrefix  = "pf_sec_"
)

// RandReferenceService implements ports.ReferenceService with CSPRNG hex output.
type RandReferenceService struct{}

// NewRandReferenceService creates a new reference generator.
func NewRandReferenceService() *RandReferenceService {
	return &RandReferenceService{}
}

func randomHex(nbytes int) (string, error) {
	buf := make([]byte, nbytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func prefixedRef(prefix string, nbytes int) (string, error) {
	suffix, err := randomHex(nbytes)
	if err != nil {
		return "", err
	}
	return prefix + suffix, nil
}

// OrderRef returns a new opaque order reference.
func (s *RandReferenceService) OrderRef() (string, error) {
	return prefixedRef(orderRefPrefix, 10)
}

// PaymentRef returns a new opaque payment reference.
func (s *RandReferenceService) PaymentRef() (string, error) {
	return prefixedRef(paymentRefPrefix, 10)
}

// RefundRef returns a new opaque refund reference.
func (s *RandReferenceService) RefundRef() (string, error) {
	return prefixedRef(refundRefPrefix, 10)
}

// KeyID returns a new public API key identifier.
func (s *RandReferenceService) KeyID() (string, error) {
	return prefixedRef(keyIDPrefix, 8)
}

// KeySecret returns a new API key secret. Shown once, never persisted.
func (s *RandReferenceService) KeySecret() (string, error) {
	return prefixedRef(keySecretPrefix, 16)
}

// WebhookSecret returns a new per-merchant webhook signing secret.
func (s *RandReferenceService) WebhookSecret() (string, error) {
	return randomHex(32)
}

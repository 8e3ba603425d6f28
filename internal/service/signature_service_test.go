package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secret := "whsec-my-secret"
	body := []byte(`{"event":"payment.captured","data":{"payment_ref":"pf_pay_abc"}}`)

	signature := svc.Sign(secret, body)

	// Should be lowercase hex (SHA-256)
	assert.Regexp(t, `^[0-9a-f]{64}$`, signature)

	// Verify with correct secret
	assert.True(t, svc.Verify(secret, body, signature))

	// Signing is deterministic
	assert.Equal(t, signature, svc.Sign(secret, body))
}

func TestHMACSignatureService_VerifyFailures(t *testing.T) {
	svc := NewHMACSignatureService()
	body := []byte(`{"event":"order.paid"}`)
	signature := svc.Sign("secret-a", body)

	assert.False(t, svc.Verify("secret-b", body, signature), "wrong secret should fail")
	assert.False(t, svc.Verify("secret-a", []byte(`{"event":"order.paid" }`), signature), "modified body should fail")
	assert.False(t, svc.Verify("secret-a", body, signature[:63]+"0"), "tampered signature should fail")
	assert.False(t, svc.Verify("secret-a", body, ""), "empty signature should fail")
}

func TestHMACSignatureService_DifferentSecretsDifferentSignatures(t *testing.T) {
	svc := NewHMACSignatureService()

	body := []byte("payload")
	assert.NotEqual(t, svc.Sign("one", body), svc.Sign("two", body))
}

func TestHMACSignatureService_EmptyBody(t *testing.T) {
	svc := NewHMACSignatureService()

	signature := svc.Sign("secret", nil)
	assert.Regexp(t, `^[0-9a-f]{64}$`, signature)
	assert.True(t, svc.Verify("secret", nil, signature))
}

package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindingValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	return v
}

// --- custom validator tests ---

func TestValidateCurrency(t *testing.T) {
	v := bindingValidator(t)

	assert.NoError(t, v.Var("INR", "currency"))
	assert.NoError(t, v.Var("USD", "currency"))

	assert.Error(t, v.Var("inr", "currency"))
	assert.Error(t, v.Var("RUPEES", "currency"))
	assert.Error(t, v.Var("IN", "currency"))
	assert.Error(t, v.Var("", "currency"))
}

func TestValidateSafeURL(t *testing.T) {
	v := bindingValidator(t)

	assert.NoError(t, v.Var("https://example.com/webhook", "safe_url"))
	assert.NoError(t, v.Var("http://localhost:3000", "safe_url"))
	assert.NoError(t, v.Var("", "safe_url")) // optional

	assert.Error(t, v.Var("ftp://example.com", "safe_url"))
	assert.Error(t, v.Var("javascript:alert(1)", "safe_url"))
	assert.Error(t, v.Var("not a url", "safe_url"))
}

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterRequest{
		Name:     "  Alice  ",
		Email:    " alice@example.com ",
		Password: "  supersecret  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "Alice", req.Name)
	assert.Equal(t, "alice@example.com", req.Email)
	assert.Equal(t, "supersecret", req.Password)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	name := "Acme <script>alert('x')</script> Stores"
	req := CreateMerchantRequest{
		BusinessName:  name,
		BusinessEmail: "owner@acme.example",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.BusinessName, "&lt;script&gt;")
	assert.NotContains(t, req.BusinessName, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	site := "  https://acme.example  "
	req := UpdateMerchantRequest{Website: &site}
	SanitizeStruct(&req)

	assert.Equal(t, "https://acme.example", *req.Website)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := UpdateMerchantRequest{}
	SanitizeStruct(&req)

	assert.Nil(t, req.Website)
	assert.Nil(t, req.WebhookURL)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	req := RegisterRequest{Name: "  bob  "}
	SanitizeStruct(req)

	// Passing by value cannot mutate the caller's struct.
	assert.Equal(t, "  bob  ", req.Name)
}

package samltoken

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSignedAssertion(t *testing.T, h *Handler, key *RSAKey, notBefore, expires time.Time, audience string) []byte {
	t.Helper()

	identity := NewClaimsIdentity()
	identity.AddClaim(Claim{Type: ClaimTypeNameIdentifier, Value: "alice"})
	identity.AddClaim(Claim{Type: "email", Value: "alice@example"})

	descriptor := TokenDescriptor{
		Issuer:             "https://idp.example/",
		Subject:            identity,
		NotBefore:          &notBefore,
		Expires:            &expires,
		Audience:           audience,
		SigningCredentials: key,
	}

	token, err := h.CreateToken(descriptor)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, h.WriteToken(&buf, token))
	return buf.Bytes()
}

func TestValidateToken_HappyPath(t *testing.T) {
	h := mustHandler(t)
	key := generateTestKey(t, "k1")

	notBefore := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	tokenBytes := buildSignedAssertion(t, h, key, notBefore, expires, "urn:rp:test")

	params := NewValidationParameters()
	params.IssuerSigningKeys = []SecurityKey{key}
	params.ValidAudiences = []string{"urn:rp:test"}
	params.ValidateLifetime = func(nb, na *time.Time, assertion *Assertion, p *ValidationParameters) error {
		now := time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)
		if nb != nil && now.Before(*nb) {
			return newErr(KindInvalidLifetime, "not yet valid")
		}
		if na != nil && !now.Before(*na) {
			return newErr(KindInvalidLifetime, "expired")
		}
		return nil
	}

	result, err := h.ValidateToken(tokenBytes, params)
	require.NoError(t, err)

	nameID, ok := result.Principal.NameIdentifier()
	require.True(t, ok)
	assert.Equal(t, "alice", nameID)

	email, ok := result.Principal.FindFirst("email")
	require.True(t, ok)
	assert.Equal(t, "alice@example", email.Value)

	require.NotNil(t, result.Token.SigningKey)
	assert.Equal(t, "k1", result.Token.SigningKey.KeyID())
}

func TestValidateToken_StaleKey(t *testing.T) {
	h := mustHandler(t)
	signingKey := generateTestKey(t, "k1")
	otherKey := generateTestKey(t, "k2")

	notBefore := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	tokenBytes := buildSignedAssertion(t, h, signingKey, notBefore, expires, "urn:rp:test")

	params := NewValidationParameters()
	params.IssuerSigningKeys = []SecurityKey{otherKey}
	params.ValidAudiences = []string{"urn:rp:test"}

	_, err := h.ValidateToken(tokenBytes, params)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSignatureKeyNotFound))
}

func TestValidateToken_Expired(t *testing.T) {
	h := mustHandler(t)
	key := generateTestKey(t, "k1")

	notBefore := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	tokenBytes := buildSignedAssertion(t, h, key, notBefore, expires, "urn:rp:test")

	params := NewValidationParameters()
	params.IssuerSigningKeys = []SecurityKey{key}
	params.ValidAudiences = []string{"urn:rp:test"}
	params.ClockSkew = 0
	params.ValidateLifetime = func(nb, na *time.Time, assertion *Assertion, p *ValidationParameters) error {
		now := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
		if na != nil && !now.Before(*na) {
			return newErr(KindInvalidLifetime, "expired")
		}
		return nil
	}

	_, err := h.ValidateToken(tokenBytes, params)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidLifetime))
}

func TestValidateToken_WrongAudience(t *testing.T) {
	h := mustHandler(t)
	key := generateTestKey(t, "k1")

	notBefore := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	tokenBytes := buildSignedAssertion(t, h, key, notBefore, expires, "urn:rp:test")

	params := NewValidationParameters()
	params.IssuerSigningKeys = []SecurityKey{key}
	params.ValidAudiences = []string{"urn:rp:other"}
	params.ValidateLifetime = func(nb, na *time.Time, assertion *Assertion, p *ValidationParameters) error {
		return nil
	}

	_, err := h.ValidateToken(tokenBytes, params)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidAudience))
}

func TestValidateToken_OneTimeUseRequiresOverride(t *testing.T) {
	h := mustHandler(t)
	key := generateTestKey(t, "k1")

	identity := NewClaimsIdentity()
	identity.AddClaim(Claim{Type: ClaimTypeNameIdentifier, Value: "alice"})

	token, err := h.CreateToken(TokenDescriptor{
		Issuer:             "https://idp.example/",
		Subject:            identity,
		SigningCredentials: key,
	})
	require.NoError(t, err)
	token.Conditions = &Conditions{OneTimeUse: &struct{}{}}

	var buf bytes.Buffer
	require.NoError(t, h.WriteToken(&buf, token))

	params := NewValidationParameters()
	params.IssuerSigningKeys = []SecurityKey{key}

	_, err = h.ValidateToken(buf.Bytes(), params)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRequiresOverride))
}

func TestActorRoundTrip(t *testing.T) {
	h := mustHandler(t)
	key := generateTestKey(t, "k1")

	svc := NewClaimsIdentity()
	svc.AddClaim(Claim{Type: ClaimTypeNameIdentifier, Value: "svc"})
	svc.AddClaim(Claim{Type: "role", Value: "system"})

	bob := NewClaimsIdentity()
	bob.AddClaim(Claim{Type: ClaimTypeNameIdentifier, Value: "bob"})
	bob.AddClaim(Claim{Type: "role", Value: "admin"})
	bob.Actor = svc

	notBefore := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	token, err := h.CreateToken(TokenDescriptor{
		Issuer:             "https://idp.example/",
		Subject:            bob,
		NotBefore:          &notBefore,
		Expires:            &expires,
		SigningCredentials: key,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, h.WriteToken(&buf, token))

	params := NewValidationParameters()
	params.IssuerSigningKeys = []SecurityKey{key}
	params.ValidateLifetime = func(nb, na *time.Time, assertion *Assertion, p *ValidationParameters) error {
		return nil
	}

	result, err := h.ValidateToken(buf.Bytes(), params)
	require.NoError(t, err)

	nameID, _ := result.Principal.NameIdentifier()
	assert.Equal(t, "bob", nameID)
	role, ok := result.Principal.FindFirst("role")
	require.True(t, ok)
	assert.Equal(t, "admin", role.Value)

	require.NotNil(t, result.Principal.Actor)
	actorNameID, _ := result.Principal.Actor.NameIdentifier()
	assert.Equal(t, "svc", actorNameID)
	actorRole, ok := result.Principal.Actor.FindFirst("role")
	require.True(t, ok)
	assert.Equal(t, "system", actorRole.Value)
}

func TestCanReadToken_OversizeAndMalformed(t *testing.T) {
	h, err := NewHandlerBuilder().WithMaxTokenSize(16).Build()
	require.NoError(t, err)

	assert.False(t, h.CanReadToken([]byte("   ")))
	assert.False(t, h.CanReadToken([]byte("<NotAnAssertion/>")))
	assert.False(t, h.CanReadToken([]byte("this input is definitely longer than sixteen bytes")))

	_, err = h.ValidateToken([]byte("this input is definitely longer than sixteen bytes"), NewValidationParameters())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindOversizeInput))
}

func TestHandlerBuilder_InvalidMaxTokenSize(t *testing.T) {
	_, err := NewHandlerBuilder().WithMaxTokenSize(0).Build()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidConfiguration))
}

package token

import (
	"testing"
	"time"

	"github.com/artpromedia/samltoken"
	"github.com/artpromedia/samltoken/internal/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(&config.JWTConfig{
		SecretKey:         "test-secret-key-material-for-hmac",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "samltoken",
		Audience:          "samltoken-clients",
	})
}

func testPrincipal() *samltoken.ClaimsIdentity {
	identity := samltoken.NewClaimsIdentity()
	identity.AddClaim(samltoken.Claim{Type: samltoken.ClaimTypeNameIdentifier, Value: "alice"})
	identity.AddClaim(samltoken.Claim{Type: "email", Value: "alice@example.com"})
	identity.AddClaim(samltoken.Claim{Type: "department", Value: "engineering"})
	return identity
}

func TestIssueAndValidate_RoundTrip(t *testing.T) {
	svc := newTestService()
	connectionID := uuid.New()

	signed, expiry, err := svc.Issue(IssueParams{
		ConnectionID: connectionID,
		Principal:    testPrincipal(),
	})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, expiry)

	claims, err := svc.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.NameID)
	assert.Equal(t, connectionID, claims.ConnectionID)
	assert.Equal(t, "alice@example.com", claims.ClaimTypes["email"])
	assert.Equal(t, "engineering", claims.ClaimTypes["department"])
	assert.Equal(t, "samltoken", claims.Issuer)
	assert.Empty(t, claims.ActorNameID)
}

func TestIssue_CarriesActorNameID(t *testing.T) {
	svc := newTestService()

	actor := samltoken.NewClaimsIdentity()
	actor.AddClaim(samltoken.Claim{Type: samltoken.ClaimTypeNameIdentifier, Value: "delegate-service"})

	principal := testPrincipal()
	principal.Actor = actor

	signed, _, err := svc.Issue(IssueParams{ConnectionID: uuid.New(), Principal: principal})
	require.NoError(t, err)

	claims, err := svc.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "delegate-service", claims.ActorNameID)
}

func TestValidate_RejectsTamperedToken(t *testing.T) {
	svc := newTestService()

	signed, _, err := svc.Issue(IssueParams{ConnectionID: uuid.New(), Principal: testPrincipal()})
	require.NoError(t, err)

	_, err = svc.Validate(signed + "tampered")
	assert.Error(t, err)
}

func TestValidate_RejectsWrongSigningKey(t *testing.T) {
	svc := newTestService()
	other := NewService(&config.JWTConfig{
		SecretKey:         "a-completely-different-secret",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "samltoken",
		Audience:          "samltoken-clients",
	})

	signed, _, err := svc.Issue(IssueParams{ConnectionID: uuid.New(), Principal: testPrincipal()})
	require.NoError(t, err)

	_, err = other.Validate(signed)
	assert.Error(t, err)
}

func TestValidate_RejectsExpiredToken(t *testing.T) {
	svc := NewService(&config.JWTConfig{
		SecretKey:         "test-secret-key-material-for-hmac",
		AccessTokenExpiry: -time.Minute,
		Issuer:            "samltoken",
		Audience:          "samltoken-clients",
	})

	signed, _, err := svc.Issue(IssueParams{ConnectionID: uuid.New(), Principal: testPrincipal()})
	require.NoError(t, err)

	_, err = svc.Validate(signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

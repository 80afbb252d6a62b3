package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/artpromedia/samltoken"
	"github.com/artpromedia/samltoken/internal/config"
	"github.com/artpromedia/samltoken/internal/models"
	"github.com/artpromedia/samltoken/internal/testutil"
	"github.com/artpromedia/samltoken/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestIdP(t *testing.T) (*samltoken.RSAKey, string) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "sso-service-test-idp"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	certPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	return samltoken.NewRSASigningKey("idp-key", priv, cert), certPEM
}

func signAssertion(t *testing.T, h *samltoken.Handler, key *samltoken.RSAKey, issuer, audience, nameID string) []byte {
	t.Helper()

	identity := samltoken.NewClaimsIdentity()
	identity.AddClaim(samltoken.Claim{Type: samltoken.ClaimTypeNameIdentifier, Value: nameID})
	identity.AddClaim(samltoken.Claim{Type: "email", Value: nameID + "@example.com"})

	notBefore := time.Now().Add(-time.Minute)
	expires := time.Now().Add(time.Hour)

	descriptor := samltoken.TokenDescriptor{
		Issuer:             issuer,
		Subject:            identity,
		NotBefore:          &notBefore,
		Expires:            &expires,
		Audience:           audience,
		SigningCredentials: key,
	}

	tok, err := h.CreateToken(descriptor)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, h.WriteToken(&buf, tok))
	return buf.Bytes()
}

func newTestSSOService(t *testing.T, repo connectionRepository) (*SSOService, *samltoken.Handler) {
	t.Helper()

	h, err := samltoken.NewHandlerBuilder().Build()
	require.NoError(t, err)

	tokens := token.NewService(&config.JWTConfig{
		SecretKey:         "test-secret-key-material-for-hmac",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "samltoken",
		Audience:          "samltoken-clients",
	})

	cfg := &config.Config{}
	return NewSSOService(repo, h, tokens, nil, cfg), h
}

func TestHandleACS_HappyPath(t *testing.T) {
	key, certPEM := generateTestIdP(t)
	repo := testutil.NewMockRepository()
	fixtures := testutil.NewTestFixtures("https://idp.example.com/saml", certPEM)
	fixtures.SetupMockRepo(repo)

	service, h := newTestSSOService(t, repo)

	assertionBytes := signAssertion(t, h, key, fixtures.Connection.IDPEntityID, fixtures.Connection.Audience, "alice")

	session, err := service.HandleACS(context.Background(), assertionBytes)
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Subject)
	assert.Equal(t, "Bearer", session.TokenType)
	assert.NotEmpty(t, session.AccessToken)
	assert.Contains(t, session.Claims, "email")

	logs := repo.GetAuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "acs_succeeded", logs[0].Event)
}

func TestHandleACS_UnknownIssuer(t *testing.T) {
	key, _ := generateTestIdP(t)
	repo := testutil.NewMockRepository()
	service, h := newTestSSOService(t, repo)

	assertionBytes := signAssertion(t, h, key, "https://unknown-idp.example.com/saml", "urn:samltoken:sp", "alice")

	_, err := service.HandleACS(context.Background(), assertionBytes)
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	logs := repo.GetAuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "acs_failed", logs[0].Event)
}

func TestHandleACS_DisabledConnection(t *testing.T) {
	key, certPEM := generateTestIdP(t)
	repo := testutil.NewMockRepository()
	fixtures := testutil.NewTestFixtures("https://idp.example.com/saml", certPEM)
	fixtures.Connection.IsEnabled = false
	fixtures.SetupMockRepo(repo)

	service, h := newTestSSOService(t, repo)
	assertionBytes := signAssertion(t, h, key, fixtures.Connection.IDPEntityID, fixtures.Connection.Audience, "alice")

	_, err := service.HandleACS(context.Background(), assertionBytes)
	assert.ErrorIs(t, err, ErrConnectionDisabled)
}

func TestHandleACS_WrongAudienceRejected(t *testing.T) {
	key, certPEM := generateTestIdP(t)
	repo := testutil.NewMockRepository()
	fixtures := testutil.NewTestFixtures("https://idp.example.com/saml", certPEM)
	fixtures.SetupMockRepo(repo)

	service, h := newTestSSOService(t, repo)
	assertionBytes := signAssertion(t, h, key, fixtures.Connection.IDPEntityID, "urn:someone-else:sp", "alice")

	_, err := service.HandleACS(context.Background(), assertionBytes)
	require.Error(t, err)
	assert.True(t, samltoken.IsKind(err, samltoken.KindInvalidAudience))
}

func TestCreateConnection_RejectsMalformedCertificate(t *testing.T) {
	repo := testutil.NewMockRepository()
	service, _ := newTestSSOService(t, repo)

	req := &models.CreateConnectionRequest{
		Name:               "Bad IdP",
		IDPEntityID:        "https://idp.example.com/saml",
		IDPCertificatesPEM: []string{"not a certificate"},
		ACSURL:             "https://sp.example.com/sso/saml/acs",
		Audience:           "urn:samltoken:sp",
		ClockSkewSeconds:   300,
	}

	_, err := service.CreateConnection(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidCertificate)
}

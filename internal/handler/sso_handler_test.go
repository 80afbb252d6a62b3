package handler

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/artpromedia/samltoken"
	"github.com/artpromedia/samltoken/internal/config"
	"github.com/artpromedia/samltoken/internal/middleware"
	"github.com/artpromedia/samltoken/internal/models"
	"github.com/artpromedia/samltoken/internal/service"
	"github.com/artpromedia/samltoken/internal/testutil"
	"github.com/artpromedia/samltoken/internal/token"
	"github.com/go-chi/chi/v5"
	pkgvalidator "github.com/artpromedia/samltoken/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopAdminAuth(next http.Handler) http.Handler { return next }
func noopRateLimit(next http.Handler) http.Handler { return next }

func newTestRouter(t *testing.T, repo *testutil.MockRepository) (chi.Router, *samltoken.Handler) {
	t.Helper()

	h, err := samltoken.NewHandlerBuilder().Build()
	require.NoError(t, err)

	tokens := token.NewService(&config.JWTConfig{
		SecretKey:         "test-secret-key-material-for-hmac",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "samltoken",
		Audience:          "samltoken-clients",
	})

	cfg := &config.Config{SAML: config.SAMLConfig{SPEntityID: "urn:samltoken:sp", ACSURL: "https://sp.example.com/sso/saml/acs"}}
	ssoService := service.NewSSOService(repo, h, tokens, nil, cfg)
	ssoHandler := NewSSOHandler(ssoService, cfg, pkgvalidator.NewValidator())

	authMiddleware := middleware.NewAuthMiddleware(tokens)

	r := chi.NewRouter()
	ssoHandler.RegisterRoutes(r, noopAdminAuth, authMiddleware.Authenticate, noopRateLimit)
	return r, h
}

func generateTestIdP(t *testing.T) (*samltoken.RSAKey, string) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "sso-handler-test-idp"},
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

func signTestAssertion(t *testing.T, h *samltoken.Handler, key *samltoken.RSAKey, issuer, audience, nameID string) string {
	t.Helper()

	identity := samltoken.NewClaimsIdentity()
	identity.AddClaim(samltoken.Claim{Type: samltoken.ClaimTypeNameIdentifier, Value: nameID})

	notBefore := time.Now().Add(-time.Minute)
	expires := time.Now().Add(time.Hour)

	tok, err := h.CreateToken(samltoken.TokenDescriptor{
		Issuer:             issuer,
		Subject:            identity,
		NotBefore:          &notBefore,
		Expires:            &expires,
		Audience:           audience,
		SigningCredentials: key,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, h.WriteToken(&buf, tok))
	return buf.String()
}

func TestACS_ValidAssertion_ReturnsSession(t *testing.T) {
	key, certPEM := generateTestIdP(t)
	repo := testutil.NewMockRepository()
	fixtures := testutil.NewTestFixtures("https://idp.example.com/saml", certPEM)
	fixtures.SetupMockRepo(repo)

	router, h := newTestRouter(t, repo)
	assertionXML := signTestAssertion(t, h, key, fixtures.Connection.IDPEntityID, fixtures.Connection.Audience, "alice")

	form := url.Values{"SAMLResponse": {base64.StdEncoding.EncodeToString([]byte(assertionXML))}}
	req := httptest.NewRequest(http.MethodPost, "/sso/saml/acs", bytes.NewBufferString(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var session models.SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	assert.Equal(t, "alice", session.Subject)
	assert.NotEmpty(t, session.AccessToken)
}

func TestACS_MissingSAMLResponse_ReturnsBadRequest(t *testing.T) {
	repo := testutil.NewMockRepository()
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/sso/saml/acs", bytes.NewBufferString(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetadata_ReturnsEntityDescriptor(t *testing.T) {
	repo := testutil.NewMockRepository()
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/sso/saml/metadata", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "EntityDescriptor")
	assert.Contains(t, rr.Body.String(), "urn:samltoken:sp")
}

func TestCreateConnection_ValidationError(t *testing.T) {
	repo := testutil.NewMockRepository()
	router, _ := newTestRouter(t, repo)

	body := `{"name": "", "idp_entity_id": "not-a-uri"}`
	req := httptest.NewRequest(http.MethodPost, "/sso/connections", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateConnection_Success(t *testing.T) {
	_, certPEM := generateTestIdP(t)
	repo := testutil.NewMockRepository()
	router, _ := newTestRouter(t, repo)

	req := models.CreateConnectionRequest{
		Name:               "New IdP",
		IDPEntityID:        "https://idp.new.example.com/saml",
		IDPCertificatesPEM: []string{certPEM},
		ACSURL:             "https://sp.example.com/sso/saml/acs",
		Audience:           "urn:samltoken:sp",
		ClockSkewSeconds:   300,
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "/sso/connections", bytes.NewBuffer(b))
	httpReq.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, httpReq)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created models.ConnectionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "New IdP", created.Name)
	assert.Equal(t, 1, created.CertificateCount)
}

func TestGetConnection_NotFound(t *testing.T) {
	repo := testutil.NewMockRepository()
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/sso/connections/00000000-0000-0000-0000-000000000000", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSession_ValidToken_ReturnsClaims(t *testing.T) {
	key, certPEM := generateTestIdP(t)
	repo := testutil.NewMockRepository()
	fixtures := testutil.NewTestFixtures("https://idp.example.com/saml", certPEM)
	fixtures.SetupMockRepo(repo)

	router, h := newTestRouter(t, repo)
	assertionXML := signTestAssertion(t, h, key, fixtures.Connection.IDPEntityID, fixtures.Connection.Audience, "alice")

	form := url.Values{"SAMLResponse": {base64.StdEncoding.EncodeToString([]byte(assertionXML))}}
	acsReq := httptest.NewRequest(http.MethodPost, "/sso/saml/acs", bytes.NewBufferString(form.Encode()))
	acsReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	acsRR := httptest.NewRecorder()
	router.ServeHTTP(acsRR, acsReq)
	require.Equal(t, http.StatusOK, acsRR.Code)

	var session models.SessionResponse
	require.NoError(t, json.Unmarshal(acsRR.Body.Bytes(), &session))

	sessionReq := httptest.NewRequest(http.MethodGet, "/sso/session", nil)
	sessionReq.Header.Set("Authorization", "Bearer "+session.AccessToken)
	sessionRR := httptest.NewRecorder()
	router.ServeHTTP(sessionRR, sessionReq)

	require.Equal(t, http.StatusOK, sessionRR.Code)
	var introspected models.SessionResponse
	require.NoError(t, json.Unmarshal(sessionRR.Body.Bytes(), &introspected))
	assert.Equal(t, "alice", introspected.Subject)
}

func TestSession_MissingToken_Unauthorized(t *testing.T) {
	repo := testutil.NewMockRepository()
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/sso/session", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

//go:build integration

// Package integration tests verify the SAML SSO bridge end to end
// against a running instance.
//
// Run with: go test -tags=integration -v ./...
package samltoken_integration_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// SSOIntegrationConfig holds configuration for SSO integration tests.
type SSOIntegrationConfig struct {
	ServiceURL  string
	AdminAPIKey string
}

func loadTestConfig() *SSOIntegrationConfig {
	return &SSOIntegrationConfig{
		ServiceURL:  envOrDefault("SAMLTOKEN_SERVICE_URL", "http://localhost:8080"),
		AdminAPIKey: envOrDefault("SAMLTOKEN_ADMIN_API_KEY", "test-admin-key"),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SSOIntegrationSuite provides shared resources for integration tests.
type SSOIntegrationSuite struct {
	config     *SSOIntegrationConfig
	httpClient *http.Client
	ctx        context.Context
	cancel     context.CancelFunc
}

func SetupSSOIntegrationSuite(t *testing.T) *SSOIntegrationSuite {
	t.Helper()

	config := loadTestConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)

	suite := &SSOIntegrationSuite{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		ctx:        ctx,
		cancel:     cancel,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", config.ServiceURL+"/health", nil)
	if err != nil {
		t.Skipf("Skipping integration test: cannot create request: %v", err)
	}
	resp, err := suite.httpClient.Do(req)
	if err != nil {
		t.Skipf("Skipping integration test: samltoken service not reachable at %s: %v", config.ServiceURL, err)
	}
	resp.Body.Close()

	t.Cleanup(func() {
		cancel()
	})

	return suite
}

func (s *SSOIntegrationSuite) doRequest(t *testing.T, method, path string, body interface{}, adminAuth bool) (*http.Response, []byte) {
	t.Helper()
	requestURL := s.config.ServiceURL + path

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, requestURL, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	if adminAuth {
		req.Header.Set("Authorization", "Bearer "+s.config.AdminAPIKey)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	return resp, respBody
}

func (s *SSOIntegrationSuite) postACS(t *testing.T, assertionXML string) (*http.Response, []byte) {
	t.Helper()
	form := url.Values{"SAMLResponse": {base64.StdEncoding.EncodeToString([]byte(assertionXML))}}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.config.ServiceURL+"/sso/saml/acs", bytes.NewBufferString(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	return resp, respBody
}

// =================================================================
// Test: SP Metadata
// =================================================================

func TestIntegration_Metadata(t *testing.T) {
	suite := SetupSSOIntegrationSuite(t)

	resp, body := suite.doRequest(t, http.MethodGet, "/sso/saml/metadata", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "EntityDescriptor")
}

// =================================================================
// Test: Connection Admin CRUD
// =================================================================

func TestIntegration_ConnectionLifecycle(t *testing.T) {
	suite := SetupSSOIntegrationSuite(t)

	createReq := map[string]interface{}{
		"name":                      "Integration Test IdP",
		"idp_entity_id":             "https://idp.integration-test.example.com/saml",
		"idp_certificates_pem":      []string{testIdPCertPEM},
		"acs_url":                   "https://sp.example.com/sso/saml/acs",
		"audience":                  "urn:samltoken:integration-test",
		"require_signed_assertions": true,
		"clock_skew_seconds":        300,
	}

	resp, body := suite.doRequest(t, http.MethodPost, "/sso/connections", createReq, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &created))
	connID, ok := created["id"].(string)
	require.True(t, ok, "expected created connection to carry an id")

	resp, body = suite.doRequest(t, http.MethodGet, "/sso/connections/"+connID, nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &fetched))
	require.Equal(t, "Integration Test IdP", fetched["name"])

	updateReq := map[string]interface{}{"is_enabled": false}
	resp, _ = suite.doRequest(t, http.MethodPatch, "/sso/connections/"+connID, updateReq, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = suite.doRequest(t, http.MethodDelete, "/sso/connections/"+connID, nil, true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestIntegration_ConnectionAdmin_RequiresAuth(t *testing.T) {
	suite := SetupSSOIntegrationSuite(t)

	resp, _ := suite.doRequest(t, http.MethodGet, "/sso/connections", nil, false)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// =================================================================
// Test: ACS rejects assertions with no matching connection
// =================================================================

func TestIntegration_ACS_RejectsUnknownIssuer(t *testing.T) {
	suite := SetupSSOIntegrationSuite(t)

	_, body := suite.postACS(t, unknownIssuerAssertionXML)
	var errResp map[string]string
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.NotEmpty(t, errResp["error"])
}

const unknownIssuerAssertionXML = `<Assertion xmlns="urn:oasis:names:tc:SAML:2.0:assertion" ID="_it1" IssueInstant="2024-01-01T00:00:00Z" Version="2.0">
  <Issuer>https://idp.never-registered.example.com/saml</Issuer>
  <Subject><NameID>alice</NameID></Subject>
  <Conditions NotBefore="2024-01-01T00:00:00Z" NotOnOrAfter="2030-01-01T00:00:00Z"/>
</Assertion>`

// testIdPCertPEM is a throwaway self-signed certificate used only to
// exercise the connection admin CRUD surface; it is never presented to
// a real validation call in these tests.
const testIdPCertPEM = `-----BEGIN CERTIFICATE-----
MIIDKzCCAhOgAwIBAgIUYlji49XOLNrhji9S6iUQKHRQZk4wDQYJKoZIhvcNAQEL
BQAwJTEjMCEGA1UEAwwac2FtbHRva2VuLWludGVncmF0aW9uLXRlc3QwHhcNMjYw
NzMxMjIxNjI0WhcNMzYwNzI4MjIxNjI0WjAlMSMwIQYDVQQDDBpzYW1sdG9rZW4t
aW50ZWdyYXRpb24tdGVzdDCCASIwDQYJKoZIhvcNAQEBBQADggEPADCCAQoCggEB
AKvTeCtWsEB1LDNI7yEr7e/22lgi0ZJ3M1+Xa1jJDp4dX3s64TunxAIdnNbHMle8
NPCjH/4VmeTa6amEf5+IHGGYnX8nvVcvzTC+uG59SG6bXdiS1dTJcIh9Lyy4Ly2I
8loHqYQzgaCQRltyBbsU0Z+UKG2IfDHBRblUkJJyPTToBzzowD6KcR9aRvUrFZQW
FAmnUgGEPOmbOLYnO5OvjAzLeD3xOsP4D1LXlX9E0mkb2wSqo9GpKyNZ96JvZlN9
gwRJ3e6aqf0sF3QFrZ9ipoQklN2tpeXZBDhwAi6AXDtGdJjHQUnTN9plcer59WOV
KVhae8lcdfH1TqvlN/ThNDUCAwEAAaNTMFEwHQYDVR0OBBYEFFTN8z+wHMcqvZBs
t1FFKUsEuuDEMB8GA1UdIwQYMBaAFFTN8z+wHMcqvZBst1FFKUsEuuDEMA8GA1Ud
EwEB/wQFMAMBAf8wDQYJKoZIhvcNAQELBQADggEBAKk9fU1pZKHdtJc2kAlYi+IX
m5Bifb855QjP7BeiweSV1B7104AxTAMRLlBRCQHHwS8kXohJjyLuSXYgh5AHZEp7
pT7LDaNObmL/4t9SvMlGREoEaeLj8xQe7wbIRh60ed/rSj3X/3ywcreZ1wEr/WSY
G0cvI6+5qNJ2tzdranIRlKazLulXWRDr2JuHlb07RWcvsLTAjIIqKyUZwPaoWrTt
unQewVELGyAr7Rjym326Td1JRNA8pMEV6k/iPaVt0kWnurcAS9PY0+VxgvJLUA2w
J31mLEuAxCbEcZxNXzP/wUDQUsFbDQ7NQS3vuYMpGb3AWrYVjVvNdWWl693urus=
-----END CERTIFICATE-----`

package samltoken

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// generateTestKey returns a fresh self-signed RSA key pair wrapped as a
// SecurityKey with the given kid, for tests that need to sign and
// verify an assertion end to end.
func generateTestKey(t *testing.T, kid string) *RSAKey {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "samltoken-test-" + kid},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return NewRSASigningKey(kid, priv, cert)
}

func mustHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandlerBuilder().Build()
	require.NoError(t, err)
	return h
}

func timePtr(tm time.Time) *time.Time { return &tm }

package samltoken

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// TransformFactory is the out-of-scope canonicalization installer
// (§6): given the candidate certificates for a validation attempt, it
// builds a goxmldsig validation context scoped to exactly those
// certificates, and given a signing key it builds a signing context, so
// the verifier and builder never depend on a specific c14n
// implementation beyond the configured default.
//
// A fresh dsig.NewDefaultValidationContext is built per call rather
// than cached.
type TransformFactory interface {
	ValidationContext(candidates []*x509.Certificate) *dsig.ValidationContext
	SigningContext(key SecurityKey) (*dsig.SigningContext, error)
}

// DefaultTransformFactory installs goxmldsig's default canonicalization
// and transform algorithms (exclusive c14n, enveloped-signature, SHA-256
// digest/RSA-SHA256 signature) via dsig.NewDefaultValidationContext.
type DefaultTransformFactory struct{}

func (DefaultTransformFactory) ValidationContext(candidates []*x509.Certificate) *dsig.ValidationContext {
	store := &dsig.MemoryX509CertificateStore{Roots: candidates}
	return dsig.NewDefaultValidationContext(store)
}

func (DefaultTransformFactory) SigningContext(key SecurityKey) (*dsig.SigningContext, error) {
	rk, ok := key.(*RSAKey)
	if !ok || rk.PrivateKey == nil || rk.Cert == nil {
		return nil, fmt.Errorf("samltoken: key %q cannot sign: not a complete RSA key pair", key.KeyID())
	}
	return dsig.NewDefaultSigningContext(&rsaKeyStore{key: rk.PrivateKey, cert: rk.Cert.Raw}), nil
}

// rsaKeyStore adapts an RSAKey to goxmldsig's dsig.X509KeyStore.
type rsaKeyStore struct {
	key  *rsa.PrivateKey
	cert []byte
}

func (s *rsaKeyStore) GetKeyPair() (*rsa.PrivateKey, []byte, error) {
	return s.key, s.cert, nil
}

// validateOne runs a single candidate certificate's trial verification
// through the transform factory, returning the validated element (the
// signed sub-tree canonicalized and digest-checked) or the underlying
// goxmldsig error.
func validateOne(tf TransformFactory, root *etree.Element, cert *x509.Certificate) (*etree.Element, error) {
	ctx := tf.ValidationContext([]*x509.Certificate{cert})
	return ctx.Validate(root)
}

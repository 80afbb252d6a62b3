package samltoken

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

// SecurityKey is the opaque verification/signing capability the core
// consumes. The core never inspects key material directly; it only
// calls Verify (inbound) or Sign (outbound) and compares KeyID strings
// during key resolution.
type SecurityKey interface {
	// KeyID is the identifier matched against a signature's KeyInfo.kid
	// during resolution. Comparison is byte-exact.
	KeyID() string

	// Verify checks sig against signed, returning nil on success. The
	// core itself never calls this: XML-DSig signature checking needs
	// the SignedInfo canonicalized before the digest and signature
	// bytes mean anything, and that canonicalization is the transform
	// factory's job (transform.go), not the key's. Exported so a
	// caller holding a SecurityKey can check a detached signature
	// against already-canonicalized bytes without going through a
	// Handler.
	Verify(signed, sig []byte) error

	// Certificate returns the X.509 certificate backing this key, for
	// key stores that need one (e.g. the transform factory's
	// validation context). May be nil for keys that only verify.
	Certificate() *x509.Certificate

	// Sign produces a signature over data, for outbound use. Keys used
	// only for inbound verification may return an error. Like Verify,
	// the core never calls this directly: CreateToken/WriteToken sign
	// through the transform factory's SigningContext, which
	// canonicalizes and builds the enveloped ds:Signature around the
	// raw RSA signature rather than signing data verbatim.
	Sign(data []byte) ([]byte, error)
}

// RSAKey is a SecurityKey backed by an RSA key pair and an X.509
// certificate, the shape an SSO service loads from PEM material at
// startup.
type RSAKey struct {
	ID          string
	PrivateKey  *rsa.PrivateKey
	Cert        *x509.Certificate
}

// NewRSAVerifyKey builds a verification-only RSAKey from a certificate;
// PrivateKey is left nil and Sign returns an error.
func NewRSAVerifyKey(id string, cert *x509.Certificate) *RSAKey {
	return &RSAKey{ID: id, Cert: cert}
}

// NewRSASigningKey builds an RSAKey that can both sign and verify.
func NewRSASigningKey(id string, key *rsa.PrivateKey, cert *x509.Certificate) *RSAKey {
	return &RSAKey{ID: id, PrivateKey: key, Cert: cert}
}

func (k *RSAKey) KeyID() string { return k.ID }

func (k *RSAKey) Certificate() *x509.Certificate { return k.Cert }

func (k *RSAKey) Verify(signed, sig []byte) error {
	pub, ok := k.publicKey()
	if !ok {
		return fmt.Errorf("samltoken: key %q has no usable public key", k.ID)
	}
	digest := sha256.Sum256(signed)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig)
}

func (k *RSAKey) Sign(data []byte) ([]byte, error) {
	if k.PrivateKey == nil {
		return nil, fmt.Errorf("samltoken: key %q has no private key", k.ID)
	}
	digest := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, k.PrivateKey, crypto.SHA256, digest[:])
}

func (k *RSAKey) publicKey() (*rsa.PublicKey, bool) {
	if k.Cert != nil {
		if pub, ok := k.Cert.PublicKey.(*rsa.PublicKey); ok {
			return pub, true
		}
	}
	if k.PrivateKey != nil {
		return &k.PrivateKey.PublicKey, true
	}
	return nil, false
}

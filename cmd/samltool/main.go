// Command samltool is an offline counterpart to the SSO HTTP surface,
// for validating a captured SAML response or minting a test assertion
// without standing up the full service — useful when debugging an IdP
// integration.
package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/artpromedia/samltoken"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "samltool",
	Short: "Inspect and mint SAML assertions against the samltoken core",
}

func main() {
	rootCmd.AddCommand(validateCmd, createCmd)
	if err := rootCmd.Execute(); err != nil {
		exitWithError("%v", err)
	}
}

func exitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// ============================================================
// validate
// ============================================================

var (
	validateAssertionPath string
	validateCertPath      string
	validateAudience      string
	validateRequireSigned bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a SAML assertion file against a trusted certificate",
	Long: `Reads a raw SAML assertion (not base64-encoded) from --assertion,
validates its signature against the certificate in --cert, checks the
given audience, and prints the resulting claims as JSON.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateAssertionPath, "assertion", "", "path to the raw SAML assertion XML (required)")
	validateCmd.Flags().StringVar(&validateCertPath, "cert", "", "path to the IdP's PEM certificate (required)")
	validateCmd.Flags().StringVar(&validateAudience, "audience", "", "expected audience (required)")
	validateCmd.Flags().BoolVar(&validateRequireSigned, "require-signed", true, "reject unsigned assertions")

	validateCmd.MarkFlagRequired("assertion")
	validateCmd.MarkFlagRequired("cert")
	validateCmd.MarkFlagRequired("audience")
}

func runValidate(cmd *cobra.Command, args []string) error {
	assertionBytes, err := os.ReadFile(validateAssertionPath)
	if err != nil {
		return fmt.Errorf("reading assertion file: %w", err)
	}

	cert, err := loadCertificate(validateCertPath)
	if err != nil {
		return err
	}

	h, err := samltoken.NewHandlerBuilder().Build()
	if err != nil {
		return fmt.Errorf("building handler: %w", err)
	}

	params := samltoken.NewValidationParameters()
	params.RequireSignedTokens = validateRequireSigned
	params.IssuerSigningKeys = []samltoken.SecurityKey{samltoken.NewRSAVerifyKey("cli-cert", cert)}
	params.ValidAudiences = []string{validateAudience}

	result, err := h.ValidateToken(assertionBytes, params)
	if err != nil {
		return fmt.Errorf("assertion rejected: %w", err)
	}

	out := make(map[string]string, len(result.Principal.Claims))
	for _, c := range result.Principal.Claims {
		out[c.Type] = c.Value
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadCertificate(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate file: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%s is not PEM-encoded", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}
	return cert, nil
}

func loadRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%s is not PEM-encoded", path)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		keyIface, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		rsaKey, ok := keyIface.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%s does not contain an RSA private key", path)
		}
		return rsaKey, nil
	}
	return key, nil
}

// ============================================================
// create
// ============================================================

// assertionDescriptor is the shape of the --descriptor JSON file fed
// to `samltool create`.
type assertionDescriptor struct {
	Issuer   string            `json:"issuer"`
	Subject  string            `json:"subject"`
	Audience string            `json:"audience"`
	Claims   map[string]string `json:"claims"`
	TTL      string            `json:"ttl"`
}

var (
	createDescriptorPath string
	createKeyPath        string
	createCertPath       string
	createOutputPath     string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Build and sign a test SAML assertion from a descriptor file",
	Long: `Reads a small JSON descriptor (issuer, subject, audience, claims, ttl)
from --descriptor, signs an assertion with the RSA key and certificate
given by --key/--cert, and writes the raw assertion XML to --out (or
stdout if omitted).`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createDescriptorPath, "descriptor", "", "path to the assertion descriptor JSON (required)")
	createCmd.Flags().StringVar(&createKeyPath, "key", "", "path to the signing RSA private key, PKCS1 or PKCS8 PEM (required)")
	createCmd.Flags().StringVar(&createCertPath, "cert", "", "path to the signing certificate PEM (required)")
	createCmd.Flags().StringVar(&createOutputPath, "out", "", "path to write the assertion to (default: stdout)")

	createCmd.MarkFlagRequired("descriptor")
	createCmd.MarkFlagRequired("key")
	createCmd.MarkFlagRequired("cert")
}

func runCreate(cmd *cobra.Command, args []string) error {
	descriptorBytes, err := os.ReadFile(createDescriptorPath)
	if err != nil {
		return fmt.Errorf("reading descriptor file: %w", err)
	}

	var descriptor assertionDescriptor
	if err := json.Unmarshal(descriptorBytes, &descriptor); err != nil {
		return fmt.Errorf("parsing descriptor: %w", err)
	}

	ttl := 5 * time.Minute
	if descriptor.TTL != "" {
		parsed, err := time.ParseDuration(descriptor.TTL)
		if err != nil {
			return fmt.Errorf("parsing ttl: %w", err)
		}
		ttl = parsed
	}

	privateKey, err := loadRSAPrivateKey(createKeyPath)
	if err != nil {
		return err
	}
	cert, err := loadCertificate(createCertPath)
	if err != nil {
		return err
	}
	signingKey := samltoken.NewRSASigningKey("cli-key", privateKey, cert)

	identity := samltoken.NewClaimsIdentity()
	identity.AddClaim(samltoken.Claim{Type: samltoken.ClaimTypeNameIdentifier, Value: descriptor.Subject})
	for claimType, value := range descriptor.Claims {
		identity.AddClaim(samltoken.Claim{Type: claimType, Value: value})
	}

	notBefore := time.Now().UTC()
	expires := notBefore.Add(ttl)

	h, err := samltoken.NewHandlerBuilder().Build()
	if err != nil {
		return fmt.Errorf("building handler: %w", err)
	}

	assertion, err := h.CreateToken(samltoken.TokenDescriptor{
		Issuer:             descriptor.Issuer,
		Subject:            identity,
		NotBefore:          &notBefore,
		Expires:            &expires,
		Audience:           descriptor.Audience,
		SigningCredentials: signingKey,
	})
	if err != nil {
		return fmt.Errorf("building assertion: %w", err)
	}

	out := os.Stdout
	if createOutputPath != "" {
		f, err := os.Create(createOutputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return h.WriteToken(out, assertion)
}

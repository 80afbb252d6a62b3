package samltoken

import (
	"time"
)

// SignatureValidatorFunc is a whole-token override for signature
// verification. It must return an assertion of the correct kind;
// returning (nil, nil) or a value that is not *Assertion is treated as
// an unusable result by the verifier.
type SignatureValidatorFunc func(tokenBytes []byte, params *ValidationParameters) (*Assertion, error)

// KeyResolverFunc is an external override for candidate-key
// construction; its result is used verbatim in place of the internal
// resolver.
type KeyResolverFunc func(assertion *Assertion, params *ValidationParameters) []SecurityKey

// LifetimeValidatorFunc validates an optional (notBefore, notOnOrAfter)
// window against now, honoring a configurable clock skew. Errors cross
// the external-collaborator boundary unwrapped.
type LifetimeValidatorFunc func(notBefore, notOnOrAfter *time.Time, assertion *Assertion, params *ValidationParameters) error

// AudienceValidatorFunc validates one audience-restriction's URI set.
type AudienceValidatorFunc func(audiences []string, assertion *Assertion, params *ValidationParameters) error

// IssuerValidatorFunc resolves/validates the assertion's raw issuer
// string, returning the issuer to stamp onto produced claims (or an
// error to reject the token).
type IssuerValidatorFunc func(issuer string, assertion *Assertion, params *ValidationParameters) (string, error)

// CreateClaimsIdentityFunc constructs the identity the inbound
// translator populates.
type CreateClaimsIdentityFunc func(assertion *Assertion, issuer string) *ClaimsIdentity

// ValidationParameters is the configuration bag every validation
// collaborator is invoked with. A nil override means "use the package
// default"; overrides are first-class function values, not a class
// hierarchy of overridable hooks.
type ValidationParameters struct {
	// RequireSignedTokens defaults to true; when true, an unsigned
	// parsed assertion fails MissingSignature.
	RequireSignedTokens bool

	IssuerSigningKey         SecurityKey
	IssuerSigningKeys        []SecurityKey
	IssuerSigningKeyResolver KeyResolverFunc

	SignatureValidator SignatureValidatorFunc
	AudienceValidator  AudienceValidatorFunc

	ValidateIssuer   IssuerValidatorFunc
	ValidateLifetime LifetimeValidatorFunc

	// ValidateTokenReplay is the extension point for one_time_use
	// adjudication; nil means the default RequiresOverride behavior.
	ValidateTokenReplay TokenReplayValidator

	CreateClaimsIdentity CreateClaimsIdentityFunc

	// ValidAudiences is consulted by the default audience validator.
	ValidAudiences []string

	// ClockSkew bounds how far the default lifetime validator lets
	// `now` drift from the asserted window.
	ClockSkew time.Duration
}

// NewValidationParameters returns parameters with every default
// collaborator wired and RequireSignedTokens set, the configuration a
// caller starts from and overrides selectively.
func NewValidationParameters() *ValidationParameters {
	return &ValidationParameters{
		RequireSignedTokens:  true,
		ValidateIssuer:       DefaultValidateIssuer,
		ValidateLifetime:     DefaultValidateLifetime,
		CreateClaimsIdentity: DefaultCreateClaimsIdentity,
		ClockSkew:            5 * time.Minute,
	}
}

func (p *ValidationParameters) validateLifetime(notBefore, notOnOrAfter *time.Time, assertion *Assertion) error {
	if p.ValidateLifetime != nil {
		return p.ValidateLifetime(notBefore, notOnOrAfter, assertion, p)
	}
	return DefaultValidateLifetime(notBefore, notOnOrAfter, assertion, p)
}

func (p *ValidationParameters) validateAudience(audiences []string, assertion *Assertion) error {
	if p.AudienceValidator != nil {
		return p.AudienceValidator(audiences, assertion, p)
	}
	return DefaultValidateAudience(audiences, assertion, p)
}

func (p *ValidationParameters) validateIssuer(issuer string, assertion *Assertion) (string, error) {
	if p.ValidateIssuer != nil {
		return p.ValidateIssuer(issuer, assertion, p)
	}
	return DefaultValidateIssuer(issuer, assertion, p)
}

func (p *ValidationParameters) createClaimsIdentity(assertion *Assertion, issuer string) *ClaimsIdentity {
	if p.CreateClaimsIdentity != nil {
		return p.CreateClaimsIdentity(assertion, issuer)
	}
	return DefaultCreateClaimsIdentity(assertion, issuer)
}

// DefaultValidateLifetime enforces the half-open interval
// [notBefore, notOnOrAfter) against time.Now(), widened by
// params.ClockSkew on both ends.
func DefaultValidateLifetime(notBefore, notOnOrAfter *time.Time, assertion *Assertion, params *ValidationParameters) error {
	now := time.Now().UTC()
	skew := params.ClockSkew
	if notBefore != nil && now.Before(notBefore.Add(-skew)) {
		return newErr(KindInvalidLifetime, "token is not yet valid: not_before=%s now=%s", notBefore, now)
	}
	if notOnOrAfter != nil && !now.Before(notOnOrAfter.Add(skew)) {
		return newErr(KindInvalidLifetime, "token has expired: not_on_or_after=%s now=%s", notOnOrAfter, now)
	}
	return nil
}

// DefaultValidateAudience succeeds only if at least one audience in the
// restriction is a member of params.ValidAudiences; it fails when
// ValidAudiences is empty.
func DefaultValidateAudience(audiences []string, assertion *Assertion, params *ValidationParameters) error {
	if len(params.ValidAudiences) == 0 {
		return newErr(KindInvalidAudience, "no valid audiences configured")
	}
	allowed := make(map[string]bool, len(params.ValidAudiences))
	for _, a := range params.ValidAudiences {
		allowed[a] = true
	}
	for _, a := range audiences {
		if allowed[a] {
			return nil
		}
	}
	return newErr(KindInvalidAudience, "none of %v match configured audiences %v", audiences, params.ValidAudiences)
}

// DefaultValidateIssuer returns the assertion's raw issuer unchanged,
// substituting DefaultIssuer if it is blank.
func DefaultValidateIssuer(issuer string, assertion *Assertion, params *ValidationParameters) (string, error) {
	if issuer == "" {
		return DefaultIssuer, nil
	}
	return issuer, nil
}

// DefaultCreateClaimsIdentity returns a fresh, empty identity.
func DefaultCreateClaimsIdentity(assertion *Assertion, issuer string) *ClaimsIdentity {
	return NewClaimsIdentity()
}

// TokenDescriptor describes the token an outbound builder assembles.
type TokenDescriptor struct {
	Issuer             string
	Subject            *ClaimsIdentity
	NotBefore          *time.Time
	Expires            *time.Time
	Audience           string
	SigningCredentials SecurityKey

	// BuildAdvice is the extension point for builder.go step 4; nil
	// means no advice is attached.
	BuildAdvice func(TokenDescriptor) *Advice
}

// ValidationResult is the product of a successful ValidateToken call:
// the translated principal plus the assertion it was derived from.
type ValidationResult struct {
	Principal *ClaimsIdentity
	Token     *Assertion
}

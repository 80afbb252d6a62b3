package samltoken

// Well-known claim type URIs. These mirror the legacy WS-Identity claim
// types the rest of the SAML ecosystem already uses, so a claims
// identity built by this package composes with other claims-based
// systems without translation.
const (
	ClaimTypeNameIdentifier        = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	ClaimTypeAuthenticationMethod  = "http://schemas.microsoft.com/ws/2008/06/identity/claims/authenticationmethod"
	ClaimTypeAuthenticationInstant = "http://schemas.microsoft.com/ws/2008/06/identity/claims/authenticationinstant"
	ClaimTypeActor                 = "http://schemas.xmlsoap.org/ws/2009/09/identity/claims/actor"
)

// Well-known claim property keys.
const (
	PropertySamlAttributeNameFormat   = "http://schemas.xmlsoap.org/ws/2005/05/identity/claimproperties/samlattributenameformat"
	PropertySamlAttributeDisplayName  = "http://schemas.xmlsoap.org/ws/2005/05/identity/claimproperties/displayname"
	PropertySamlNameIDFormat          = "http://schemas.xmlsoap.org/ws/2005/05/identity/claimproperties/format"
	PropertySamlNameQualifier         = "http://schemas.xmlsoap.org/ws/2005/05/identity/claimproperties/namequalifier"
	PropertySamlSPNameQualifier       = "http://schemas.xmlsoap.org/ws/2005/05/identity/claimproperties/spnamequalifier"
	PropertySamlSPProvidedID          = "http://schemas.xmlsoap.org/ws/2005/05/identity/claimproperties/spprovidedid"
)

// DefaultIssuer is the sentinel used when an issuer validator returns an
// empty string.
const DefaultIssuer = "LOCAL AUTHORITY"

// Claim is a typed, issuer-attributed attribute-value pair: the unit a
// claims identity is a bag of, and the unit an assertion's attribute set
// translates to and from.
type Claim struct {
	Type           string
	Value          string
	ValueType      string
	Issuer         string
	OriginalIssuer string
	Properties     map[string]string
}

// property returns a claim's property value and whether it was present.
func (c Claim) property(key string) (string, bool) {
	if c.Properties == nil {
		return "", false
	}
	v, ok := c.Properties[key]
	return v, ok
}

// ClaimsIdentity is a bag of claims representing an authenticated party,
// optionally carrying a nested Actor identity for delegation. At most
// one actor is permitted per identity; actor recursion is bounded only
// by the nesting present in the delegated XML blob it was decoded from.
type ClaimsIdentity struct {
	Claims []Claim
	Actor  *ClaimsIdentity
}

// NewClaimsIdentity returns an empty identity. It is the default
// implementation of ValidationParameters.CreateClaimsIdentity.
func NewClaimsIdentity() *ClaimsIdentity {
	return &ClaimsIdentity{}
}

// AddClaim appends a claim to the identity.
func (ci *ClaimsIdentity) AddClaim(c Claim) {
	ci.Claims = append(ci.Claims, c)
}

// FindFirst returns the first claim of the given type, if any.
func (ci *ClaimsIdentity) FindFirst(claimType string) (Claim, bool) {
	for _, c := range ci.Claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// FindAll returns every claim of the given type, in document order.
func (ci *ClaimsIdentity) FindAll(claimType string) []Claim {
	var out []Claim
	for _, c := range ci.Claims {
		if c.Type == claimType {
			out = append(out, c)
		}
	}
	return out
}

// NameIdentifier returns the identity's NameIdentifier claim value, if
// any.
func (ci *ClaimsIdentity) NameIdentifier() (string, bool) {
	c, ok := ci.FindFirst(ClaimTypeNameIdentifier)
	return c.Value, ok
}

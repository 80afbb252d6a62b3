package samltoken

import (
	"encoding/xml"
	"time"
)

// NSAssertion is the SAML2 assertion namespace every type in this file
// marshals into.
const NSAssertion = "urn:oasis:names:tc:SAML:2.0:assertion"

// BearerConfirmationMethod is the only subject-confirmation method this
// package ever produces or expects to see on a path it builds.
const BearerConfirmationMethod = "urn:oasis:names:tc:SAML:2.0:cm:bearer"

// RelaxedTime wraps time.Time so that an assertion's optional NotBefore
// / NotOnOrAfter attributes serialize only when set, and round-trip a
// zero value as "attribute absent" rather than the year-1 timestamp
// encoding/xml would otherwise write.
type RelaxedTime struct {
	time.Time
}

// IsZero reports whether the wrapped time is unset.
func (t RelaxedTime) IsZero() bool {
	return t.Time.IsZero()
}

func (t RelaxedTime) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if t.Time.IsZero() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: t.Time.UTC().Format(time.RFC3339)}, nil
}

func (t *RelaxedTime) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, attr.Value)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// Assertion is the root entity of a SAML2 token: an issuer, a subject, optional
// conditions and advice, zero or more statements, and an optional signature.
// A reader produces a fresh Assertion per call; a builder likewise. The only
// mutation performed after construction is the verifier stamping SigningKey.
type Assertion struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Assertion"`

	ID           string    `xml:"ID,attr"`
	Version      string    `xml:"Version,attr"`
	IssueInstant time.Time `xml:"IssueInstant,attr"`

	Issuer string `xml:"Issuer"`

	Signature *Signature `xml:"Signature"`

	Subject    *Subject    `xml:"Subject"`
	Conditions *Conditions `xml:"Conditions"`
	Advice     *Advice     `xml:"Advice"`

	Statements []Statement `xml:"-"`

	// SigningKey is set by the verifier on successful signature
	// verification and is the only field mutated after parse.
	SigningKey SecurityKey `xml:"-"`
}

// Subject carries the name identifier and subject-confirmation set of an
// assertion. At most one NameID claim may contribute when building a
// subject from a claims identity; duplicates are a hard error.
type Subject struct {
	XMLName              xml.Name               `xml:"urn:oasis:names:tc:SAML:2.0:assertion Subject"`
	NameID                *NameID                 `xml:"NameID"`
	SubjectConfirmations []SubjectConfirmation `xml:"SubjectConfirmation"`
}

// NameID identifies the subject of an assertion.
type NameID struct {
	XMLName         xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion NameID"`
	Value           string   `xml:",chardata"`
	Format          string   `xml:"Format,attr,omitempty"`
	NameQualifier   string   `xml:"NameQualifier,attr,omitempty"`
	SPNameQualifier string   `xml:"SPNameQualifier,attr,omitempty"`
	SPProvidedID    string   `xml:"SPProvidedID,attr,omitempty"`
}

// SubjectConfirmation binds the assertion to the party presenting it.
type SubjectConfirmation struct {
	XMLName          xml.Name                 `xml:"urn:oasis:names:tc:SAML:2.0:assertion SubjectConfirmation"`
	Method           string                   `xml:"Method,attr"`
	ConfirmationData *SubjectConfirmationData `xml:"SubjectConfirmationData"`
}

// SubjectConfirmationData carries the validity window of a subject
// confirmation.
type SubjectConfirmationData struct {
	NotBefore    RelaxedTime `xml:"NotBefore,attr"`
	NotOnOrAfter RelaxedTime `xml:"NotOnOrAfter,attr"`
	Recipient    string      `xml:"Recipient,attr,omitempty"`
	InResponseTo string      `xml:"InResponseTo,attr,omitempty"`
}

// Conditions restricts when and for whom an assertion is valid. If
// present, NotBefore/NotOnOrAfter define the half-open interval
// [NotBefore, NotOnOrAfter).
type Conditions struct {
	XMLName             xml.Name              `xml:"urn:oasis:names:tc:SAML:2.0:assertion Conditions"`
	NotBefore            RelaxedTime           `xml:"NotBefore,attr"`
	NotOnOrAfter          RelaxedTime           `xml:"NotOnOrAfter,attr"`
	AudienceRestrictions []AudienceRestriction `xml:"AudienceRestriction"`
	OneTimeUse           *struct{}             `xml:"OneTimeUse"`
	ProxyRestriction     *ProxyRestriction     `xml:"ProxyRestriction"`
}

// AudienceRestriction names the set of audience URIs an assertion is
// scoped to.
type AudienceRestriction struct {
	Audiences []string `xml:"Audience"`
}

// ProxyRestriction limits proxying of the assertion; the default
// condition validator treats its mere presence as RequiresOverride.
type ProxyRestriction struct {
	Count     *int     `xml:"Count,attr"`
	Audiences []string `xml:"Audience"`
}

// Advice is an extension point the builder populates only through
// TokenDescriptor.BuildAdvice; DefaultSerializer.WriteAssertion does not
// write it.
type Advice struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Advice"`
	Content []byte   `xml:",innerxml"`
}

// Statement is the tagged union of the four SAML2 statement kinds. At
// most one of the typed fields is non-nil; an unrecognized statement
// element is preserved as Unknown for pass-through without contributing
// claims.
type Statement struct {
	Attribute      *AttributeStatement      `xml:"-"`
	Authentication *AuthenticationStatement `xml:"-"`
	AuthzDecision  *AuthzDecisionStatement  `xml:"-"`
	Unknown        *UnknownStatement        `xml:"-"`
}

// AttributeStatement carries a set of attributes about the subject.
type AttributeStatement struct {
	XMLName    xml.Name    `xml:"urn:oasis:names:tc:SAML:2.0:assertion AttributeStatement"`
	Attributes []Attribute `xml:"Attribute"`
}

// AuthenticationStatement records how and when the subject authenticated.
type AuthenticationStatement struct {
	XMLName              xml.Name          `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthnStatement"`
	AuthnInstant         time.Time         `xml:"AuthnInstant,attr"`
	SessionIndex         string            `xml:"SessionIndex,attr,omitempty"`
	SessionNotOnOrAfter  RelaxedTime       `xml:"SessionNotOnOrAfter,attr"`
	SubjectLocality      *SubjectLocality  `xml:"SubjectLocality"`
	AuthnContext         AuthnContext      `xml:"AuthnContext"`
}

// SubjectLocality records the network address the subject authenticated
// from, when the issuer supplied it.
type SubjectLocality struct {
	Address string `xml:"Address,attr,omitempty"`
	DNSName string `xml:"DNSName,attr,omitempty"`
}

// AuthnContext carries the authentication context class and, optionally,
// a declaration reference this package does not resolve.
type AuthnContext struct {
	ClassReference       string `xml:"AuthnContextClassRef,omitempty"`
	DeclarationReference string `xml:"AuthnContextDeclRef,omitempty"`
}

// AuthzDecisionStatement records an authorization decision. The inbound
// translator treats it as a no-op extension point by default.
type AuthzDecisionStatement struct {
	XMLName  xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthzDecisionStatement"`
	Resource string   `xml:"Resource,attr"`
	Decision string   `xml:"Decision,attr"`
}

// UnknownStatement preserves a statement element this package does not
// model, by raw inner XML, so round-tripping does not silently drop it.
type UnknownStatement struct {
	XMLName xml.Name
	Content []byte `xml:",innerxml"`
}

// Attribute is a single SAML attribute: a name, optional metadata, and
// an ordered list of string values. The equality key used when
// collapsing attributes is (Name, XSIType, OriginalIssuer).
type Attribute struct {
	XMLName        xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Attribute"`
	Name           string   `xml:"Name,attr"`
	NameFormat     string   `xml:"NameFormat,attr,omitempty"`
	FriendlyName   string   `xml:"FriendlyName,attr,omitempty"`
	XSIType        string   `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr,omitempty"`
	OriginalIssuer string   `xml:"OriginalIssuer,attr,omitempty"`
	Values         []string `xml:"AttributeValue"`
}

// Signature is populated on parse and, per assertion, verified at most
// once. SignedInfo names the transform chain the transform factory must
// honor; KeyInfo carries the key identifier used by the key resolver.
type Signature struct {
	XMLName        xml.Name `xml:"http://www.w3.org/2000/09/xmldsig# Signature"`
	SignedInfo     SignedInfo
	SignatureValue string    `xml:"SignatureValue"`
	KeyInfo        *KeyInfo  `xml:"KeyInfo"`
}

// SignedInfo names the canonicalization and transform chain that
// produced the signed digest.
type SignedInfo struct {
	CanonicalizationMethod AlgorithmRef   `xml:"CanonicalizationMethod"`
	SignatureMethod        AlgorithmRef   `xml:"SignatureMethod"`
	Transforms             []AlgorithmRef `xml:"Reference>Transforms>Transform"`
	DigestValue            string         `xml:"Reference>DigestValue"`
}

// AlgorithmRef is an element carrying only an Algorithm attribute.
type AlgorithmRef struct {
	Algorithm string `xml:"Algorithm,attr"`
}

// KeyInfo carries the key identifier (kid) the key resolver matches
// against configured candidate keys.
type KeyInfo struct {
	KeyID string `xml:"KeyName"`
}

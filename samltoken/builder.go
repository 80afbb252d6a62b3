package samltoken

import (
	"bytes"
	"fmt"
	"net/url"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// create implements §4.7: build an Assertion from a TokenDescriptor.
// Unknown/unsupported descriptor fields (encrypting credentials) have
// no representation in TokenDescriptor at all, so rejecting them is
// structural rather than a runtime check.
func create(d TokenDescriptor, tf TransformFactory) (*Assertion, error) {
	if d.Issuer == "" {
		return nil, newErr(KindMissingIssuer, "token descriptor has no issuer")
	}
	if d.Subject == nil {
		return nil, newErr(KindMissingSubject, "token descriptor has no subject claims identity")
	}

	subject, err := buildSubject(d.Subject)
	if err != nil {
		return nil, err
	}

	conditions := buildConditions(d)

	statements, err := buildStatements(d.Subject)
	if err != nil {
		return nil, err
	}

	assertion := &Assertion{
		ID:           "_" + uuid.NewString(),
		Version:      "2.0",
		IssueInstant: time.Now().UTC(),
		Issuer:       d.Issuer,
		Subject:      subject,
		Conditions:   conditions,
		Statements:   statements,
	}

	if d.BuildAdvice != nil {
		assertion.Advice = d.BuildAdvice(d)
	}

	if d.SigningCredentials != nil {
		assertion.SigningKey = d.SigningCredentials
	}

	return assertion, nil
}

func buildSubject(identity *ClaimsIdentity) (*Subject, error) {
	nameIDClaims := identity.FindAll(ClaimTypeNameIdentifier)
	if len(nameIDClaims) > 1 {
		return nil, newErr(KindMalformed, "claims identity carries more than one NameIdentifier claim")
	}

	subject := &Subject{
		SubjectConfirmations: []SubjectConfirmation{
			{Method: BearerConfirmationMethod},
		},
	}

	if len(nameIDClaims) == 1 {
		c := nameIDClaims[0]
		nameID := &NameID{Value: c.Value}
		if format, ok := c.property(PropertySamlNameIDFormat); ok {
			if u, err := url.ParseRequestURI(format); err != nil || !u.IsAbs() {
				return nil, newErr(KindInvalidNameFormat, "name id format %q is not an absolute URI", format)
			}
			nameID.Format = format
		}
		if q, ok := c.property(PropertySamlNameQualifier); ok {
			nameID.NameQualifier = q
		}
		if q, ok := c.property(PropertySamlSPNameQualifier); ok {
			nameID.SPNameQualifier = q
		}
		if id, ok := c.property(PropertySamlSPProvidedID); ok {
			nameID.SPProvidedID = id
		}
		subject.NameID = nameID
	}

	return subject, nil
}

func buildConditions(d TokenDescriptor) *Conditions {
	if d.NotBefore == nil && d.Expires == nil && d.Audience == "" {
		return nil
	}
	cond := &Conditions{}
	if d.NotBefore != nil {
		cond.NotBefore = RelaxedTime{Time: *d.NotBefore}
	}
	if d.Expires != nil {
		cond.NotOnOrAfter = RelaxedTime{Time: *d.Expires}
	}
	if d.Audience != "" {
		cond.AudienceRestrictions = []AudienceRestriction{{Audiences: []string{d.Audience}}}
	}
	return cond
}

// buildStatements implements §4.7 step 5: a single AttributeStatement
// containing every claim of the identity except NameIdentifier,
// AuthenticationInstant, and AuthenticationMethod, with actor handling
// per §4.9.
func buildStatements(identity *ClaimsIdentity) ([]Statement, error) {
	var filtered []Claim
	for _, c := range identity.Claims {
		switch c.Type {
		case ClaimTypeNameIdentifier, ClaimTypeAuthenticationInstant, ClaimTypeAuthenticationMethod:
			continue
		default:
			filtered = append(filtered, c)
		}
	}

	attrs, err := claimsToAttributes(filtered)
	if err != nil {
		return nil, err
	}

	if identity.Actor != nil {
		actorBytes, err := encodeActor(identity.Actor)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{
			Name:   ClaimTypeActor,
			Values: []string{string(actorBytes)},
		})
	}

	if len(attrs) == 0 {
		return nil, nil
	}
	return []Statement{{Attribute: &AttributeStatement{Attributes: attrs}}}, nil
}

// sign produces the signed serialization of assertion using tf and the
// assertion's SigningKey. Handler.WriteToken calls it for every
// assertion; when SigningKey is nil it returns the unsigned serialization.
func sign(assertion *Assertion, s Serializer, tf TransformFactory) ([]byte, error) {
	var unsigned bytes.Buffer
	if err := s.WriteAssertion(&unsigned, assertion); err != nil {
		return nil, fmt.Errorf("samltoken: serializing assertion for signing: %w", err)
	}

	if assertion.SigningKey == nil {
		return unsigned.Bytes(), nil
	}

	root, err := signedSubtree(unsigned.Bytes())
	if err != nil {
		return nil, err
	}

	ctx, err := tf.SigningContext(assertion.SigningKey)
	if err != nil {
		return nil, err
	}

	signedRoot, err := ctx.SignEnveloped(root)
	if err != nil {
		return nil, fmt.Errorf("samltoken: signing assertion: %w", err)
	}

	injectKeyName(signedRoot, assertion.SigningKey.KeyID())

	return elementToBytes(signedRoot)
}

// injectKeyName adds a <KeyName> to the signature's KeyInfo carrying the
// signing key's id. goxmldsig's SignEnveloped only ever writes an
// X509Data into KeyInfo, so without this a verifier has no kid to
// resolve against its candidate keys and can never tell "this issuer
// rotated its key" (KindSignatureKeyNotFound) apart from "the signature
// doesn't verify" (KindInvalidSignature). KeyInfo sits outside what the
// enveloped-signature transform digests, so adding to it after signing
// does not invalidate the signature.
func injectKeyName(root *etree.Element, keyID string) {
	if keyID == "" {
		return
	}
	sig := root.FindElement("./Signature")
	if sig == nil {
		return
	}
	keyInfo := sig.FindElement("./KeyInfo")
	if keyInfo == nil {
		keyInfo = sig.CreateElement("KeyInfo")
	}
	keyInfo.CreateElement("KeyName").SetText(keyID)
}

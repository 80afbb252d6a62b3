package samltoken

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"
)

// Serializer is the narrowed serializer facade this package consumes
// (§6): structural read/write of an Assertion and of a single
// Attribute. The Actor codec does not go through it; it writes and
// parses its own fragment. The default
// implementation layers encoding/xml for structural decode over
// beevik/etree for the signed sub-tree the verifier canonicalizes.
type Serializer interface {
	ReadAssertion(r io.Reader) (*Assertion, error)
	WriteAssertion(w io.Writer, a *Assertion) error
	ReadAttribute(r io.Reader) (*Attribute, error)
	WriteAttribute(w io.Writer, a *Attribute) error
}

// DefaultSerializer is the package's built-in Serializer.
type DefaultSerializer struct{}

// assertionShadow mirrors Assertion for encoding/xml's struct-tag
// decoding, capturing statement elements generically so the tagged
// union in Statement can be resolved by element name afterward.
type assertionShadow struct {
	XMLName      xml.Name    `xml:"urn:oasis:names:tc:SAML:2.0:assertion Assertion"`
	ID           string      `xml:"ID,attr"`
	Version      string      `xml:"Version,attr"`
	IssueInstant xmlTime     `xml:"IssueInstant,attr"`
	Issuer       string      `xml:"Issuer"`
	Signature    *Signature  `xml:"Signature"`
	Subject      *Subject    `xml:"Subject"`
	Conditions   *Conditions `xml:"Conditions"`
	Advice       *Advice     `xml:"Advice"`
	Raw          []rawElement `xml:",any"`
}

// rawElement captures one child element verbatim, for the statements
// that assertionShadow's named fields don't already claim.
type rawElement struct {
	XMLName xml.Name
	Inner   []byte `xml:",innerxml"`
}

func (DefaultSerializer) ReadAssertion(r io.Reader) (*Assertion, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, newErr(KindMalformed, "reading assertion: %v", err)
	}

	var shadow assertionShadow
	if err := xml.Unmarshal(body, &shadow); err != nil {
		return nil, newErr(KindMalformed, "decoding assertion: %v", err)
	}
	if shadow.ID == "" {
		return nil, newErr(KindMalformed, "assertion missing ID")
	}
	if shadow.Issuer == "" {
		return nil, newErr(KindMalformed, "assertion missing Issuer")
	}

	a := &Assertion{
		ID:           shadow.ID,
		Version:      shadow.Version,
		IssueInstant: shadow.IssueInstant.Time,
		Issuer:       shadow.Issuer,
		Signature:    shadow.Signature,
		Subject:      shadow.Subject,
		Conditions:   shadow.Conditions,
		Advice:       shadow.Advice,
	}

	for _, raw := range shadow.Raw {
		switch raw.XMLName.Local {
		case "AttributeStatement":
			var st AttributeStatement
			if err := xml.Unmarshal(wrapElement(raw), &st); err != nil {
				return nil, newErr(KindMalformed, "decoding attribute statement: %v", err)
			}
			a.Statements = append(a.Statements, Statement{Attribute: &st})
		case "AuthnStatement":
			var st AuthenticationStatement
			if err := xml.Unmarshal(wrapElement(raw), &st); err != nil {
				return nil, newErr(KindMalformed, "decoding authn statement: %v", err)
			}
			a.Statements = append(a.Statements, Statement{Authentication: &st})
		case "AuthzDecisionStatement":
			var st AuthzDecisionStatement
			if err := xml.Unmarshal(wrapElement(raw), &st); err != nil {
				return nil, newErr(KindMalformed, "decoding authz decision statement: %v", err)
			}
			a.Statements = append(a.Statements, Statement{AuthzDecision: &st})
		case "Signature", "Subject", "Conditions", "Advice", "Issuer":
			// already claimed by named fields above
		default:
			a.Statements = append(a.Statements, Statement{Unknown: &UnknownStatement{
				XMLName: raw.XMLName,
				Content: raw.Inner,
			}})
		}
	}

	return a, nil
}

func wrapElement(raw rawElement) []byte {
	var buf bytes.Buffer
	name := raw.XMLName.Local
	fmt.Fprintf(&buf, "<%s xmlns=%q>", name, raw.XMLName.Space)
	buf.Write(raw.Inner)
	fmt.Fprintf(&buf, "</%s>", name)
	return buf.Bytes()
}

func (DefaultSerializer) WriteAssertion(w io.Writer, a *Assertion) error {
	doc := etree.NewDocument()
	root := doc.CreateElement("Assertion")
	root.CreateAttr("xmlns", NSAssertion)
	root.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
	root.CreateAttr("ID", a.ID)
	root.CreateAttr("Version", "2.0")
	root.CreateAttr("IssueInstant", a.IssueInstant.UTC().Format(xmlTimeFormat))

	root.CreateElement("Issuer").SetText(a.Issuer)

	if a.Subject != nil {
		writeSubject(root, a.Subject)
	}
	if a.Conditions != nil {
		writeConditions(root, a.Conditions)
	}
	for _, st := range a.Statements {
		writeStatement(root, st)
	}

	doc.Indent(0)
	_, err := doc.WriteTo(w)
	return err
}

func writeSubject(parent *etree.Element, s *Subject) {
	el := parent.CreateElement("Subject")
	if s.NameID != nil {
		nid := el.CreateElement("NameID")
		nid.SetText(s.NameID.Value)
		if s.NameID.Format != "" {
			nid.CreateAttr("Format", s.NameID.Format)
		}
		if s.NameID.NameQualifier != "" {
			nid.CreateAttr("NameQualifier", s.NameID.NameQualifier)
		}
		if s.NameID.SPNameQualifier != "" {
			nid.CreateAttr("SPNameQualifier", s.NameID.SPNameQualifier)
		}
		if s.NameID.SPProvidedID != "" {
			nid.CreateAttr("SPProvidedID", s.NameID.SPProvidedID)
		}
	}
	for _, sc := range s.SubjectConfirmations {
		scEl := el.CreateElement("SubjectConfirmation")
		scEl.CreateAttr("Method", sc.Method)
		if sc.ConfirmationData != nil {
			dEl := scEl.CreateElement("SubjectConfirmationData")
			if !sc.ConfirmationData.NotBefore.IsZero() {
				dEl.CreateAttr("NotBefore", sc.ConfirmationData.NotBefore.UTC().Format(xmlTimeFormat))
			}
			if !sc.ConfirmationData.NotOnOrAfter.IsZero() {
				dEl.CreateAttr("NotOnOrAfter", sc.ConfirmationData.NotOnOrAfter.UTC().Format(xmlTimeFormat))
			}
			if sc.ConfirmationData.Recipient != "" {
				dEl.CreateAttr("Recipient", sc.ConfirmationData.Recipient)
			}
		}
	}
}

func writeConditions(parent *etree.Element, c *Conditions) {
	el := parent.CreateElement("Conditions")
	if !c.NotBefore.IsZero() {
		el.CreateAttr("NotBefore", c.NotBefore.UTC().Format(xmlTimeFormat))
	}
	if !c.NotOnOrAfter.IsZero() {
		el.CreateAttr("NotOnOrAfter", c.NotOnOrAfter.UTC().Format(xmlTimeFormat))
	}
	for _, ar := range c.AudienceRestrictions {
		arEl := el.CreateElement("AudienceRestriction")
		for _, aud := range ar.Audiences {
			arEl.CreateElement("Audience").SetText(aud)
		}
	}
	if c.OneTimeUse != nil {
		el.CreateElement("OneTimeUse")
	}
	if c.ProxyRestriction != nil {
		pEl := el.CreateElement("ProxyRestriction")
		if c.ProxyRestriction.Count != nil {
			pEl.CreateAttr("Count", fmt.Sprintf("%d", *c.ProxyRestriction.Count))
		}
		for _, aud := range c.ProxyRestriction.Audiences {
			pEl.CreateElement("Audience").SetText(aud)
		}
	}
}

func writeStatement(parent *etree.Element, st Statement) {
	switch {
	case st.Attribute != nil:
		el := parent.CreateElement("AttributeStatement")
		for _, attr := range st.Attribute.Attributes {
			writeAttributeElement(el, attr)
		}
	case st.Authentication != nil:
		el := parent.CreateElement("AuthnStatement")
		el.CreateAttr("AuthnInstant", st.Authentication.AuthnInstant.UTC().Format(xmlTimeFormat))
		if st.Authentication.SessionIndex != "" {
			el.CreateAttr("SessionIndex", st.Authentication.SessionIndex)
		}
		ctxEl := el.CreateElement("AuthnContext")
		if st.Authentication.AuthnContext.ClassReference != "" {
			ctxEl.CreateElement("AuthnContextClassRef").SetText(st.Authentication.AuthnContext.ClassReference)
		}
	case st.AuthzDecision != nil:
		el := parent.CreateElement("AuthzDecisionStatement")
		el.CreateAttr("Resource", st.AuthzDecision.Resource)
		el.CreateAttr("Decision", st.AuthzDecision.Decision)
	case st.Unknown != nil:
		parent.CreateElement(st.Unknown.XMLName.Local)
	}
}

func writeAttributeElement(parent *etree.Element, attr Attribute) {
	el := parent.CreateElement("Attribute")
	el.CreateAttr("Name", attr.Name)
	if attr.NameFormat != "" {
		el.CreateAttr("NameFormat", attr.NameFormat)
	}
	if attr.FriendlyName != "" {
		el.CreateAttr("FriendlyName", attr.FriendlyName)
	}
	if attr.OriginalIssuer != "" {
		el.CreateAttr("OriginalIssuer", attr.OriginalIssuer)
	}
	if attr.XSIType != "" {
		el.CreateAttr("xsi:type", attr.XSIType)
	}
	for _, v := range attr.Values {
		el.CreateElement("AttributeValue").SetText(v)
	}
}

func (DefaultSerializer) ReadAttribute(r io.Reader) (*Attribute, error) {
	var attr Attribute
	if err := xml.NewDecoder(r).Decode(&attr); err != nil {
		return nil, newErr(KindMalformed, "decoding attribute: %v", err)
	}
	return &attr, nil
}

func (DefaultSerializer) WriteAttribute(w io.Writer, a *Attribute) error {
	doc := etree.NewDocument()
	writeAttributeElement(doc.Element, *a)
	doc.Indent(0)
	_, err := doc.WriteTo(w)
	return err
}

// signedSubtree parses tokenBytes with etree and returns the root
// element, the DOM the transform factory canonicalizes over when
// verifying a signature. etree is used here rather than encoding/xml
// because canonicalization needs the original element/namespace/
// attribute-order structure, not a Go struct projection of it.
func signedSubtree(tokenBytes []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(tokenBytes); err != nil {
		return nil, newErr(KindMalformed, "parsing signed sub-tree: %v", err)
	}
	if doc.Root() == nil {
		return nil, newErr(KindMalformed, "signed sub-tree has no root element")
	}
	return doc.Root(), nil
}

// elementToBytes serializes a standalone etree element (e.g. a signed
// assertion root returned by a signing context) back to XML bytes.
func elementToBytes(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const xmlTimeFormat = "2006-01-02T15:04:05.000Z"

// xmlTime decodes a required timestamp attribute like IssueInstant,
// accepting either RFC3339 or the millisecond form most IdPs emit.
type xmlTime struct {
	Time time.Time
}

func (t *xmlTime) UnmarshalXMLAttr(attr xml.Attr) error {
	if parsed, err := time.Parse(time.RFC3339, attr.Value); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	parsed, err := time.Parse(xmlTimeFormat, attr.Value)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

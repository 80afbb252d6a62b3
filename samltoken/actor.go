package samltoken

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// actorBlob mirrors the <Actor><Attribute>...</Attribute>...</Actor>
// fragment §4.9 describes.
type actorBlob struct {
	XMLName    xml.Name    `xml:"Actor"`
	Attributes []Attribute `xml:"Attribute"`
}

// encodeActor serializes all of an actor identity's claims, its
// NameIdentifier included, into the nested <Actor> XML fragment, recursing into the actor's own actor
// (if any) as the last attribute of the inner set, per §4.9.
func encodeActor(actor *ClaimsIdentity) ([]byte, error) {
	claims := actor.Claims
	attrs, err := claimsToAttributes(claims)
	if err != nil {
		return nil, err
	}

	if actor.Actor != nil {
		nested, err := encodeActor(actor.Actor)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{
			Name:   ClaimTypeActor,
			Values: []string{string(nested)},
		})
	}

	blob := actorBlob{Attributes: attrs}
	var buf bytes.Buffer
	buf.WriteString("<Actor xmlns=\"" + NSAssertion + "\">")
	for _, a := range blob.Attributes {
		if err := writeActorAttribute(&buf, a); err != nil {
			return nil, err
		}
	}
	buf.WriteString("</Actor>")
	return buf.Bytes(), nil
}

func writeActorAttribute(buf *bytes.Buffer, a Attribute) error {
	fmt.Fprintf(buf, "<Attribute Name=%q", a.Name)
	if a.NameFormat != "" {
		fmt.Fprintf(buf, " NameFormat=%q", a.NameFormat)
	}
	if a.FriendlyName != "" {
		fmt.Fprintf(buf, " FriendlyName=%q", a.FriendlyName)
	}
	if a.OriginalIssuer != "" {
		fmt.Fprintf(buf, " OriginalIssuer=%q", a.OriginalIssuer)
	}
	buf.WriteString(">")
	for _, v := range a.Values {
		buf.WriteString("<AttributeValue>")
		xml.EscapeText(buf, []byte(v))
		buf.WriteString("</AttributeValue>")
	}
	buf.WriteString("</Attribute>")
	return nil
}

// decodeActor parses the XML fragment produced by encodeActor back
// into a ClaimsIdentity, recursing on a nested Actor attribute. Exactly
// one nested actor per level is permitted.
func decodeActor(blobBytes []byte) (*ClaimsIdentity, error) {
	var blob actorBlob
	if err := xml.Unmarshal(blobBytes, &blob); err != nil {
		return nil, newErr(KindMalformed, "decoding actor blob: %v", err)
	}

	identity := NewClaimsIdentity()
	nestedSeen := false
	for _, attr := range blob.Attributes {
		if attr.Name == ClaimTypeActor {
			if nestedSeen {
				return nil, newErr(KindNestedActorConflict, "actor blob carries more than one nested Actor attribute")
			}
			nestedSeen = true
			if len(attr.Values) == 0 {
				return nil, newErr(KindMalformed, "nested Actor attribute has no value")
			}
			nested, err := decodeActor([]byte(attr.Values[0]))
			if err != nil {
				return nil, err
			}
			identity.Actor = nested
			continue
		}

		props := map[string]string{}
		if attr.NameFormat != "" {
			props[PropertySamlAttributeNameFormat] = attr.NameFormat
		}
		if attr.FriendlyName != "" {
			props[PropertySamlAttributeDisplayName] = attr.FriendlyName
		}
		for _, v := range attr.Values {
			identity.AddClaim(Claim{
				Type:           attr.Name,
				Value:          v,
				OriginalIssuer: attr.OriginalIssuer,
				Properties:     props,
			})
		}
	}

	return identity, nil
}

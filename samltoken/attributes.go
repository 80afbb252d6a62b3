package samltoken

import "net/url"

// claimsToAttributes implements §4.8: flatten claims into attributes,
// then collapse attributes with equal (Name, XSIType, OriginalIssuer)
// into a single attribute whose values are the concatenation in
// original order.
func claimsToAttributes(claims []Claim) ([]Attribute, error) {
	type key struct {
		name, xsiType, originalIssuer string
	}

	order := make([]key, 0, len(claims))
	byKey := make(map[key]*Attribute, len(claims))

	for _, c := range claims {
		attr := Attribute{
			Name:    c.Type,
			XSIType: c.ValueType,
			Values:  []string{c.Value},
		}
		if c.OriginalIssuer != c.Issuer {
			attr.OriginalIssuer = c.OriginalIssuer
		}
		if nf, ok := c.property(PropertySamlAttributeNameFormat); ok {
			if u, err := url.ParseRequestURI(nf); err != nil || !u.IsAbs() {
				return nil, newErr(KindInvalidNameFormat, "attribute name_format %q is not an absolute URI", nf)
			}
			attr.NameFormat = nf
		}
		if dn, ok := c.property(PropertySamlAttributeDisplayName); ok {
			attr.FriendlyName = dn
		}

		k := key{name: attr.Name, xsiType: attr.XSIType, originalIssuer: attr.OriginalIssuer}
		if existing, ok := byKey[k]; ok {
			existing.Values = append(existing.Values, c.Value)
			continue
		}
		stored := attr
		byKey[k] = &stored
		order = append(order, k)
	}

	out := make([]Attribute, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out, nil
}

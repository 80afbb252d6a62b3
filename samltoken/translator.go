package samltoken

import "time"

// toIdentity implements §4.6: the inbound claims translator. It walks
// the subject and statements of a verified, condition-checked assertion
// and produces a ClaimsIdentity.
func toIdentity(assertion *Assertion, params *ValidationParameters) (*ClaimsIdentity, error) {
	issuer, err := params.validateIssuer(assertion.Issuer, assertion)
	if err != nil {
		return nil, err
	}

	identity := params.createClaimsIdentity(assertion, issuer)

	if assertion.Subject != nil && assertion.Subject.NameID != nil {
		nid := assertion.Subject.NameID
		props := map[string]string{}
		if nid.Format != "" {
			props[PropertySamlNameIDFormat] = nid.Format
		}
		if nid.NameQualifier != "" {
			props[PropertySamlNameQualifier] = nid.NameQualifier
		}
		if nid.SPNameQualifier != "" {
			props[PropertySamlSPNameQualifier] = nid.SPNameQualifier
		}
		if nid.SPProvidedID != "" {
			props[PropertySamlSPProvidedID] = nid.SPProvidedID
		}
		identity.AddClaim(Claim{
			Type:       ClaimTypeNameIdentifier,
			Value:      nid.Value,
			ValueType:  "string",
			Issuer:     issuer,
			Properties: props,
		})
	}

	var deferredAuthn []Statement
	for _, st := range assertion.Statements {
		switch {
		case st.Attribute != nil:
			if err := translateAttributeStatement(identity, st.Attribute, issuer); err != nil {
				return nil, err
			}
		case st.Authentication != nil:
			deferredAuthn = append(deferredAuthn, st)
		case st.AuthzDecision != nil:
			// no-op extension point by default
		}
	}

	for _, st := range deferredAuthn {
		if err := translateAuthnStatement(identity, st.Authentication, issuer); err != nil {
			return nil, err
		}
	}

	return identity, nil
}

func translateAttributeStatement(identity *ClaimsIdentity, st *AttributeStatement, issuer string) error {
	actorSeen := false
	for _, attr := range st.Attributes {
		if attr.Name == ClaimTypeActor {
			if actorSeen {
				return newErr(KindNestedActorConflict, "assertion carries more than one Actor attribute")
			}
			actorSeen = true
			if len(attr.Values) == 0 {
				return newErr(KindMalformed, "Actor attribute has no value")
			}
			actor, err := decodeActor([]byte(attr.Values[0]))
			if err != nil {
				return err
			}
			identity.Actor = actor
			continue
		}

		originalIssuer := attr.OriginalIssuer
		if originalIssuer == "" {
			originalIssuer = issuer
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
				ValueType:      attr.XSIType,
				Issuer:         issuer,
				OriginalIssuer: originalIssuer,
				Properties:     props,
			})
		}
	}
	return nil
}

func translateAuthnStatement(identity *ClaimsIdentity, st *AuthenticationStatement, issuer string) error {
	if st.AuthnContext.DeclarationReference != "" {
		return newErr(KindUnsupportedAuthnContext, "authn context declaration references are not supported")
	}
	if st.AuthnContext.ClassReference != "" {
		identity.AddClaim(Claim{
			Type:   ClaimTypeAuthenticationMethod,
			Value:  st.AuthnContext.ClassReference,
			Issuer: issuer,
		})
	}
	identity.AddClaim(Claim{
		Type:   ClaimTypeAuthenticationInstant,
		Value:  st.AuthnInstant.UTC().Format(time.RFC3339),
		Issuer: issuer,
	})
	return nil
}

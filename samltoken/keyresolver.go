package samltoken

// resolveSigningKey implements the §4.2 key resolver: given an
// assertion's signature kid, scan the single configured issuer signing
// key and then the configured collection, returning the first whose
// KeyID equals kid under byte-exact comparison. Pure function, no I/O.
//
// If params supplies IssuerSigningKeyResolver, the caller (verifier.go)
// invokes that instead and never reaches this function.
func resolveSigningKey(assertion *Assertion, params *ValidationParameters) (SecurityKey, bool) {
	if assertion.Signature == nil || assertion.Signature.KeyInfo == nil {
		return nil, false
	}
	kid := assertion.Signature.KeyInfo.KeyID
	if kid == "" {
		return nil, false
	}

	if params.IssuerSigningKey != nil && params.IssuerSigningKey.KeyID() == kid {
		return params.IssuerSigningKey, true
	}
	for _, k := range params.IssuerSigningKeys {
		if k.KeyID() == kid {
			return k, true
		}
	}
	return nil, false
}

// candidateKeys builds the ordered candidate-key list the verifier
// trial-verifies against, per §4.3 step 3: prefer the external
// resolver callback, else the internal resolver wrapped as a
// one-element list, else the degenerate concatenation of the
// configured single key and collection.
func candidateKeys(assertion *Assertion, params *ValidationParameters) []SecurityKey {
	if params.IssuerSigningKeyResolver != nil {
		return params.IssuerSigningKeyResolver(assertion, params)
	}
	if key, ok := resolveSigningKey(assertion, params); ok {
		return []SecurityKey{key}
	}

	var out []SecurityKey
	if params.IssuerSigningKey != nil {
		out = append(out, params.IssuerSigningKey)
	}
	out = append(out, params.IssuerSigningKeys...)
	return out
}

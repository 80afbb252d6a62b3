package samltoken

// verify implements §4.3. On success, the returned assertion has
// SigningKey set; on any failure the assertion is discarded (the
// verifier never partially mutates a caller-visible assertion).
func verify(tokenBytes []byte, r *reader, tf TransformFactory, params *ValidationParameters) (*Assertion, error) {
	if params.SignatureValidator != nil {
		assertion, err := params.SignatureValidator(tokenBytes, params)
		if err != nil {
			return nil, err
		}
		if assertion == nil {
			return nil, newErr(KindInvalidSignature, "signature_validator override returned a nil assertion")
		}
		return assertion, nil
	}

	assertion, err := r.read(tokenBytes)
	if err != nil {
		return nil, err
	}

	if assertion.Signature == nil {
		if params.RequireSignedTokens {
			return nil, newErr(KindMissingSignature, "assertion %q is unsigned and signed tokens are required", assertion.ID)
		}
		return assertion, nil
	}

	root, err := signedSubtree(tokenBytes)
	if err != nil {
		return nil, err
	}

	candidates := candidateKeys(assertion, params)
	if len(candidates) == 0 {
		return nil, newErr(KindInvalidSignature, "no candidate keys configured (empty keyset)")
	}

	var attempts []KeyAttempt
	for _, key := range candidates {
		cert := key.Certificate()
		if cert == nil {
			attempts = append(attempts, KeyAttempt{KeyID: key.KeyID(), Err: errNoCertificate})
			continue
		}
		if _, err := validateOne(tf, root, cert); err != nil {
			attempts = append(attempts, KeyAttempt{KeyID: key.KeyID(), Err: err})
			continue
		}
		assertion.SigningKey = key
		return assertion, nil
	}

	if kid := signatureKeyID(assertion); kid != "" {
		matched := false
		for _, k := range candidates {
			if k.KeyID() == kid {
				matched = true
				break
			}
		}
		if !matched {
			return nil, &Error{
				Kind:     KindSignatureKeyNotFound,
				Message:  "signature key id " + kid + " matched no candidate key; issuer metadata is likely stale",
				Attempts: attempts,
			}
		}
	}

	return nil, &Error{
		Kind:     KindInvalidSignature,
		Message:  "no candidate key verified the assertion signature",
		Attempts: attempts,
	}
}

func signatureKeyID(assertion *Assertion) string {
	if assertion.Signature == nil || assertion.Signature.KeyInfo == nil {
		return ""
	}
	return assertion.Signature.KeyInfo.KeyID
}

var errNoCertificate = errNoCertificateType{}

type errNoCertificateType struct{}

func (errNoCertificateType) Error() string { return "key has no certificate to verify against" }

package samltoken

import "time"

// validateSubject implements §4.5: the subject must be present, and
// every subject confirmation carrying confirmation data has that
// data's (NotBefore, NotOnOrAfter) window validated.
func validateSubject(assertion *Assertion, params *ValidationParameters) error {
	if assertion.Subject == nil {
		return newErr(KindMissingSubject, "assertion %q has no subject", assertion.ID)
	}

	for _, sc := range assertion.Subject.SubjectConfirmations {
		if sc.ConfirmationData == nil {
			continue
		}
		var nb, na *time.Time
		if !sc.ConfirmationData.NotBefore.IsZero() {
			t := sc.ConfirmationData.NotBefore.Time
			nb = &t
		}
		if !sc.ConfirmationData.NotOnOrAfter.IsZero() {
			t := sc.ConfirmationData.NotOnOrAfter.Time
			na = &t
		}
		if nb == nil && na == nil {
			continue
		}
		if err := params.validateLifetime(nb, na, assertion); err != nil {
			return err
		}
	}

	return nil
}

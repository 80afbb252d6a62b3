package samltoken

import (
	"context"
	"time"
)

// validateConditions implements §4.4: lifetime delegation, one-time-use
// / proxy-restriction RequiresOverride, and per-restriction audience
// validation. It is called after signature verification, before the
// subject validator.
func validateConditions(assertion *Assertion, params *ValidationParameters) error {
	cond := assertion.Conditions
	if cond == nil {
		return nil
	}

	if !cond.NotBefore.IsZero() || !cond.NotOnOrAfter.IsZero() {
		var nb, na *time.Time
		if !cond.NotBefore.IsZero() {
			t := cond.NotBefore.Time
			nb = &t
		}
		if !cond.NotOnOrAfter.IsZero() {
			t := cond.NotOnOrAfter.Time
			na = &t
		}
		if err := params.validateLifetime(nb, na, assertion); err != nil {
			return err
		}
	}

	if cond.OneTimeUse != nil {
		if params.ValidateTokenReplay == nil {
			return newErr(KindRequiresOverride, "assertion %q has one_time_use set and no replay validator is configured", assertion.ID)
		}
		var na *time.Time
		if !cond.NotOnOrAfter.IsZero() {
			t := cond.NotOnOrAfter.Time
			na = &t
		}
		if err := params.ValidateTokenReplay.Validate(context.Background(), assertion.ID, na); err != nil {
			return err
		}
	}

	if cond.ProxyRestriction != nil {
		return newErr(KindRequiresOverride, "assertion %q has a proxy_restriction and no override is configured", assertion.ID)
	}

	for _, ar := range cond.AudienceRestrictions {
		if err := params.validateAudience(ar.Audiences, assertion); err != nil {
			return err
		}
	}

	return nil
}

package samltoken

import (
	"fmt"
	"strings"
)

// Kind identifies a class of failure raised inside the core. It is not
// a type hierarchy: every failure the core itself raises is an *Error
// with one of these kinds attached, so callers switch on Kind rather
// than on Go types.
type Kind string

const (
	// KindOversizeInput means the input bytes exceeded max token size.
	KindOversizeInput Kind = "oversize_input"
	// KindMalformed means the input was not a well-formed assertion.
	KindMalformed Kind = "malformed"
	// KindMissingSignature means the assertion had no signature while
	// one was required.
	KindMissingSignature Kind = "missing_signature"
	// KindInvalidSignature means every candidate key failed to verify
	// the signature, or a signature_validator override returned an
	// unusable result.
	KindInvalidSignature Kind = "invalid_signature"
	// KindSignatureKeyNotFound means the assertion carried a kid and no
	// candidate key's KeyID matched it.
	KindSignatureKeyNotFound Kind = "signature_key_not_found"
	// KindMissingSubject means the assertion had no Subject element.
	KindMissingSubject Kind = "missing_subject"
	// KindMissingIssuer means the outbound descriptor had no issuer.
	KindMissingIssuer Kind = "missing_issuer"
	// KindInvalidAudience is raised by the audience validator.
	KindInvalidAudience Kind = "invalid_audience"
	// KindInvalidIssuer is raised by the issuer validator.
	KindInvalidIssuer Kind = "invalid_issuer"
	// KindInvalidLifetime is raised by the lifetime validator.
	KindInvalidLifetime Kind = "invalid_lifetime"
	// KindTokenReplayed is raised by the replay validator.
	KindTokenReplayed Kind = "token_replayed"
	// KindRequiresOverride is raised for one_time_use / proxy_restriction
	// conditions that the default validator refuses to adjudicate.
	KindRequiresOverride Kind = "requires_override"
	// KindUnsupportedAuthnContext is raised when an AuthnContext carries
	// a declaration reference, which this core does not resolve.
	KindUnsupportedAuthnContext Kind = "unsupported_authn_context"
	// KindNestedActorConflict means more than one Actor attribute (or
	// nested actor blob) was found at a single delegation level.
	KindNestedActorConflict Kind = "nested_actor_conflict"
	// KindInvalidNameFormat means a format string that must be an
	// absolute URI was not one.
	KindInvalidNameFormat Kind = "invalid_name_format"
	// KindInvalidConfiguration is raised by handler configuration, e.g.
	// max_token_size < 1.
	KindInvalidConfiguration Kind = "invalid_configuration"
)

// KeyAttempt records one candidate key's verification outcome, used to
// build the aggregated diagnostic trace on KindInvalidSignature and
// KindSignatureKeyNotFound.
type KeyAttempt struct {
	KeyID string
	Err   error
}

// Error is the error type every failure raised inside the core carries.
// Errors that cross an external-collaborator boundary (validate_lifetime,
// validate_audience, validate_issuer, a replay validator, ...) are
// returned unwrapped, as-is, by the functions that invoke those
// collaborators.
type Error struct {
	Kind    Kind
	Message string

	// Attempts is populated only for KindInvalidSignature and
	// KindSignatureKeyNotFound: one entry
	// per candidate key that was tried, in order, with its failure.
	Attempts []KeyAttempt
}

func (e *Error) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("samltoken: %s: %s", e.Kind, e.Message)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "samltoken: %s: %s", e.Kind, e.Message)
	for _, a := range e.Attempts {
		if a.KeyID == "" {
			fmt.Fprintf(&b, "; key <unnamed>: %v", a.Err)
		} else {
			fmt.Fprintf(&b, "; key %q: %v", a.KeyID, a.Err)
		}
	}
	return b.String()
}

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// NewTokenReplayedError builds the KindTokenReplayed error an external
// TokenReplayValidator implementation (see ValidationParameters.ValidateTokenReplay)
// should return when it has already seen assertionID.
func NewTokenReplayedError(assertionID string) error {
	return newErr(KindTokenReplayed, "assertion %q has already been used", assertionID)
}

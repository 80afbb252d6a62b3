// Package samltoken implements the core of a SAML 2.0 security-token
// handler: it builds signed SAML 2.0 assertions from a claims identity,
// and reads, verifies, and validates incoming assertions back into a
// claims identity.
//
// The package does not implement XML canonicalization, the SAML2 XML
// serializer, or cryptographic primitives itself; it consumes narrow
// interfaces (Serializer, TransformFactory, SecurityKey) so that those
// concerns can be swapped or stubbed independently. Encryption,
// SAML 1.1, holder-of-key subject confirmation, and replay-cache
// storage are out of scope; see ValidationParameters.ValidateTokenReplay
// for the replay extension point.
package samltoken

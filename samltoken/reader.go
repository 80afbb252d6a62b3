package samltoken

import (
	"bytes"
	"encoding/xml"
)

// DefaultMaxTokenSize is the conservative default for Handler's
// max_token_size property: generous enough for a realistically sized
// signed assertion, small enough to bound a hostile caller's parse
// cost.
const DefaultMaxTokenSize = 1 << 20 // 1 MiB

type reader struct {
	serializer   Serializer
	maxTokenSize int
}

func newReader(s Serializer, maxTokenSize int) *reader {
	return &reader{serializer: s, maxTokenSize: maxTokenSize}
}

// canRead reports whether tokenBytes looks like a readable assertion,
// without raising: whitespace-only, oversize, or non-matching root all
// yield false, per §4.1.
func (r *reader) canRead(tokenBytes []byte) bool {
	if len(tokenBytes) > r.maxTokenSize {
		return false
	}
	return startsWithAssertionElement(tokenBytes)
}

// read implements §4.1: reject oversize input, reject input that does
// not begin with the Assertion root element, else delegate to the
// serializer for structural decode.
func (r *reader) read(tokenBytes []byte) (*Assertion, error) {
	if len(tokenBytes) > r.maxTokenSize {
		return nil, newErr(KindOversizeInput, "token is %d bytes, exceeds max_token_size %d", len(tokenBytes), r.maxTokenSize)
	}
	if !startsWithAssertionElement(tokenBytes) {
		return nil, newErr(KindMalformed, "input does not begin with a {%s}Assertion element", NSAssertion)
	}
	return r.serializer.ReadAssertion(bytes.NewReader(tokenBytes))
}

// startsWithAssertionElement scans past leading whitespace and any XML
// prolog/comment/PI tokens for the first start element and checks it is
// {urn:oasis:names:tc:SAML:2.0:assertion}Assertion.
func startsWithAssertionElement(tokenBytes []byte) bool {
	trimmed := bytes.TrimSpace(tokenBytes)
	if len(trimmed) == 0 {
		return false
	}

	dec := xml.NewDecoder(bytes.NewReader(trimmed))
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		return start.Name.Local == "Assertion" && start.Name.Space == NSAssertion
	}
}

package samltoken

import (
	"io"
	"sync/atomic"
)

// Handler is the package's exposed surface (§6): CanReadToken,
// ReadToken, ValidateToken, CreateToken, WriteToken, and a
// max_token_size property. It is reentrant and safe for concurrent
// reads provided its mutable configuration is not reconfigured
// concurrently with in-flight validations (§5); construct it once via
// HandlerBuilder and treat it as immutable thereafter.
type Handler struct {
	serializer   Serializer
	transform    TransformFactory
	maxTokenSize atomic.Int64
}

// HandlerBuilder produces an immutable Handler. Prefer this over the
// legacy setters below for new callers.
type HandlerBuilder struct {
	serializer   Serializer
	transform    TransformFactory
	maxTokenSize int
}

// NewHandlerBuilder returns a builder seeded with the package defaults:
// DefaultSerializer, DefaultTransformFactory, DefaultMaxTokenSize.
func NewHandlerBuilder() *HandlerBuilder {
	return &HandlerBuilder{
		serializer:   DefaultSerializer{},
		transform:    DefaultTransformFactory{},
		maxTokenSize: DefaultMaxTokenSize,
	}
}

func (b *HandlerBuilder) WithSerializer(s Serializer) *HandlerBuilder {
	b.serializer = s
	return b
}

func (b *HandlerBuilder) WithTransformFactory(tf TransformFactory) *HandlerBuilder {
	b.transform = tf
	return b
}

func (b *HandlerBuilder) WithMaxTokenSize(n int) *HandlerBuilder {
	b.maxTokenSize = n
	return b
}

// Build validates the accumulated configuration and returns an
// immutable Handler, or InvalidConfiguration if max_token_size < 1.
func (b *HandlerBuilder) Build() (*Handler, error) {
	if b.maxTokenSize < 1 {
		return nil, newErr(KindInvalidConfiguration, "max_token_size must be >= 1, got %d", b.maxTokenSize)
	}
	h := &Handler{serializer: b.serializer, transform: b.transform}
	h.maxTokenSize.Store(int64(b.maxTokenSize))
	return h, nil
}

// MaxTokenSize returns the current max_token_size.
func (h *Handler) MaxTokenSize() int {
	return int(h.maxTokenSize.Load())
}

// SetMaxTokenSize is a legacy-parity setter on a live handler. It is a
// concession to API compatibility with callers that configure a
// long-lived handler in place; callers must not invoke it concurrently
// with an in-flight CanReadToken/ReadToken/ValidateToken/CreateToken
// call on the same handler (§5, §9).
func (h *Handler) SetMaxTokenSize(n int) error {
	if n < 1 {
		return newErr(KindInvalidConfiguration, "max_token_size must be >= 1, got %d", n)
	}
	h.maxTokenSize.Store(int64(n))
	return nil
}

// SetSerializer is a legacy-parity setter; see SetMaxTokenSize's
// no-concurrent-reconfigure contract.
func (h *Handler) SetSerializer(s Serializer) {
	h.serializer = s
}

// SetTransformFactory is a legacy-parity setter; see SetMaxTokenSize's
// no-concurrent-reconfigure contract.
func (h *Handler) SetTransformFactory(tf TransformFactory) {
	h.transform = tf
}

func (h *Handler) newReader() *reader {
	return newReader(h.serializer, h.MaxTokenSize())
}

// CanReadToken probes tokenBytes without raising.
func (h *Handler) CanReadToken(tokenBytes []byte) bool {
	return h.newReader().canRead(tokenBytes)
}

// ReadToken parses tokenBytes into an Assertion without verifying its
// signature or validating any conditions.
func (h *Handler) ReadToken(tokenBytes []byte) (*Assertion, error) {
	return h.newReader().read(tokenBytes)
}

// ValidateToken runs the full §4.10 state machine: parse, verify
// signature, validate conditions, validate subject confirmations,
// resolve issuer and build claims, in that order. Any stage failure is
// terminal.
func (h *Handler) ValidateToken(tokenBytes []byte, params *ValidationParameters) (*ValidationResult, error) {
	if params == nil {
		params = NewValidationParameters()
	}

	assertion, err := verify(tokenBytes, h.newReader(), h.transform, params)
	if err != nil {
		return nil, err
	}

	if err := validateConditions(assertion, params); err != nil {
		return nil, err
	}

	if err := validateSubject(assertion, params); err != nil {
		return nil, err
	}

	identity, err := toIdentity(assertion, params)
	if err != nil {
		return nil, err
	}

	return &ValidationResult{Principal: identity, Token: assertion}, nil
}

// CreateToken implements the reverse path (§4.7): descriptor → assertion.
func (h *Handler) CreateToken(descriptor TokenDescriptor) (*Assertion, error) {
	return create(descriptor, h.transform)
}

// WriteToken serializes token to w, signing it first if it carries a
// SigningKey.
func (h *Handler) WriteToken(w io.Writer, token *Assertion) error {
	signed, err := sign(token, h.serializer, h.transform)
	if err != nil {
		return err
	}
	_, err = w.Write(signed)
	return err
}

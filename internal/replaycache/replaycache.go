// Package replaycache provides a Redis-backed samltoken.TokenReplayValidator.
package replaycache

import (
	"context"
	"fmt"
	"time"

	"github.com/artpromedia/samltoken"
	"github.com/redis/go-redis/v9"
)

// Validator enforces one-time-use assertions via a Redis SETNX: the
// first caller to claim an assertion ID wins, every later caller for
// the same ID is a replay. The key expires at the assertion's own
// NotOnOrAfter (but no sooner than one minute from now), so the cache
// does not grow without bound.
type Validator struct {
	client       *redis.Client
	keyPrefix    string
	defaultTTL   time.Duration
	minimumTTL   time.Duration
}

// New creates a replay Validator backed by client. defaultTTL is used
// when an assertion carries no NotOnOrAfter to derive a TTL from.
func New(client *redis.Client, defaultTTL time.Duration) *Validator {
	return &Validator{
		client:     client,
		keyPrefix:  "saml:replay:",
		defaultTTL: defaultTTL,
		minimumTTL: time.Minute,
	}
}

// Validate implements samltoken.TokenReplayValidator.
func (v *Validator) Validate(ctx context.Context, assertionID string, notOnOrAfter *time.Time) error {
	ttl := v.defaultTTL
	if notOnOrAfter != nil {
		if remaining := time.Until(*notOnOrAfter); remaining > v.minimumTTL {
			ttl = remaining
		} else {
			ttl = v.minimumTTL
		}
	}

	ok, err := v.client.SetNX(ctx, v.keyPrefix+assertionID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return fmt.Errorf("replay cache unavailable: %w", err)
	}
	if !ok {
		return samltoken.NewTokenReplayedError(assertionID)
	}
	return nil
}

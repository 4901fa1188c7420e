package state

import "time"

// config holds the options shared by store constructors.
type config struct {
	ttl       time.Duration
	keyPrefix string
	now       func() time.Time
}

// Option configures a Store.
type Option func(*config)

func newConfig(opts []Option) *config {
	cfg := &config{
		ttl:       DefaultTTL,
		keyPrefix: "paymcp",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Resolve applies opts over the defaults and returns the resulting settings.
// Backends in sub-packages use it so that every store honors the same options.
func Resolve(opts ...Option) (ttl time.Duration, keyPrefix string, now func() time.Time) {
	cfg := newConfig(opts)
	return cfg.ttl, cfg.keyPrefix, cfg.now
}

// WithTTL sets how long an unread session survives.
//
// Default: 1 hour. A non-positive TTL disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithKeyPrefix namespaces keys in shared backends (Redis, Mongo collections).
//
// Default: "paymcp"
func WithKeyPrefix(prefix string) Option {
	return func(c *config) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

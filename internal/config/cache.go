package config

import "time"

// CacheConfig configures the Redis response cache used for public event
// snapshots.  Seat counts change constantly, so the TTL stays short.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          envDur("CACHE_TTL", 5*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "cache:event"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 64<<10),
	}
}

// IdempotencyConfig controls how long create-booking idempotency keys are kept.
type IdempotencyConfig struct {
	Enabled bool
	// TTL is how long a completed request is remembered.
	TTL time.Duration
	// PendingTTL bounds the claim of a request still in flight, so a crash
	// mid-request frees the key quickly.
	PendingTTL time.Duration
	Prefix     string
}

// LoadIdempotencyConfig reads IDEMPOTENCY_* variables.
func LoadIdempotencyConfig() IdempotencyConfig {
	cfg := IdempotencyConfig{
		Enabled:    envBool("IDEMPOTENCY_ENABLED", true),
		TTL:        envDur("IDEMPOTENCY_TTL", 24*time.Hour),
		PendingTTL: envDur("IDEMPOTENCY_PENDING_TTL", time.Minute),
		Prefix:     envStr("IDEMPOTENCY_PREFIX", "idem:booking"),
	}
	if cfg.PendingTTL <= 0 || cfg.PendingTTL > cfg.TTL {
		cfg.PendingTTL = min(time.Minute, cfg.TTL)
	}
	return cfg
}

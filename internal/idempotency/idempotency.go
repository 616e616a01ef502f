// Package idempotency remembers create-booking requests by client supplied
// key so that a retried request returns the original booking instead of
// booking twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-seat-booking/internal/config"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

// maxKeyLen bounds client supplied keys.
const maxKeyLen = 128

const (
	statePending = "pending"
	stateDone    = "done"
)

// record is the value stored under a key.  Fingerprint identifies the
// request body the key was first used with.
type record struct {
	State       string         `json:"state"`
	Fingerprint string         `json:"fingerprint"`
	Booking     *model.Booking `json:"booking,omitempty"`
}

// Fingerprint hashes a request body.  Two requests share a fingerprint
// only when they encode to the same JSON.
func Fingerprint(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Store keeps idempotency records in Redis.
type Store struct {
	rdb *redis.Client
	cfg config.IdempotencyConfig
}

// New returns a Store, or nil when Redis is unavailable or the feature is
// disabled.  A nil *Store lets every request through.
func New(rdb *redis.Client, cfg config.IdempotencyConfig) *Store {
	if rdb == nil || !cfg.Enabled {
		return nil
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = time.Minute
	}
	return &Store{rdb: rdb, cfg: cfg}
}

func (s *Store) key(userID, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.cfg.Prefix, userID, strings.TrimSpace(key))
}

// Begin claims key for userID and the request identified by fingerprint.
// It returns the stored booking when the same request already completed,
// ErrConflict while another request holds the key or when the key was
// used with a different request, and (nil, nil) when the caller owns the
// key and should proceed.
func (s *Store) Begin(ctx context.Context, userID, key, fingerprint string) (*model.Booking, error) {
	if s == nil {
		return nil, nil
	}
	if k := strings.TrimSpace(key); k == "" || len(k) > maxKeyLen {
		return nil, fmt.Errorf("%w: idempotency key must be 1-%d characters", model.ErrValidation, maxKeyLen)
	}
	k := s.key(userID, key)
	claim, err := json.Marshal(record{State: statePending, Fingerprint: fingerprint})
	if err != nil {
		return nil, err
	}
	claimed, err := s.rdb.SetNX(ctx, k, claim, s.cfg.PendingTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	raw, err := s.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; treat as in flight and let the client retry
		return nil, fmt.Errorf("%w: idempotency key is being processed", model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	if rec.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: idempotency key was used with a different request", model.ErrConflict)
	}
	if rec.State != stateDone || rec.Booking == nil {
		return nil, fmt.Errorf("%w: idempotency key is being processed", model.ErrConflict)
	}
	return rec.Booking, nil
}

// Complete records the booking produced for key and keeps it for the
// full TTL.
func (s *Store) Complete(ctx context.Context, userID, key, fingerprint string, b model.Booking) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(record{State: stateDone, Fingerprint: fingerprint, Booking: &b})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(userID, key), raw, s.cfg.TTL).Err()
}

// Abort releases key after a failed request so the client may retry.
func (s *Store) Abort(ctx context.Context, userID, key string) error {
	if s == nil {
		return nil
	}
	return s.rdb.Del(ctx, s.key(userID, key)).Err()
}

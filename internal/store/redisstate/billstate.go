// Package redisstate keeps per-bill processing state in Redis. Bill state is
// rebuildable bookkeeping, so it lives in the cache tier while evidence and
// promises stay in the document store.
package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pledgewatch/internal/domain"
	"pledgewatch/pkg/platform/sentinel"
)

const keyPrefix = "pledgewatch:bill-state:"

type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

// New creates a Redis-backed bill state store. A zero TTL keeps entries
// until explicitly reset.
func New(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

type record struct {
	Parliament      int       `json:"parliament"`
	Session         int       `json:"session"`
	Code            string    `json:"code"`
	LastActivity    time.Time `json:"last_activity"`
	LastActivityRaw string    `json:"last_activity_raw"`
	Status          string    `json:"status"`
	FailureCount    int       `json:"failure_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (s *Store) GetBillState(ctx context.Context, key domain.BillKey) (domain.BillState, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key.String()).Result()
	if errors.Is(err, redis.Nil) {
		return domain.BillState{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.BillState{}, fmt.Errorf("get bill state: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.BillState{}, fmt.Errorf("decode bill state: %w", err)
	}
	return domain.BillState{
		Key:             domain.BillKey{Parliament: rec.Parliament, Session: rec.Session, Code: rec.Code},
		LastActivity:    rec.LastActivity,
		LastActivityRaw: rec.LastActivityRaw,
		Status:          domain.BillStatus(rec.Status),
		FailureCount:    rec.FailureCount,
		UpdatedAt:       rec.UpdatedAt,
	}, nil
}

func (s *Store) PutBillState(ctx context.Context, state domain.BillState) error {
	rec := record{
		Parliament:      state.Key.Parliament,
		Session:         state.Key.Session,
		Code:            state.Key.Code,
		LastActivity:    state.LastActivity,
		LastActivityRaw: state.LastActivityRaw,
		Status:          string(state.Status),
		FailureCount:    state.FailureCount,
		UpdatedAt:       time.Now(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode bill state: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+state.Key.String(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("put bill state: %w", err)
	}
	return nil
}

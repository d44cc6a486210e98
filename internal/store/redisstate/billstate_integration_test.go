//go:build integration

package redisstate

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"pledgewatch/internal/domain"
	"pledgewatch/pkg/platform/sentinel"
)

func setupRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := goredis.ParseURL(uri)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBillStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(setupRedis(t), time.Hour)
	key := domain.BillKey{Parliament: 44, Session: 1, Code: "C-5"}

	_, err := s.GetBillState(ctx, key)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.PutBillState(ctx, domain.BillState{
		Key:             key,
		LastActivity:    time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		LastActivityRaw: "2026-02-10T00:00:00Z",
		Status:          domain.BillStatusPending,
		FailureCount:    1,
	}))

	state, err := s.GetBillState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, state.Key)
	assert.Equal(t, domain.BillStatusPending, state.Status)
	assert.Equal(t, 1, state.FailureCount)
	assert.False(t, state.UpdatedAt.IsZero())
}

//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"
)

func setupBroker(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.1.7")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	broker, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)
	return broker
}

func TestKafkaSinkPublishes(t *testing.T) {
	broker := setupBroker(t)
	ctx := context.Background()

	sink, err := NewKafkaSink(ctx, []string{broker}, "audit-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	event := NewEvent(EventLinkCreated, "run-42")
	event.EvidenceID = "evidence:bill:44-1/C-5:second-reading"
	event.Score = 0.91
	require.NoError(t, sink.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics("audit-test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "run-42", string(records[0].Key), "events are keyed by run so one run stays ordered")

	var got Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, EventLinkCreated, got.Type)
	assert.Equal(t, "evidence:bill:44-1/C-5:second-reading", got.EvidenceID)
	assert.InDelta(t, 0.91, got.Score, 1e-9)
}

func TestKafkaSinkTopicCreationIsIdempotent(t *testing.T) {
	broker := setupBroker(t)
	ctx := context.Background()

	first, err := NewKafkaSink(ctx, []string{broker}, "audit-idem")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewKafkaSink(ctx, []string{broker}, "audit-idem")
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

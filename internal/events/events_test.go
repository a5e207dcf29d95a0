package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	published   [][]byte
	contentType string
	err         error
}

func (f *fakeBroker) Publish(ctx context.Context, body []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, body)
	f.contentType = contentType
	return nil
}

func TestPublisher_Emit(t *testing.T) {
	occurredAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("publishes the event as json", func(t *testing.T) {
		broker := &fakeBroker{}
		publisher := NewPublisher(broker, slog.New(slog.NewTextHandler(io.Discard, nil)))

		publisher.Emit(context.Background(), TypeJobAssigned, "job-1", "store-1", "worker-1", "", occurredAt)

		require.Len(t, broker.published, 1)
		assert.Equal(t, "application/json", broker.contentType)

		var event Event
		require.NoError(t, json.Unmarshal(broker.published[0], &event))
		assert.NotEmpty(t, event.EventID)
		assert.Equal(t, TypeJobAssigned, event.Type)
		assert.Equal(t, "job-1", event.JobID)
		assert.Equal(t, "store-1", event.StoreID)
		assert.Equal(t, "worker-1", event.WorkerID)
		assert.Equal(t, occurredAt, event.OccurredAt)
	})

	t.Run("nil publisher drops events", func(t *testing.T) {
		var publisher *Publisher

		// Must not panic.
		publisher.Emit(context.Background(), TypeJobCreated, "job-1", "store-1", "", "", occurredAt)
	})

	t.Run("broker failure is swallowed", func(t *testing.T) {
		broker := &fakeBroker{err: errors.New("channel closed")}
		publisher := NewPublisher(broker, slog.New(slog.NewTextHandler(io.Discard, nil)))

		publisher.Emit(context.Background(), TypeJobFailed, "job-1", "store-1", "worker-1", "boom", occurredAt)

		assert.Empty(t, broker.published)
	})
}

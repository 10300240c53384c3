package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/events"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"go.uber.org/zap"
)

type mockWriter struct {
	msgs []kafka.Message
	err  error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func TestPublishRunEvent_KeyedByAccount(t *testing.T) {
	w := &mockWriter{}
	p := events.NewProducerWithWriter(w, "bulk-run-events", zap.NewNop())

	evt := models.RunEvent{
		EventType:    models.EventRunSettled,
		BulkRunID:    uuid.New(),
		AccountID:    "acct-1",
		State:        "Succeeded",
		RowCount:     3,
		TotalCharged: 900,
		Timestamp:    time.Now(),
	}
	require.NoError(t, p.PublishRunEvent(context.Background(), evt))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "acct-1", string(w.msgs[0].Key))
	assert.Equal(t, models.EventRunSettled, string(w.msgs[0].Headers[0].Value))

	var got models.RunEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, evt.BulkRunID, got.BulkRunID)
	assert.Equal(t, int64(900), got.TotalCharged)
}

func TestPublishRunEvent_WriterError(t *testing.T) {
	w := &mockWriter{err: errors.New("leader not available")}
	p := events.NewProducerWithWriter(w, "bulk-run-events", zap.NewNop())

	err := p.PublishRunEvent(context.Background(), models.RunEvent{EventType: models.EventRunAborted})
	assert.Error(t, err)
}

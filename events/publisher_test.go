package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"wabaconnect/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherKeysByTenant(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, zap.NewNop())
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), models.WorkflowEvent{
		Type:     models.WORKFLOW_EVENT_LINKED,
		TenantID: 42,
		WabaID:   "WABA1",
		At:       at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, models.WORKFLOW_EVENT_LINKED, string(msg.Headers[0].Value))

	var ev models.WorkflowEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "WABA1", ev.WabaID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherReturnsWriteErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewKafkaPublisher(w, zap.NewNop())

	err := p.Publish(context.Background(), models.WorkflowEvent{Type: models.WORKFLOW_EVENT_LINKED})
	assert.EqualError(t, err, "leader not available")
}

func TestLogPublisherNeverFails(t *testing.T) {
	p := NewLogPublisher(zap.NewNop())
	assert.NoError(t, p.Publish(context.Background(), models.WorkflowEvent{Type: models.WORKFLOW_EVENT_DISCONNECTED}))
}

func TestKafkaWriterIsAsyncAndLogsFailedDeliveries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	w := NewKafkaWriter([]string{"localhost:9092"}, "wabaconnect.workflow", zap.New(core))

	assert.True(t, w.Async)
	require.NotNil(t, w.Completion)

	w.Completion([]kafka.Message{{Key: []byte("1")}}, nil)
	assert.Zero(t, logs.Len())

	w.Completion([]kafka.Message{{Key: []byte("1")}, {Key: []byte("2")}}, errors.New("broker down"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "workflow events not delivered", entry.Message)
	assert.EqualValues(t, 2, entry.ContextMap()["count"])
}

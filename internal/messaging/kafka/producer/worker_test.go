package producer_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/messaging/kafka"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/messaging/kafka/mock"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/messaging/kafka/producer"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
	failFor  map[string]error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		for _, h := range m.Headers {
			if h.Key == "outbox_id" {
				if err, ok := w.failFor[string(h.Value)]; ok {
					return err
				}
			}
		}
		w.messages = append(w.messages, m)
	}
	return nil
}

func header(m kafkago.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProcessPendingEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("sends and marks each event", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock.NewMockOutboxRepository(ctrl)
		writer := &fakeWriter{}

		events := []kafka.OutboxEvent{
			{ID: "e-1", RequestID: "req-1", AggregateType: "leave_request", AggregateID: "l-1", EventType: "leave_request_submitted", Topic: "hr.leave.request.v1", Payload: []byte(`{"a":1}`)},
			{ID: "e-2", AggregateType: "leave_request", AggregateID: "l-2", EventType: "leave_request_approved", Topic: "hr.leave.request.v1", Payload: []byte(`{"a":2}`)},
		}
		repo.EXPECT().ListPending(gomock.Any(), 20).Return(events, nil)
		repo.EXPECT().MarkSent(gomock.Any(), "e-1").Return(nil)
		repo.EXPECT().MarkSent(gomock.Any(), "e-2").Return(nil)

		sent, err := producer.ProcessPendingEvents(ctx, repo, writer, zap.NewNop(), 20)

		require.NoError(t, err)
		assert.Equal(t, 2, sent)
		require.Len(t, writer.messages, 2)
		first := writer.messages[0]
		assert.Equal(t, "hr.leave.request.v1", first.Topic)
		assert.Equal(t, "l-1", string(first.Key))
		assert.Equal(t, "leave_request_submitted", header(first, "event_type"))
		assert.Equal(t, "req-1", header(first, "request_id"))
		assert.Equal(t, "", header(writer.messages[1], "request_id"))
	})

	t.Run("publish failure marks the row failed and continues", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock.NewMockOutboxRepository(ctrl)
		writer := &fakeWriter{failFor: map[string]error{"e-1": errors.New("leader not available")}}

		repo.EXPECT().ListPending(gomock.Any(), 10).Return([]kafka.OutboxEvent{
			{ID: "e-1", Topic: "t", Payload: []byte(`{}`)},
			{ID: "e-2", Topic: "t", Payload: []byte(`{}`)},
		}, nil)
		repo.EXPECT().MarkFailed(gomock.Any(), "e-1", "leader not available").Return(nil)
		repo.EXPECT().MarkSent(gomock.Any(), "e-2").Return(nil)

		sent, err := producer.ProcessPendingEvents(ctx, repo, writer, zap.NewNop(), 10)
		require.NoError(t, err)
		assert.Equal(t, 1, sent)
	})

	t.Run("list failure is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock.NewMockOutboxRepository(ctrl)
		repo.EXPECT().ListPending(gomock.Any(), 10).Return(nil, errors.New("db down"))

		_, err := producer.ProcessPendingEvents(ctx, repo, &fakeWriter{}, zap.NewNop(), 10)
		assert.EqualError(t, err, "db down")
	})
}

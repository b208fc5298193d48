package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandu6562/chat-application/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJournalRecordPublishesFullRecord(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got ConversationChanged
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		assert.Equal(t, "b:a", got.Key)
		assert.Equal(t, int64(3), got.Revision)
		if len(got.Messages) != 1 {
			return fmt.Errorf("got %d messages, want 1", len(got.Messages))
		}
		assert.Equal(t, "hello", got.Messages[0].Text)
		return nil
	})

	j := NewJournal(newProducerFrom(mock), "chat.conversations", discardLogger())
	rec := &domain.Conversation{
		Key:      domain.ConversationKey("b:a"),
		Revision: 3,
		Messages: []domain.Message{{ID: "m1", Text: "hello", SenderID: "a", ReceiverID: "b", Timestamp: time.Now()}},
	}
	require.NoError(t, j.Record(context.Background(), rec))

	// Later changes to the caller's slice must not leak into the queued entry.
	rec.Messages[0].Text = "changed"

	j.Close()
	require.NoError(t, mock.Close())
}

func TestJournalPublishErrorsAreNotReturned(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(assert.AnError)

	j := NewJournal(newProducerFrom(mock), "chat.conversations", discardLogger())
	assert.NoError(t, j.Record(context.Background(), &domain.Conversation{Key: "b:a", Revision: 1}))
	j.Close()
	require.NoError(t, mock.Close())
}

func TestJournalRecordDoesNotWaitForBroker(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndSucceed()

	// No worker yet: the queue holds one entry and nothing drains it.
	j := newJournal(newProducerFrom(mock), "chat.conversations", discardLogger(), 1)
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, &domain.Conversation{Key: "b:a", Revision: 1}))
	assert.ErrorIs(t, j.Record(ctx, &domain.Conversation{Key: "b:a", Revision: 2}), ErrJournalFull)

	go j.run()
	j.Close()
	assert.ErrorIs(t, j.Record(ctx, &domain.Conversation{Key: "b:a", Revision: 3}), ErrJournalClosed)
	require.NoError(t, mock.Close())
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	p := newProducerFrom(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "t", "k", []byte("{}"), nil), context.Canceled)
	require.NoError(t, mock.Close())
}

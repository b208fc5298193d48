package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Chandu6562/chat-application/internal/domain"
)

var (
	ErrJournalFull   = errors.New("kafka: journal queue full")
	ErrJournalClosed = errors.New("kafka: journal closed")
)

const (
	journalQueueSize = 1024
	publishTimeout   = 10 * time.Second
)

// ConversationChanged is the journal entry written for every committed
// conversation record. It carries the full message list, so a consumer
// can rebuild any record from the latest entry per key.
type ConversationChanged struct {
	Key        string           `json:"key"`
	Revision   int64            `json:"revision"`
	Messages   []domain.Message `json:"messages"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// Journal publishes ConversationChanged entries keyed by conversation, so
// all revisions of one record land on the same partition in order.
// Record only enqueues; a single worker does the broker round trip, so a
// slow broker never holds up a conversation write.
type Journal struct {
	producer *Producer
	topic    string
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan ConversationChanged
	done   chan struct{}
}

func NewJournal(producer *Producer, topic string, logger *slog.Logger) *Journal {
	j := newJournal(producer, topic, logger, journalQueueSize)
	go j.run()
	return j
}

func newJournal(producer *Producer, topic string, logger *slog.Logger, size int) *Journal {
	return &Journal{
		producer: producer,
		topic:    topic,
		logger:   logger,
		queue:    make(chan ConversationChanged, size),
		done:     make(chan struct{}),
	}
}

// Record queues rec for publishing. It fails fast with ErrJournalFull
// instead of waiting for the broker.
func (j *Journal) Record(_ context.Context, rec *domain.Conversation) error {
	entry := ConversationChanged{
		Key:        string(rec.Key),
		Revision:   rec.Revision,
		Messages:   domain.CloneMessages(rec.Messages),
		RecordedAt: time.Now().UTC(),
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrJournalClosed
	}
	select {
	case j.queue <- entry:
		return nil
	default:
		return ErrJournalFull
	}
}

// Close stops accepting entries and waits for the queued ones to be sent.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()
	<-j.done
}

func (j *Journal) run() {
	defer close(j.done)
	for entry := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := j.publish(ctx, entry); err != nil {
			j.logger.Warn("kafka: journal publish failed", "conversation", entry.Key, "revision", entry.Revision, "err", err)
		}
		cancel()
	}
}

func (j *Journal) publish(ctx context.Context, entry ConversationChanged) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("kafka: encode change: %w", err)
	}
	headers := map[string]string{
		"event_type": "conversation.changed",
		"revision":   strconv.FormatInt(entry.Revision, 10),
	}
	return j.producer.Publish(ctx, j.topic, entry.Key, payload, headers)
}

// Package livedoc turns a record store plus a change feed into a live
// document: one-shot reads, whole-record writes, and subscriptions that
// deliver a fresh snapshot after every committed write.
package livedoc

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/obs"
	"github.com/Chandu6562/chat-application/internal/repository"
)

var ErrFeedClosed = errors.New("change feed closed")

const snapshotBufSize = 16

// Journal receives every committed record, e.g. for an external change log.
type Journal interface {
	Record(ctx context.Context, rec *domain.Conversation) error
}

// Snapshot is the full state of one record at a point in time. Record is nil
// when nothing has been written under Key yet. Err is set instead when the
// record could not be read.
type Snapshot struct {
	Key    domain.ConversationKey
	Record *domain.Conversation
	Err    error
}

// Messages returns the snapshot's messages, empty for an absent record.
func (s Snapshot) Messages() []domain.Message {
	if s.Record == nil {
		return []domain.Message{}
	}
	return s.Record.Messages
}

func (s Snapshot) Revision() int64 {
	if s.Record == nil {
		return 0
	}
	return s.Record.Revision
}

type Document struct {
	store   repository.ConversationRepository
	feed    repository.ChangeFeed
	journal Journal
	logger  *slog.Logger
	metrics *obs.Metrics
}

func New(store repository.ConversationRepository, feed repository.ChangeFeed, logger *slog.Logger, metrics *obs.Metrics) *Document {
	return &Document{
		store:   store,
		feed:    feed,
		logger:  logger,
		metrics: metrics,
	}
}

func (d *Document) SetJournal(j Journal) {
	d.journal = j
}

// ReadOnce returns the current record, or nil if it does not exist.
func (d *Document) ReadOnce(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	return d.store.Get(ctx, key)
}

// Write replaces the record's messages. Once the store has committed, feed
// and journal failures are only logged.
func (d *Document) Write(ctx context.Context, key domain.ConversationKey, messages []domain.Message) (*domain.Conversation, error) {
	rec, err := d.store.Put(ctx, key, messages)
	if err != nil {
		return nil, err
	}
	if err := d.feed.Publish(ctx, key, rec.Revision); err != nil {
		d.logger.Warn("livedoc: publish change failed", "conversation", key, "revision", rec.Revision, "err", err)
	}
	if d.journal != nil {
		if err := d.journal.Record(ctx, rec); err != nil {
			d.logger.Warn("livedoc: journal record failed", "conversation", key, "revision", rec.Revision, "err", err)
		}
	}
	return rec, nil
}

// Subscription delivers snapshots of one record on C until Close is called.
// C is closed once delivery has stopped.
type Subscription struct {
	Key domain.ConversationKey
	C   <-chan Snapshot

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Subscribe starts watching key. The current state is delivered first,
// followed by one snapshot per newer committed revision.
func (d *Document) Subscribe(ctx context.Context, key domain.ConversationKey) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	feedSub, err := d.feed.Subscribe(ctx, key)
	if err != nil {
		cancel()
		return nil, err
	}

	ch := make(chan Snapshot, snapshotBufSize)
	sub := &Subscription{
		Key:    key,
		C:      ch,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	d.metrics.SubscriptionOpened()
	go d.watch(ctx, key, feedSub, ch, sub.done)
	return sub, nil
}

func (d *Document) watch(ctx context.Context, key domain.ConversationKey, feedSub repository.FeedSubscription, ch chan<- Snapshot, done chan<- struct{}) {
	defer close(done)
	defer close(ch)
	defer d.metrics.SubscriptionClosed()
	defer feedSub.Close()

	var last int64 = -1
	deliver := func() bool {
		rec, err := d.store.Get(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			d.logger.Warn("livedoc: snapshot read failed", "conversation", key, "err", err)
			return d.send(ctx, ch, Snapshot{Key: key, Err: err})
		}
		snap := Snapshot{Key: key, Record: rec}
		if snap.Revision() <= last {
			return true
		}
		last = snap.Revision()
		return d.send(ctx, ch, snap)
	}

	if !deliver() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case rev, ok := <-feedSub.C():
			if !ok {
				d.send(ctx, ch, Snapshot{Key: key, Err: ErrFeedClosed})
				return
			}
			if rev <= last {
				continue
			}
			if !deliver() {
				return
			}
		}
	}
}

func (d *Document) send(ctx context.Context, ch chan<- Snapshot, snap Snapshot) bool {
	select {
	case ch <- snap:
		if snap.Err == nil {
			d.metrics.SnapshotDelivered()
		}
		return true
	case <-ctx.Done():
		return false
	}
}

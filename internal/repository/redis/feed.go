package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/repository"
)

const channelPrefix = "conversation:"

// Feed distributes change notifications across server instances with Redis
// pub/sub. Payloads are the committed revision as a decimal string.
type Feed struct {
	client *goredis.Client
	logger *slog.Logger
}

func NewFeed(ctx context.Context, url string, logger *slog.Logger) (*Feed, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := goredis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Feed{client: c, logger: logger}, nil
}

func (f *Feed) Publish(ctx context.Context, key domain.ConversationKey, revision int64) error {
	return f.client.Publish(ctx, channelName(key), strconv.FormatInt(revision, 10)).Err()
}

func (f *Feed) Subscribe(ctx context.Context, key domain.ConversationKey) (repository.FeedSubscription, error) {
	ps := f.client.Subscribe(ctx, channelName(key))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", key, err)
	}
	s := &subscription{ps: ps, ch: make(chan int64, 1)}
	go s.pump(f.logger.With("conversation", key))
	return s, nil
}

func (f *Feed) Close() error {
	return f.client.Close()
}

func channelName(key domain.ConversationKey) string {
	return channelPrefix + string(key)
}

type subscription struct {
	ps   *goredis.PubSub
	ch   chan int64
	once sync.Once
	err  error
}

func (s *subscription) C() <-chan int64 {
	return s.ch
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
	})
	return s.err
}

// pump forwards revisions until the pub/sub is closed. Only the newest
// pending revision is kept.
func (s *subscription) pump(logger *slog.Logger) {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		rev, err := strconv.ParseInt(msg.Payload, 10, 64)
		if err != nil {
			logger.Warn("redis feed: bad payload", "payload", msg.Payload, "err", err)
			continue
		}
		select {
		case s.ch <- rev:
		default:
			select {
			case <-s.ch:
			default:
			}
			s.ch <- rev
		}
	}
}

var _ repository.ChangeFeed = (*Feed)(nil)

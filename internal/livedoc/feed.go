package livedoc

import (
	"context"
	"sync"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/repository"
)

// LocalFeed fans change notifications out to subscribers in the same
// process. Each subscriber holds at most one pending revision; a newer
// publish replaces an unread older one.
type LocalFeed struct {
	mu   sync.Mutex
	subs map[domain.ConversationKey]map[*localSub]struct{}
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[domain.ConversationKey]map[*localSub]struct{})}
}

func (f *LocalFeed) Publish(_ context.Context, key domain.ConversationKey, revision int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs[key] {
		select {
		case s.ch <- revision:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- revision:
			default:
			}
		}
	}
	return nil
}

func (f *LocalFeed) Subscribe(_ context.Context, key domain.ConversationKey) (repository.FeedSubscription, error) {
	s := &localSub{feed: f, key: key, ch: make(chan int64, 1)}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[key] == nil {
		f.subs[key] = make(map[*localSub]struct{})
	}
	f.subs[key][s] = struct{}{}
	return s, nil
}

type localSub struct {
	feed *LocalFeed
	key  domain.ConversationKey
	ch   chan int64
	once sync.Once
}

func (s *localSub) C() <-chan int64 {
	return s.ch
}

func (s *localSub) Close() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		delete(s.feed.subs[s.key], s)
		if len(s.feed.subs[s.key]) == 0 {
			delete(s.feed.subs, s.key)
		}
		close(s.ch)
	})
	return nil
}

var _ repository.ChangeFeed = (*LocalFeed)(nil)

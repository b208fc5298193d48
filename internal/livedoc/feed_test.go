package livedoc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFeedKeepsLatestRevision(t *testing.T) {
	ctx := context.Background()
	feed := NewLocalFeed()
	sub, err := feed.Subscribe(ctx, key)
	require.NoError(t, err)

	for rev := int64(1); rev <= 5; rev++ {
		require.NoError(t, feed.Publish(ctx, key, rev))
	}

	assert.EqualValues(t, 5, <-sub.C())
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.NoError(t, feed.Publish(ctx, key, 6))
	assert.Empty(t, feed.subs)
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSetGet(t *testing.T) {
	c := New(time.Minute)

	_, ok := c.Get("user-1", AggregateFriends)
	assert.False(t, ok)

	c.Set("user-1", AggregateFriends, []string{"user-2"})

	v, ok := c.Get("user-1", AggregateFriends)
	require.True(t, ok)
	assert.Equal(t, []string{"user-2"}, v)

	// Same user, different aggregate is a separate entry.
	_, ok = c.Get("user-1", AggregateChallenges)
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)

	c.Set("user-1", AggregateActivity, "feed")
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("user-1", AggregateActivity)
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	c := New(time.Minute)

	c.Set("user-1", AggregateFriends, "a")
	c.Set("user-2", AggregateFriends, "b")
	c.Set("user-1", AggregateChallenges, "c")

	c.Invalidate(AggregateFriends, "user-1", "user-2")

	_, ok := c.Get("user-1", AggregateFriends)
	assert.False(t, ok)
	_, ok = c.Get("user-2", AggregateFriends)
	assert.False(t, ok)

	// Other aggregates survive.
	v, ok := c.Get("user-1", AggregateChallenges)
	require.True(t, ok)
	assert.Equal(t, "c", v)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRedis_Success(t *testing.T) {
	s := miniredis.RunT(t)

	c, err := OpenRedis(s.Addr(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, 2, c.Options().DB)
}

func TestOpenRedis_Failure(t *testing.T) {
	_, err := OpenRedis("not-a-real-host:6379", 0)
	assert.Error(t, err)
}

type snapshot struct {
	Total int64            `json:"total"`
	ByKey map[string]int64 `json:"by_key"`
}

func TestSnapshotCache_RoundTrip(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewSnapshotCache(rdb, "stats:")
	ctx := context.Background()

	var got snapshot
	hit, err := c.Get(ctx, "summary", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	want := snapshot{Total: 3, ByKey: map[string]int64{"COMPLETED": 1}}
	require.NoError(t, c.Set(ctx, "summary", want, 30*time.Second))
	assert.True(t, s.Exists("stats:summary"))

	hit, err = c.Get(ctx, "summary", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)

	s.FastForward(31 * time.Second)
	hit, err = c.Get(ctx, "summary", &got)
	require.NoError(t, err)
	assert.False(t, hit, "entries expire after the ttl")
}

func TestSnapshotCache_CorruptValue(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, s.Set("stats:summary", "{not json"))

	var got snapshot
	_, err := NewSnapshotCache(rdb, "stats:").Get(context.Background(), "summary", &got)
	assert.ErrorContains(t, err, "failed to decode")
}

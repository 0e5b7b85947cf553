package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/store"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheFromClient(client), srv
}

func TestCursor(t *testing.T) {
	rc, srv := newTestCache(t)
	ctx := context.Background()

	id, err := rc.Cursor(ctx, store.SourceTMS, ingest.ModePrevious)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, rc.SetCursor(ctx, store.SourceTMS, ingest.ModePrevious, "1042"))
	require.NoError(t, rc.SetCursor(ctx, store.SourceTMS, ingest.ModeAll, ""))

	id, err = rc.Cursor(ctx, store.SourceTMS, ingest.ModePrevious)
	require.NoError(t, err)
	assert.Equal(t, "1042", id)

	assert.True(t, srv.Exists("hockeysync:cursor:tms:previous"))
	assert.False(t, srv.Exists("hockeysync:cursor:tms:all"))
}

func TestJSONRoundTrip(t *testing.T) {
	rc, srv := newTestCache(t)
	ctx := context.Background()

	in := []*store.Competition{{ID: "101", Source: store.SourceTMS, Name: "World Cup"}}
	require.NoError(t, rc.SetJSON(ctx, CompetitionsKey(store.SourceTMS), in, time.Minute))

	var out []*store.Competition
	hit, err := rc.GetJSON(ctx, CompetitionsKey(store.SourceTMS), &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, in, out)

	srv.FastForward(2 * time.Minute)
	hit, err = rc.GetJSON(ctx, CompetitionsKey(store.SourceTMS), &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "hockeysync:matches:knhb:N8", MatchesKey(store.SourceKNHB, "N8"))
	assert.Equal(t, "hockeysync:competitions:tms", CompetitionsKey(store.SourceTMS))
}

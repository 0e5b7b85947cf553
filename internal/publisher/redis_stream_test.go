package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/hockeysync/internal/store"
)

func TestPublishMatches(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	p := NewRedisStreamPublisher(client, 0)
	p.now = func() time.Time { return time.Unix(1700000000, 0) }

	comp := &store.Competition{ID: "c1", Source: store.SourceTMS}
	m1 := store.NewMatch(comp)
	m1.ID = "m1"
	m2 := store.NewMatch(comp)
	m2.ID = "m2"

	ctx := context.Background()
	n, err := p.PublishMatches(ctx, store.SourceTMS, []*store.Match{m1, m2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := client.XRange(ctx, "fixtures.matches.tms", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "m1", entries[0].Values["match_id"])
	assert.Equal(t, "c1", entries[0].Values["competition_id"])
	assert.Equal(t, "1700000000", entries[0].Values["timestamp"])
	assert.Contains(t, entries[1].Values["data"], `"competition_id":"c1"`)
}

func TestPublishEmpty(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	p := NewRedisStreamPublisher(client, 5)
	n, err := p.PublishMatches(context.Background(), store.SourceKNHB, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, srv.Exists("fixtures.matches.knhb"))
}

func TestPublishCompetitions(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	p := NewRedisStreamPublisher(client, 0)
	ctx := context.Background()
	_, err := p.PublishCompetitions(ctx, store.SourceTMS, []*store.Competition{{ID: "101", Source: store.SourceTMS}})
	require.NoError(t, err)

	entries, err := client.XRange(ctx, CompetitionStream(store.SourceTMS), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "101", entries[0].Values["competition_id"])
}

package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/fortuna/hockeysync/internal/store"
)

// DefaultMaxLen caps each stream, approximately.
const DefaultMaxLen = 10000

// RedisStreamPublisher publishes fetched records to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	maxLen int64
	now    func() time.Time
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client, maxLen int64) *RedisStreamPublisher {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &RedisStreamPublisher{client: client, maxLen: maxLen, now: time.Now}
}

// MatchStream names the stream matches of source are published to.
func MatchStream(source store.Source) string {
	return fmt.Sprintf("fixtures.matches.%s", source)
}

// CompetitionStream names the stream competitions of source are published to.
func CompetitionStream(source store.Source) string {
	return fmt.Sprintf("fixtures.competitions.%s", source)
}

// PublishMatches appends one entry per match, in order, in a single pipeline.
func (p *RedisStreamPublisher) PublishMatches(ctx context.Context, source store.Source, matches []*store.Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}

	stream := MatchStream(source)
	timestamp := p.now().Unix()

	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range matches {
			data, err := sonic.Marshal(m)
			if err != nil {
				return errors.Wrapf(err, "encode match %s", m.ID)
			}
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: stream,
				MaxLen: p.maxLen,
				Approx: true,
				Values: map[string]any{
					"match_id":       m.ID,
					"competition_id": m.CompetitionID(),
					"data":           string(data),
					"timestamp":      timestamp,
				},
			})
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "publish to %s", stream)
	}
	return len(matches), nil
}

// PublishCompetitions appends one entry per newly discovered competition.
func (p *RedisStreamPublisher) PublishCompetitions(ctx context.Context, source store.Source, competitions []*store.Competition) (int, error) {
	if len(competitions) == 0 {
		return 0, nil
	}

	stream := CompetitionStream(source)
	timestamp := p.now().Unix()

	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, c := range competitions {
			data, err := sonic.Marshal(c)
			if err != nil {
				return errors.Wrapf(err, "encode competition %s", c.ID)
			}
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: stream,
				MaxLen: p.maxLen,
				Approx: true,
				Values: map[string]any{
					"competition_id": c.ID,
					"data":           string(data),
					"timestamp":      timestamp,
				},
			})
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "publish to %s", stream)
	}
	return len(competitions), nil
}

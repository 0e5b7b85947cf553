package websocket

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/publisher"
	"github.com/fortuna/hockeysync/internal/store"
)

const (
	relayBlock      = 5 * time.Second
	relayBatch      = 100
	relayRetryDelay = time.Second
)

// Message is what subscribers receive for every published match.
type Message struct {
	Type          string          `json:"type"`
	Source        store.Source    `json:"source"`
	StreamID      string          `json:"stream_id"`
	MatchID       string          `json:"match_id"`
	CompetitionID string          `json:"competition_id"`
	Match         json.RawMessage `json:"match"`
}

// Relay tails the match streams and hands every new entry to a hub.
type Relay struct {
	client  *redis.Client
	hub     *Hub
	streams map[string]store.Source
	names   []string
	logger  *logging.Logger
	ready   chan struct{}
}

// NewRelay creates a relay over the match streams of sources.
func NewRelay(client *redis.Client, hub *Hub, logger *logging.Logger, sources ...store.Source) *Relay {
	if logger == nil {
		logger = logging.Default()
	}
	streams := make(map[string]store.Source, len(sources))
	names := make([]string, 0, len(sources))
	for _, source := range sources {
		name := publisher.MatchStream(source)
		streams[name] = source
		names = append(names, name)
	}
	sort.Strings(names)

	return &Relay{
		client:  client,
		hub:     hub,
		streams: streams,
		names:   names,
		logger:  logger.With("component", "ws-relay"),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the relay knows where each stream currently ends.
// Entries added after that are relayed.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run relays entries until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	offsets, ok := r.tails(ctx)
	if !ok {
		return
	}
	close(r.ready)

	args := make([]string, len(r.names)*2)
	copy(args, r.names)
	for ctx.Err() == nil {
		for i, name := range r.names {
			args[len(r.names)+i] = offsets[name]
		}

		streams, err := r.client.XRead(ctx, &redis.XReadArgs{
			Streams: args,
			Count:   relayBatch,
			Block:   relayBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("stream read failed", "error", err)
			r.wait(ctx)
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				offsets[stream.Stream] = entry.ID
				event, err := r.event(stream.Stream, entry)
				if err != nil {
					r.logger.Warn("skipping stream entry", "stream", stream.Stream, "id", entry.ID, "error", err)
					continue
				}
				r.hub.Broadcast(event)
			}
		}
	}
}

// tails finds the last entry id of every stream, retrying while Redis is
// unavailable.
func (r *Relay) tails(ctx context.Context) (map[string]string, bool) {
	for {
		offsets, err := r.lastIDs(ctx)
		if err == nil {
			return offsets, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		r.logger.Warn("stream offsets unavailable", "error", err)
		r.wait(ctx)
	}
}

func (r *Relay) lastIDs(ctx context.Context) (map[string]string, error) {
	offsets := make(map[string]string, len(r.names))
	for _, name := range r.names {
		entries, err := r.client.XRevRangeN(ctx, name, "+", "-", 1).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "read tail of %s", name)
		}
		offsets[name] = "0-0"
		if len(entries) > 0 {
			offsets[name] = entries[0].ID
		}
	}
	return offsets, nil
}

func (r *Relay) event(stream string, entry redis.XMessage) (Event, error) {
	matchID, _ := entry.Values["match_id"].(string)
	competitionID, _ := entry.Values["competition_id"].(string)
	data, _ := entry.Values["data"].(string)
	if data == "" {
		return Event{}, errors.New("entry has no match data")
	}

	source := r.streams[stream]
	payload, err := sonic.Marshal(Message{
		Type:          "match",
		Source:        source,
		StreamID:      entry.ID,
		MatchID:       matchID,
		CompetitionID: competitionID,
		Match:         json.RawMessage(data),
	})
	if err != nil {
		return Event{}, errors.Wrap(err, "encode message")
	}
	return Event{Source: source, CompetitionID: competitionID, Payload: payload}, nil
}

func (r *Relay) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(relayRetryDelay):
	}
}

package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fortuna/hockeysync/internal/cache"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/reconciliation"
	"github.com/fortuna/hockeysync/internal/store"
)

// MatchReader reads stored matches.
type MatchReader interface {
	ListByCompetition(ctx context.Context, competition *store.Competition) ([]*store.Match, error)
}

// OfficialReader reads official assignments.
type OfficialReader interface {
	ByCompetition(ctx context.Context, source store.Source, competitionID string) (map[string][]*store.Official, error)
}

// MatchService handles match listings
type MatchService struct {
	competitions CompetitionReader
	matches      MatchReader
	officials    OfficialReader
	cache        Cache
	ttl          time.Duration
	logger       *logging.Logger
}

// NewMatchService creates a new match service. cache may be nil.
func NewMatchService(competitions CompetitionReader, matches MatchReader, officials OfficialReader, c Cache, ttl time.Duration, logger *logging.Logger) *MatchService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MatchService{
		competitions: competitions,
		matches:      matches,
		officials:    officials,
		cache:        c,
		ttl:          ttl,
		logger:       logger,
	}
}

// ListMatches returns the matches of a competition with their officials.
func (s *MatchService) ListMatches(ctx context.Context, source store.Source, competitionID string) ([]*store.Match, error) {
	competition, err := s.competitions.Get(ctx, source, competitionID)
	if err != nil {
		return nil, err
	}

	key := cache.MatchesKey(source, competitionID)
	if s.cache != nil {
		var cached []*store.Match
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("match cache read failed", "key", key, "error", err)
		} else if hit {
			// Cached entries only carry the competition id.
			for _, m := range cached {
				m.Competition = competition
			}
			return cached, nil
		}
	}

	matches, err := s.matches.ListByCompetition(ctx, competition)
	if err != nil {
		return nil, errors.Wrap(err, "fetching matches")
	}

	officials, err := s.officials.ByCompetition(ctx, source, competitionID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching officials")
	}
	for _, m := range matches {
		reconciliation.AttachOfficials(m, officials)
	}
	if matches == nil {
		matches = []*store.Match{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, matches, s.ttl); err != nil {
			s.logger.Warn("match cache write failed", "key", key, "error", err)
		}
	}
	return matches, nil
}

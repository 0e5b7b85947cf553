package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fortuna/hockeysync/internal/cache"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/store"
)

// ErrUnknownSource is returned for a source name other than knhb or tms.
var ErrUnknownSource = errors.New("unknown source")

// DefaultCacheTTL bounds how long a cached listing is served.
const DefaultCacheTTL = 5 * time.Minute

// CompetitionReader reads stored competitions.
type CompetitionReader interface {
	List(ctx context.Context, source store.Source) ([]*store.Competition, error)
	Get(ctx context.Context, source store.Source, id string) (*store.Competition, error)
}

// Cache stores JSON-encoded listings.
type Cache interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, target any) (bool, error)
}

// ParseSource validates a source name. The empty name selects every source.
func ParseSource(name string) (store.Source, error) {
	switch source := store.Source(name); source {
	case "", store.SourceKNHB, store.SourceTMS:
		return source, nil
	default:
		return "", errors.Wrapf(ErrUnknownSource, "%q", name)
	}
}

// CompetitionService handles competition listings
type CompetitionService struct {
	competitions CompetitionReader
	cache        Cache
	ttl          time.Duration
	logger       *logging.Logger
}

// NewCompetitionService creates a new competition service. cache may be nil.
func NewCompetitionService(competitions CompetitionReader, c Cache, ttl time.Duration, logger *logging.Logger) *CompetitionService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CompetitionService{competitions: competitions, cache: c, ttl: ttl, logger: logger}
}

// ListCompetitions returns the stored competitions of source, or of every
// source when source is empty.
func (s *CompetitionService) ListCompetitions(ctx context.Context, source store.Source) ([]*store.Competition, error) {
	key := cache.CompetitionsKey(source)

	var cached []*store.Competition
	if s.cache != nil {
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("competition cache read failed", "key", key, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	competitions, err := s.competitions.List(ctx, source)
	if err != nil {
		return nil, errors.Wrap(err, "fetching competitions")
	}
	if competitions == nil {
		competitions = []*store.Competition{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, competitions, s.ttl); err != nil {
			s.logger.Warn("competition cache write failed", "key", key, "error", err)
		}
	}
	return competitions, nil
}

// GetCompetition returns one competition; store.ErrNotFound when absent.
func (s *CompetitionService) GetCompetition(ctx context.Context, source store.Source, id string) (*store.Competition, error) {
	return s.competitions.Get(ctx, source, id)
}

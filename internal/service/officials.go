package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/fortuna/hockeysync/internal/cache"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/store"
)

// ErrInvalidOfficials is returned when an assignment is rejected before it
// reaches storage.
var ErrInvalidOfficials = errors.New("invalid officials")

// OfficialStore records and reads official assignments.
type OfficialStore interface {
	Assign(ctx context.Context, source store.Source, competitionID, matchID string, officials []*store.Official) error
	ByMatches(ctx context.Context, source store.Source, matchIDs []string) (map[string][]*store.Official, error)
}

// Invalidator drops cached listings.
type Invalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

// OfficialInput is one official in an assignment request.
type OfficialInput struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Role    string `json:"role"`
	Country string `json:"country"`
}

type assignment struct {
	MatchID   string          `validate:"required"`
	Officials []OfficialInput `validate:"dive"`
}

// OfficialService manages the officials assigned to matches
type OfficialService struct {
	competitions CompetitionReader
	officials    OfficialStore
	cache        Invalidator
	validate     *validator.Validate
	logger       *logging.Logger
}

// NewOfficialService creates a new official service. cache may be nil.
func NewOfficialService(competitions CompetitionReader, officials OfficialStore, c Invalidator, logger *logging.Logger) *OfficialService {
	if logger == nil {
		logger = logging.Default()
	}
	return &OfficialService{
		competitions: competitions,
		officials:    officials,
		cache:        c,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       logger,
	}
}

// AssignOfficials replaces the officials of a match and returns what is now
// stored for it. The competition must exist; the match need not be synced yet.
func (s *OfficialService) AssignOfficials(ctx context.Context, source store.Source, competitionID, matchID string, input []OfficialInput) ([]*store.Official, error) {
	if err := s.validate.Struct(assignment{MatchID: matchID, Officials: input}); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "validate officials"), ErrInvalidOfficials)
	}
	if _, err := s.competitions.Get(ctx, source, competitionID); err != nil {
		return nil, err
	}

	officials := make([]*store.Official, 0, len(input))
	for _, in := range input {
		officials = append(officials, &store.Official{ID: in.ID, Name: in.Name, Role: in.Role, Country: in.Country})
	}
	if err := s.officials.Assign(ctx, source, competitionID, matchID, officials); err != nil {
		return nil, errors.Wrap(err, "storing officials")
	}

	if s.cache != nil {
		key := cache.MatchesKey(source, competitionID)
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("match cache invalidation failed", "key", key, "error", err)
		}
	}
	s.logger.Info("officials assigned", "source", source, "competition", competitionID, "match", matchID, "count", len(officials))

	return s.MatchOfficials(ctx, source, competitionID, matchID)
}

// MatchOfficials returns the officials assigned to one match of a competition.
func (s *OfficialService) MatchOfficials(ctx context.Context, source store.Source, competitionID, matchID string) ([]*store.Official, error) {
	if _, err := s.competitions.Get(ctx, source, competitionID); err != nil {
		return nil, err
	}
	byMatch, err := s.officials.ByMatches(ctx, source, []string{matchID})
	if err != nil {
		return nil, errors.Wrap(err, "fetching officials")
	}
	if officials := byMatch[matchID]; officials != nil {
		return officials, nil
	}
	return []*store.Official{}, nil
}

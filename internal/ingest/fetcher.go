package ingest

import (
	"context"

	"github.com/fortuna/hockeysync/internal/store"
)

// Mode selects which listing a fetcher retrieves.
type Mode string

const (
	// KNHB match listings.
	ModeUpcoming Mode = "upcoming"
	ModeOfficial Mode = "official"

	// TMS competition listings. ModeUpcoming is shared.
	ModeAll        Mode = "all"
	ModePrevious   Mode = "previous"
	ModeInProgress Mode = "in-progress"
)

// Competitions and Matches are the ordered accumulators returned by fetchers.
type (
	Competitions = store.OrderedMap[string, *store.Competition]
	Matches      = store.OrderedMap[string, *store.Match]
)

// OfficialsByMatch maps a match id to the officials assigned to it.
type OfficialsByMatch map[string][]*store.Official

// CompetitionFetcher walks a source's competition listing.
type CompetitionFetcher interface {
	FetchCompetitions(ctx context.Context, mode Mode, stopID string) (*Competitions, error)
}

// MatchFetcher fetches every match of a competition.
type MatchFetcher interface {
	Source() store.Source
	FetchMatches(ctx context.Context, mode Mode, competition *store.Competition, officials OfficialsByMatch) (*Matches, error)
}

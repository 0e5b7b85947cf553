package knhb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/ingest/request"
	"github.com/fortuna/hockeysync/internal/ingest/textnorm"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/reconciliation"
	"github.com/fortuna/hockeysync/internal/store"
)

const component = "KNHBMatchFetcher"

// Fetcher pages through the KNHB match listing of a competition.
type Fetcher struct {
	baseURL   string
	requester *request.Requester
	engine    *reconciliation.Engine
	location  *time.Location
	logger    *logging.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLocation sets the zone local KNHB datetimes are read in.
func WithLocation(loc *time.Location) Option {
	return func(f *Fetcher) {
		if loc != nil {
			f.location = loc
		}
	}
}

// WithLogger sets the fetcher's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a KNHB fetcher against baseURL.
func New(baseURL string, requester *request.Requester, engine *reconciliation.Engine, opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL:   strings.TrimRight(baseURL, "/"),
		requester: requester,
		engine:    engine,
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.engine == nil {
		f.engine = reconciliation.NewEngine(nil)
	}
	if f.location == nil {
		loc, err := time.LoadLocation(textnorm.DefaultKNHBZone)
		if err != nil {
			f.logger.Warn("timezone database unavailable, reading KNHB times as UTC", "error", err)
			loc = time.UTC
		}
		f.location = loc
	}
	f.logger = f.logger.With("component", component)
	return f
}

// Source identifies KNHB.
func (f *Fetcher) Source() store.Source {
	return store.SourceKNHB
}

// MatchesURL returns the listing URL of one page.
func (f *Fetcher) MatchesURL(competitionID string, mode ingest.Mode, page int) string {
	return fmt.Sprintf("%s/competitions/%s/matches/%s?page=%d",
		f.baseURL, url.PathEscape(competitionID), mode, page)
}

// FetchMatches implements ingest.MatchFetcher. KNHB carries no officials.
func (f *Fetcher) FetchMatches(ctx context.Context, mode ingest.Mode, competition *store.Competition, _ ingest.OfficialsByMatch) (*ingest.Matches, error) {
	return f.Fetch(ctx, mode, competition)
}

// Fetch walks every page of competition's matches in mode. Pages are
// requested while the previous page advertises a next link; an empty page
// with a next link does not stop the walk. Match indexes start at 1 and
// continue across pages.
func (f *Fetcher) Fetch(ctx context.Context, mode ingest.Mode, competition *store.Competition) (*ingest.Matches, error) {
	switch mode {
	case ingest.ModeUpcoming, ingest.ModeOfficial:
	default:
		return nil, errors.Wrapf(ingest.ErrInvalidMode, "knhb match mode %q", mode)
	}
	if competition == nil || competition.ID == "" {
		return nil, errors.New("knhb fetch requires a competition with an id")
	}

	matches := store.NewOrderedMap[string, *store.Match]()
	index := 1

	for page := 1; ; page++ {
		var body MatchesPage
		if err := f.requester.GetJSON(ctx, f.MatchesURL(competition.ID, mode, page), &body); err != nil {
			return nil, err
		}

		for i := range body.Data {
			match, err := f.CreateMatch(competition, &body.Data[i], index)
			if err != nil {
				return nil, err
			}
			index++
			matches.Set(match.ID, match)
		}

		f.logger.Debug("fetched page",
			"competition", competition.ID,
			"mode", string(mode),
			"page", page,
			"rows", len(body.Data),
		)

		if !body.Links.HasNext() {
			break
		}
	}

	return matches, nil
}

// CreateMatch converts a KNHB row into a match of competition.
func (f *Fetcher) CreateMatch(competition *store.Competition, row *MatchRow, index int) (*store.Match, error) {
	if competition == nil || row == nil {
		return nil, errors.New("knhb match requires a competition and a row")
	}
	match := store.NewMatch(competition)
	if err := match.SetID(row.ID); err != nil {
		return nil, ingest.WrapParseError(err, component, "match without id", row.Datetime)
	}
	match.Index = index

	kickoff, err := textnorm.KNHBToUTC(row.Datetime, f.location)
	if err != nil {
		return nil, ingest.WrapParseError(err, component, "invalid datetime for match "+row.ID, row.Datetime)
	}
	match.SetMatchDate(kickoff)
	match.Venue = row.Location.Description

	match.SetHomeTeam(row.HomeTeam.ID, row.HomeTeam.Name, f.club(row.HomeTeam.ClubName))
	match.SetAwayTeam(row.AwayTeam.ID, row.AwayTeam.Name, f.club(row.AwayTeam.ClubName))

	match.SetGender(f.engine.Gender(competition.Name))

	if row.Status == statusOfficial {
		score, _ := reconciliation.FormatScore(row.HomeScore, row.AwayScore, row.HomeShootout, row.AwayShootout)
		reconciliation.ApplyStatus(match, true, score)
	}

	f.engine.Record(match)
	return match, nil
}

func (f *Fetcher) club(name *string) *store.Club {
	if name == nil {
		return nil
	}
	return f.engine.Club(*name)
}

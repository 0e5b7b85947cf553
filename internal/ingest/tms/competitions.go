package tms

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"

	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/store"
)

// CompetitionFetcher pages through the TMS competition listing.
type CompetitionFetcher struct {
	client *Client
	logger *logging.Logger
}

// NewCompetitionFetcher creates a competition fetcher on client.
func NewCompetitionFetcher(client *Client) *CompetitionFetcher {
	return &CompetitionFetcher{
		client: client,
		logger: client.logger.With("component", competitionsComponent),
	}
}

// FetchCompetitions implements ingest.CompetitionFetcher.
func (f *CompetitionFetcher) FetchCompetitions(ctx context.Context, mode ingest.Mode, stopID string) (*ingest.Competitions, error) {
	return f.Fetch(ctx, mode, stopID)
}

// Fetch walks the listing for mode page by page until the site answers with
// its "No results" placeholder. In the previous and all listings a non-empty
// stopID ends the walk at that competition, which is itself left out along
// with everything after it.
func (f *CompetitionFetcher) Fetch(ctx context.Context, mode ingest.Mode, stopID string) (*ingest.Competitions, error) {
	switch mode {
	case ingest.ModeAll, ingest.ModeUpcoming, ingest.ModePrevious, ingest.ModeInProgress:
	default:
		return nil, errors.Wrapf(ingest.ErrInvalidMode, "tms competition mode %q", mode)
	}
	honourStop := stopID != "" && (mode == ingest.ModePrevious || mode == ingest.ModeAll)

	competitions := store.NewOrderedMap[string, *store.Competition]()
	index := 0

	for page := 1; ; page++ {
		doc, err := f.client.requester.GetHTML(ctx, f.client.CompetitionsURL(mode, page))
		if err != nil {
			return nil, err
		}

		rows := doc.Find(competitionRows)
		if isEmptyListing(rows) || rows.Length() == 0 {
			break
		}

		var (
			stopped bool
			rowErr  error
		)
		rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
			competition, err := f.CreateCompetition(row, index)
			if err != nil {
				rowErr = err
				return false
			}
			index++
			if honourStop && competition.ID == stopID {
				stopped = true
				return false
			}
			competitions.Set(competition.ID, competition)
			return true
		})
		if rowErr != nil {
			return nil, rowErr
		}

		f.logger.Debug("fetched page",
			"mode", string(mode),
			"page", page,
			"rows", rows.Length(),
			"total", competitions.Len(),
		)

		if stopped {
			f.logger.Info("reached stop competition", "mode", string(mode), "stop_id", stopID, "page", page)
			break
		}
	}

	return competitions, nil
}

// CreateCompetition decodes a listing row: the link in column 2 carries the
// id and name, column 4 the location and column 5 the type.
func (f *CompetitionFetcher) CreateCompetition(row *goquery.Selection, index int) (*store.Competition, error) {
	competition := store.NewCompetition(store.SourceTMS, index)

	href, name, err := cellLink(row, 2, competitionsComponent)
	if err != nil {
		return nil, err
	}
	if err := competition.SetID(lastSegment(href)); err != nil {
		return nil, ingest.WrapParseError(err, competitionsComponent, "competition link without id", href)
	}
	if name == "" {
		return nil, ingest.NewParseError(competitionsComponent, "competition without name", href)
	}
	competition.Name = name

	if competition.Location, err = cellText(row, 4, competitionsComponent); err != nil {
		return nil, err
	}
	if competition.Type, err = cellText(row, 5, competitionsComponent); err != nil {
		return nil, err
	}

	return competition, nil
}

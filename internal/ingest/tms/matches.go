package tms

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"

	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/ingest/textnorm"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/reconciliation"
	"github.com/fortuna/hockeysync/internal/store"
)

const statusOfficial = "official"

// MatchFetcher reads the single-page match listing of a TMS competition.
type MatchFetcher struct {
	client *Client
	logger *logging.Logger
}

// NewMatchFetcher creates a match fetcher on client.
func NewMatchFetcher(client *Client) *MatchFetcher {
	return &MatchFetcher{
		client: client,
		logger: client.logger.With("component", matchesComponent),
	}
}

// Source identifies TMS.
func (f *MatchFetcher) Source() store.Source {
	return store.SourceTMS
}

// FetchMatches implements ingest.MatchFetcher. TMS serves every match of a
// competition on one page, so mode is ignored.
func (f *MatchFetcher) FetchMatches(ctx context.Context, _ ingest.Mode, competition *store.Competition, officials ingest.OfficialsByMatch) (*ingest.Matches, error) {
	return f.Fetch(ctx, competition, officials)
}

// Fetch returns every match of competition in listing order, with officials
// attached from the given mapping.
func (f *MatchFetcher) Fetch(ctx context.Context, competition *store.Competition, officials ingest.OfficialsByMatch) (*ingest.Matches, error) {
	if competition == nil || competition.ID == "" {
		return nil, errors.New("tms fetch requires a competition with an id")
	}

	doc, err := f.client.requester.GetHTML(ctx, f.client.MatchesURL(competition.ID))
	if err != nil {
		return nil, err
	}

	matches := store.NewOrderedMap[string, *store.Match]()
	rows := doc.Find(matchRows)
	if isEmptyListing(rows) {
		return matches, nil
	}

	var rowErr error
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		match, err := f.CreateMatch(competition, row, officials)
		if err != nil {
			rowErr = errors.Wrapf(err, "competition %s", competition.ID)
			return false
		}
		matches.Set(match.ID, match)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	f.logger.Debug("fetched matches", "competition", competition.ID, "matches", matches.Len())
	return matches, nil
}

// CreateMatch decodes a listing row. Columns: 1 index, 2 date, 3 title link,
// 4 score, 5 status, 6 venue.
func (f *MatchFetcher) CreateMatch(competition *store.Competition, row *goquery.Selection, officials ingest.OfficialsByMatch) (*store.Match, error) {
	match := store.NewMatch(competition)

	href, text, err := cellLink(row, 3, matchesComponent)
	if err != nil {
		return nil, err
	}
	title, err := ParseTitle(text)
	if err != nil {
		return nil, err
	}
	match.SetHomeTeam(title.HomeID, title.HomeName, nil)
	match.SetAwayTeam(title.AwayID, title.AwayName, nil)
	match.SetType(title.Type)

	if err := match.SetID(lastSegment(href)); err != nil {
		return nil, ingest.WrapParseError(err, matchesComponent, "match link without id", href)
	}

	indexText, err := cellText(row, 1, matchesComponent)
	if err != nil {
		return nil, err
	}
	match.Index = parseIndex(indexText)

	competitionType := ""
	if competition != nil {
		competitionType = competition.Type
	}
	match.SetGender(f.client.engine.Gender(competitionType))

	dateText, zone, err := cellTimezoneSpan(row, 2, matchesComponent)
	if err != nil {
		return nil, err
	}
	kickoff, err := textnorm.TMSToUTC(dateText, zone, f.client.engine.Tables().TimezoneAliases())
	if err != nil {
		return nil, ingest.WrapParseError(err, matchesComponent, "invalid date for match "+match.ID, dateText)
	}
	match.SetMatchDate(kickoff)

	status, err := cellText(row, 5, matchesComponent)
	if err != nil {
		return nil, err
	}
	if strings.ToLower(status) == statusOfficial {
		score, err := cellText(row, 4, matchesComponent)
		if err != nil {
			return nil, err
		}
		reconciliation.ApplyStatus(match, true, score)
	}

	if match.Venue, err = cellText(row, 6, matchesComponent); err != nil {
		return nil, err
	}

	reconciliation.AttachOfficials(match, officials)
	f.client.engine.Record(match)
	return match, nil
}

// parseIndex reads the digits of the index column; no digits is index 0.
func parseIndex(text string) int {
	n, err := strconv.Atoi(textnorm.Digits(text))
	if err != nil {
		return 0
	}
	return n
}

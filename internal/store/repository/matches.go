package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/fortuna/hockeysync/internal/store"
)

// MatchRepository handles match data access
type MatchRepository struct {
	db *store.Database
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *store.Database) *MatchRepository {
	return &MatchRepository{db: db}
}

type matchRow struct {
	Source        string         `db:"source"`
	MatchID       string         `db:"match_id"`
	CompetitionID string         `db:"competition_id"`
	ListingIndex  int            `db:"listing_index"`
	MatchDate     time.Time      `db:"match_date"`
	Venue         string         `db:"venue"`
	HomeTeamID    string         `db:"home_team_id"`
	HomeTeamName  string         `db:"home_team_name"`
	HomeClubID    sql.NullString `db:"home_club_id"`
	HomeClubName  sql.NullString `db:"home_club_name"`
	AwayTeamID    string         `db:"away_team_id"`
	AwayTeamName  string         `db:"away_team_name"`
	AwayClubID    sql.NullString `db:"away_club_id"`
	AwayClubName  sql.NullString `db:"away_club_name"`
	Gender        string         `db:"gender"`
	Completed     bool           `db:"completed"`
	Score         string         `db:"score"`
	MatchType     string         `db:"match_type"`
}

func newMatchRow(source store.Source, m *store.Match) matchRow {
	row := matchRow{
		Source:        string(source),
		MatchID:       m.ID,
		CompetitionID: m.CompetitionID(),
		ListingIndex:  m.Index,
		MatchDate:     m.MatchDate.UTC(),
		Venue:         m.Venue,
		HomeTeamID:    m.HomeTeam.ID,
		HomeTeamName:  m.HomeTeam.Name,
		AwayTeamID:    m.AwayTeam.ID,
		AwayTeamName:  m.AwayTeam.Name,
		Gender:        string(m.Gender),
		Completed:     m.Completed,
		Score:         m.Score,
		MatchType:     m.Type,
	}
	row.HomeClubID, row.HomeClubName = clubColumns(m.HomeTeam.Club)
	row.AwayClubID, row.AwayClubName = clubColumns(m.AwayTeam.Club)
	return row
}

func (r matchRow) toModel(competition *store.Competition) *store.Match {
	m := store.NewMatch(competition)
	m.ID = r.MatchID
	m.Index = r.ListingIndex
	m.SetMatchDate(r.MatchDate)
	m.Venue = r.Venue
	m.SetHomeTeam(r.HomeTeamID, r.HomeTeamName, clubFromColumns(r.HomeClubID, r.HomeClubName))
	m.SetAwayTeam(r.AwayTeamID, r.AwayTeamName, clubFromColumns(r.AwayClubID, r.AwayClubName))
	m.SetGender(store.Gender(r.Gender))
	m.Completed = r.Completed
	m.Score = r.Score
	m.Type = r.MatchType
	return m
}

func clubColumns(club *store.Club) (sql.NullString, sql.NullString) {
	if club == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: club.ID, Valid: true}, sql.NullString{String: club.Name, Valid: true}
}

func clubFromColumns(id, name sql.NullString) *store.Club {
	if !id.Valid {
		return nil
	}
	return &store.Club{ID: id.String, Name: name.String}
}

const upsertMatch = `
	INSERT INTO matches (
		source, match_id, competition_id, listing_index, match_date, venue,
		home_team_id, home_team_name, home_club_id, home_club_name,
		away_team_id, away_team_name, away_club_id, away_club_name,
		gender, completed, score, match_type
	) VALUES (
		:source, :match_id, :competition_id, :listing_index, :match_date, :venue,
		:home_team_id, :home_team_name, :home_club_id, :home_club_name,
		:away_team_id, :away_team_name, :away_club_id, :away_club_name,
		:gender, :completed, :score, :match_type
	)
	ON CONFLICT (source, match_id) DO UPDATE SET
		competition_id = EXCLUDED.competition_id,
		listing_index = EXCLUDED.listing_index,
		match_date = EXCLUDED.match_date,
		venue = EXCLUDED.venue,
		home_team_id = EXCLUDED.home_team_id,
		home_team_name = EXCLUDED.home_team_name,
		home_club_id = EXCLUDED.home_club_id,
		home_club_name = EXCLUDED.home_club_name,
		away_team_id = EXCLUDED.away_team_id,
		away_team_name = EXCLUDED.away_team_name,
		away_club_id = EXCLUDED.away_club_id,
		away_club_name = EXCLUDED.away_club_name,
		gender = EXCLUDED.gender,
		completed = EXCLUDED.completed,
		score = EXCLUDED.score,
		match_type = EXCLUDED.match_type,
		updated_at = NOW()
`

// UpsertMany inserts or updates matches of source in one transaction. Every
// match must belong to a competition.
func (r *MatchRepository) UpsertMany(ctx context.Context, source store.Source, matches []*store.Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	for _, m := range matches {
		if m.CompetitionID() == "" {
			return 0, errors.Newf("match %s has no competition", m.ID)
		}
	}

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, m := range matches {
			if _, err := tx.NamedExecContext(ctx, upsertMatch, newMatchRow(source, m)); err != nil {
				return errors.Wrapf(err, "upsert match %s/%s", source, m.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// ListByCompetition returns the stored matches of competition in listing
// order, without officials.
func (r *MatchRepository) ListByCompetition(ctx context.Context, competition *store.Competition) ([]*store.Match, error) {
	query := `
		SELECT source, match_id, competition_id, listing_index, match_date, venue,
			home_team_id, home_team_name, home_club_id, home_club_name,
			away_team_id, away_team_name, away_club_id, away_club_name,
			gender, completed, score, match_type
		FROM matches
		WHERE source = $1 AND competition_id = $2
		ORDER BY listing_index, match_date, match_id
	`

	var rows []matchRow
	if err := r.db.DB().SelectContext(ctx, &rows, query, string(competition.Source), competition.ID); err != nil {
		return nil, errors.Wrap(err, "querying matches")
	}

	out := make([]*store.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel(competition))
	}
	return out, nil
}

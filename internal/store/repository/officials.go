package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fortuna/hockeysync/internal/reconciliation"
	"github.com/fortuna/hockeysync/internal/store"
)

// OfficialRepository handles officials and their match assignments
type OfficialRepository struct {
	db *store.Database
}

// NewOfficialRepository creates a new official repository
func NewOfficialRepository(db *store.Database) *OfficialRepository {
	return &OfficialRepository{db: db}
}

type assignmentRow struct {
	MatchID    string `db:"match_id"`
	OfficialID string `db:"official_id"`
	Name       string `db:"name"`
	Role       string `db:"role"`
	Country    string `db:"country"`
}

func groupAssignments(rows []assignmentRow) map[string][]*store.Official {
	assignments := make([]reconciliation.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, reconciliation.Assignment{
			MatchID: row.MatchID,
			Official: &store.Official{
				ID:      row.OfficialID,
				Name:    row.Name,
				Role:    row.Role,
				Country: row.Country,
			},
		})
	}
	return reconciliation.GroupOfficials(assignments)
}

// Assign replaces the officials of a match of competitionID. Officials are
// upserted by id. The match does not have to be stored yet.
func (r *OfficialRepository) Assign(ctx context.Context, source store.Source, competitionID, matchID string, officials []*store.Official) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM match_officials WHERE source = $1 AND match_id = $2`,
			string(source), matchID,
		); err != nil {
			return errors.Wrap(err, "clear match officials")
		}

		for i, o := range officials {
			if o == nil || o.ID == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO officials (official_id, name, country)
				VALUES ($1, $2, $3)
				ON CONFLICT (official_id) DO UPDATE SET
					name = EXCLUDED.name,
					country = EXCLUDED.country,
					updated_at = NOW()
			`, o.ID, o.Name, o.Country); err != nil {
				return errors.Wrapf(err, "upsert official %s", o.ID)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO match_officials (source, competition_id, match_id, official_id, role, position)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (source, match_id, official_id) DO UPDATE SET
					competition_id = EXCLUDED.competition_id,
					role = EXCLUDED.role,
					position = EXCLUDED.position
			`, string(source), competitionID, matchID, o.ID, o.Role, i); err != nil {
				return errors.Wrapf(err, "assign official %s to %s", o.ID, matchID)
			}
		}
		return nil
	})
}

// ByMatches returns the officials assigned to the given matches of source.
func (r *OfficialRepository) ByMatches(ctx context.Context, source store.Source, matchIDs []string) (map[string][]*store.Official, error) {
	if len(matchIDs) == 0 {
		return map[string][]*store.Official{}, nil
	}

	query := `
		SELECT mo.match_id, o.official_id, o.name, mo.role, o.country
		FROM match_officials mo
		JOIN officials o ON o.official_id = mo.official_id
		WHERE mo.source = $1 AND mo.match_id = ANY($2)
		ORDER BY mo.match_id, mo.position
	`

	var rows []assignmentRow
	if err := r.db.DB().SelectContext(ctx, &rows, query, string(source), pq.Array(matchIDs)); err != nil {
		return nil, errors.Wrap(err, "querying match officials")
	}
	return groupAssignments(rows), nil
}

// ByCompetition returns the officials assigned to the matches of a
// competition, whether or not those matches are stored yet.
func (r *OfficialRepository) ByCompetition(ctx context.Context, source store.Source, competitionID string) (map[string][]*store.Official, error) {
	query := `
		SELECT mo.match_id, o.official_id, o.name, mo.role, o.country
		FROM match_officials mo
		JOIN officials o ON o.official_id = mo.official_id
		WHERE mo.source = $1 AND mo.competition_id = $2
		ORDER BY mo.match_id, mo.position
	`

	var rows []assignmentRow
	if err := r.db.DB().SelectContext(ctx, &rows, query, string(source), competitionID); err != nil {
		return nil, errors.Wrap(err, "querying competition officials")
	}
	return groupAssignments(rows), nil
}

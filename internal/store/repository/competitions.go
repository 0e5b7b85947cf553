package repository

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/fortuna/hockeysync/internal/store"
)

// CompetitionRepository handles competition data access
type CompetitionRepository struct {
	db *store.Database
}

// NewCompetitionRepository creates a new competition repository
func NewCompetitionRepository(db *store.Database) *CompetitionRepository {
	return &CompetitionRepository{db: db}
}

type competitionRow struct {
	Source        string `db:"source"`
	CompetitionID string `db:"competition_id"`
	Name          string `db:"name"`
	Location      string `db:"location"`
	Type          string `db:"type"`
	ListingIndex  int    `db:"listing_index"`
}

func (r competitionRow) toModel() *store.Competition {
	return &store.Competition{
		ID:       r.CompetitionID,
		Source:   store.Source(r.Source),
		Name:     r.Name,
		Location: r.Location,
		Type:     r.Type,
		Index:    r.ListingIndex,
	}
}

const upsertCompetition = `
	INSERT INTO competitions (source, competition_id, name, location, type, listing_index)
	VALUES (:source, :competition_id, :name, :location, :type, :listing_index)
	ON CONFLICT (source, competition_id) DO UPDATE SET
		name = EXCLUDED.name,
		location = EXCLUDED.location,
		type = EXCLUDED.type,
		listing_index = EXCLUDED.listing_index,
		updated_at = NOW()
`

// UpsertMany inserts or updates competitions in one transaction.
func (r *CompetitionRepository) UpsertMany(ctx context.Context, competitions []*store.Competition) (int, error) {
	if len(competitions) == 0 {
		return 0, nil
	}

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range competitions {
			row := competitionRow{
				Source:        string(c.Source),
				CompetitionID: c.ID,
				Name:          c.Name,
				Location:      c.Location,
				Type:          c.Type,
				ListingIndex:  c.Index,
			}
			if _, err := tx.NamedExecContext(ctx, upsertCompetition, row); err != nil {
				return errors.Wrapf(err, "upsert competition %s/%s", c.Source, c.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(competitions), nil
}

// List returns the competitions of source in listing order. An empty source
// lists every source.
func (r *CompetitionRepository) List(ctx context.Context, source store.Source) ([]*store.Competition, error) {
	query := `
		SELECT source, competition_id, name, location, type, listing_index
		FROM competitions
		WHERE ($1 = '' OR source = $1)
		ORDER BY source, listing_index, competition_id
	`

	var rows []competitionRow
	if err := r.db.DB().SelectContext(ctx, &rows, query, string(source)); err != nil {
		return nil, errors.Wrap(err, "querying competitions")
	}

	out := make([]*store.Competition, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// Get finds a competition by source and id.
func (r *CompetitionRepository) Get(ctx context.Context, source store.Source, id string) (*store.Competition, error) {
	query := `
		SELECT source, competition_id, name, location, type, listing_index
		FROM competitions
		WHERE source = $1 AND competition_id = $2
	`

	var row competitionRow
	err := r.db.DB().GetContext(ctx, &row, query, string(source), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(store.ErrNotFound, "competition %s/%s", source, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying competition")
	}
	return row.toModel(), nil
}

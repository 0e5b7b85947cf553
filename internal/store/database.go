package store

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/fortuna/hockeysync/internal/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// PoolConfig sizes the connection pool. Zero values take the defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Database is the Postgres connection holding competitions, matches and
// official assignments.
type Database struct {
	conn   *sqlx.DB
	dsn    string
	logger *logging.Logger
}

// NewDatabase opens and pings a Postgres connection.
func NewDatabase(ctx context.Context, dsn string, pool PoolConfig, logger *logging.Logger) (*Database, error) {
	if logger == nil {
		logger = logging.Default()
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	db.SetMaxOpenConns(orDefault(pool.MaxOpenConns, 20))
	db.SetMaxIdleConns(orDefault(pool.MaxIdleConns, 5))
	db.SetConnMaxLifetime(orDefaultDuration(pool.ConnMaxLifetime, time.Hour))
	db.SetConnMaxIdleTime(orDefaultDuration(pool.ConnMaxIdleTime, 10*time.Minute))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	return NewDatabaseFromDB(db, dsn, logger), nil
}

// NewDatabaseFromDB wraps an already open connection.
func NewDatabaseFromDB(db *sqlx.DB, dsn string, logger *logging.Logger) *Database {
	if logger == nil {
		logger = logging.Default()
	}
	return &Database{conn: db, dsn: dsn, logger: logger.With("component", "store")}
}

// Close closes the connection pool.
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// DB returns the underlying connection for queries.
func (db *Database) DB() *sqlx.DB {
	return db.conn
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (db *Database) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// RunMigrations applies the embedded schema migrations. Migrations run on a
// dedicated connection so closing the migrator leaves the pool open.
func (db *Database) RunMigrations() error {
	db.logger.Info("running database migrations")

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return errors.Wrap(err, "load migrations")
	}

	conn, err := sql.Open("postgres", db.dsn)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "create migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "create migrator")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			db.logger.Warn("close migration source", "error", srcErr)
		}
		if dbErr != nil {
			db.logger.Warn("close migration db", "error", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			db.logger.Info("schema up to date")
			return nil
		}
		return errors.Wrap(err, "apply migrations")
	}

	version, _, _ := m.Version()
	db.logger.Info("migrations applied", "version", version)
	return nil
}

// HealthCheck pings the database.
func (db *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.conn.PingContext(ctx)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"garantias.org/internal/apperr"
	"garantias.org/internal/audit"
	"garantias.org/internal/auth"
	"garantias.org/internal/guarantee"
)

const (
	pgErrUniqueViolation = "23505"
	pgErrCheckViolation  = "23514"
	pgErrRaiseException  = "P0001"
	pgErrNumericRange    = "22003"
)

// Store persists guarantees, the audit log and the profile directory in PostgreSQL.
type Store struct {
	db *sql.DB
}

var (
	_ guarantee.Store = (*Store)(nil)
	_ audit.Reader    = (*Store)(nil)
	_ auth.Directory  = (*Store)(nil)
)

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open connects through the pgx stdlib driver.
func Open(dsn string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// WithinTx runs fn in a read-committed transaction. Row locks and the conditional
// update in MarkInactive serialise concurrent deactivations.
func (s *Store) WithinTx(ctx context.Context, fn func(guarantee.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return apperr.Storage("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("commit transaction", translate(err))
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

// translate maps constraint and trigger failures onto error kinds.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgErrUniqueViolation, pgErrRaiseException:
		return fmt.Errorf("%w: %s", apperr.ErrConflict, pgErr.Message)
	case pgErrCheckViolation, pgErrNumericRange:
		return fmt.Errorf("%w: %s", apperr.ErrValidation, pgErr.Message)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

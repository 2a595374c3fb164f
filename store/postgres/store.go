// Package postgres implements the Tally store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	tally "github.com/kyomi-dev/tally"
	tallystore "github.com/kyomi-dev/tally/store"
	"github.com/kyomi-dev/tally/types"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("tally/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tally/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSubject(ctx context.Context, kind types.Kind, subjectID int64) error {
	var err error
	switch kind {
	case types.KindCurrency:
		_, err = s.pg.NewInsert(&currencyModel{ID: subjectID}).
			OnConflict("(id) DO NOTHING").
			Exec(ctx)
	case types.KindExperience:
		_, err = s.pg.NewInsert(&levelModel{ID: subjectID}).
			OnConflict("(id) DO NOTHING").
			Exec(ctx)
	default:
		return tally.ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("tally/postgres: ensure subject: %w", err)
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, kind types.Kind, subjectID, delta int64) error {
	return s.applyDelta(ctx, kind, subjectID, delta)
}

func (s *Store) Decrement(ctx context.Context, kind types.Kind, subjectID, delta int64) error {
	return s.applyDelta(ctx, kind, subjectID, -delta)
}

// applyDelta runs the relative update inside the database so interleaved
// callers on the same subject cannot lose updates. A missing row affects
// zero rows, which is not an error.
func (s *Store) applyDelta(ctx context.Context, kind types.Kind, subjectID, delta int64) error {
	var err error
	switch kind {
	case types.KindCurrency:
		_, err = s.pg.NewUpdate((*currencyModel)(nil)).
			Set("balance = balance + $1", delta).
			Where("id = $2", subjectID).
			Exec(ctx)
	case types.KindExperience:
		_, err = s.pg.NewUpdate((*levelModel)(nil)).
			Set("experience = experience + $1", delta).
			Where("id = $2", subjectID).
			Exec(ctx)
	default:
		return tally.ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("tally/postgres: apply delta: %w", err)
	}
	return nil
}

func (s *Store) SetValue(ctx context.Context, kind types.Kind, subjectID, value int64) error {
	var err error
	switch kind {
	case types.KindCurrency:
		_, err = s.pg.NewUpdate((*currencyModel)(nil)).
			Set("balance = $1", value).
			Where("id = $2", subjectID).
			Exec(ctx)
	case types.KindExperience:
		_, err = s.pg.NewUpdate((*levelModel)(nil)).
			Set("experience = $1", value).
			Where("id = $2", subjectID).
			Exec(ctx)
	default:
		return tally.ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("tally/postgres: set value: %w", err)
	}
	return nil
}

func (s *Store) GetValue(ctx context.Context, kind types.Kind, subjectID int64) (int64, bool, error) {
	switch kind {
	case types.KindCurrency:
		m := new(currencyModel)
		err := s.pg.NewSelect(m).
			Where("id = $1", subjectID).
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return 0, false, nil
			}
			return 0, false, fmt.Errorf("tally/postgres: get value: %w", err)
		}
		return m.Balance, true, nil
	case types.KindExperience:
		m := new(levelModel)
		err := s.pg.NewSelect(m).
			Where("id = $1", subjectID).
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return 0, false, nil
			}
			return 0, false, fmt.Errorf("tally/postgres: get value: %w", err)
		}
		return m.Experience, true, nil
	default:
		return 0, false, tally.ErrUnknownKind
	}
}

func (s *Store) ReadAll(ctx context.Context, kind types.Kind) ([]types.Row, error) {
	switch kind {
	case types.KindCurrency:
		var models []currencyModel
		if err := s.pg.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
			return nil, fmt.Errorf("tally/postgres: read all: %w", err)
		}
		rows := make([]types.Row, len(models))
		for i, m := range models {
			rows[i] = types.Row{SubjectID: m.ID, Value: m.Balance}
		}
		return rows, nil
	case types.KindExperience:
		var models []levelModel
		if err := s.pg.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
			return nil, fmt.Errorf("tally/postgres: read all: %w", err)
		}
		rows := make([]types.Row, len(models))
		for i, m := range models {
			rows[i] = types.Row{SubjectID: m.ID, Value: m.Experience}
		}
		return rows, nil
	default:
		return nil, tally.ErrUnknownKind
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Package sqlite implements the Tally store on SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	tally "github.com/kyomi-dev/tally"
	tallystore "github.com/kyomi-dev/tally/store"
	"github.com/kyomi-dev/tally/types"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("tally/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tally/sqlite: migration failed: %w", err)
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
		_, err = s.sdb.NewInsert(&currencyModel{ID: subjectID}).
			OnConflict("(id) DO NOTHING").
			Exec(ctx)
	case types.KindExperience:
		_, err = s.sdb.NewInsert(&levelModel{ID: subjectID}).
			OnConflict("(id) DO NOTHING").
			Exec(ctx)
	default:
		return tally.ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("tally/sqlite: ensure subject: %w", err)
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, kind types.Kind, subjectID, delta int64) error {
	return s.applyDelta(ctx, kind, subjectID, delta)
}

func (s *Store) Decrement(ctx context.Context, kind types.Kind, subjectID, delta int64) error {
	return s.applyDelta(ctx, kind, subjectID, -delta)
}

func (s *Store) applyDelta(ctx context.Context, kind types.Kind, subjectID, delta int64) error {
	var err error
	switch kind {
	case types.KindCurrency:
		_, err = s.sdb.NewUpdate((*currencyModel)(nil)).
			Set("balance = balance + ?", delta).
			Where("id = ?", subjectID).
			Exec(ctx)
	case types.KindExperience:
		_, err = s.sdb.NewUpdate((*levelModel)(nil)).
			Set("experience = experience + ?", delta).
			Where("id = ?", subjectID).
			Exec(ctx)
	default:
		return tally.ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("tally/sqlite: apply delta: %w", err)
	}
	return nil
}

func (s *Store) SetValue(ctx context.Context, kind types.Kind, subjectID, value int64) error {
	var err error
	switch kind {
	case types.KindCurrency:
		_, err = s.sdb.NewUpdate((*currencyModel)(nil)).
			Set("balance = ?", value).
			Where("id = ?", subjectID).
			Exec(ctx)
	case types.KindExperience:
		_, err = s.sdb.NewUpdate((*levelModel)(nil)).
			Set("experience = ?", value).
			Where("id = ?", subjectID).
			Exec(ctx)
	default:
		return tally.ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("tally/sqlite: set value: %w", err)
	}
	return nil
}

func (s *Store) GetValue(ctx context.Context, kind types.Kind, subjectID int64) (int64, bool, error) {
	switch kind {
	case types.KindCurrency:
		m := new(currencyModel)
		err := s.sdb.NewSelect(m).
			Where("id = ?", subjectID).
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return 0, false, nil
			}
			return 0, false, fmt.Errorf("tally/sqlite: get value: %w", err)
		}
		return m.Balance, true, nil
	case types.KindExperience:
		m := new(levelModel)
		err := s.sdb.NewSelect(m).
			Where("id = ?", subjectID).
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return 0, false, nil
			}
			return 0, false, fmt.Errorf("tally/sqlite: get value: %w", err)
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
		if err := s.sdb.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
			return nil, fmt.Errorf("tally/sqlite: read all: %w", err)
		}
		rows := make([]types.Row, len(models))
		for i, m := range models {
			rows[i] = types.Row{SubjectID: m.ID, Value: m.Balance}
		}
		return rows, nil
	case types.KindExperience:
		var models []levelModel
		if err := s.sdb.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
			return nil, fmt.Errorf("tally/sqlite: read all: %w", err)
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

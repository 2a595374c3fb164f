// Package mongo implements the Tally store on MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	tally "github.com/kyomi-dev/tally"
	tallystore "github.com/kyomi-dev/tally/store"
	"github.com/kyomi-dev/tally/types"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Relative
// updates use $inc so interleaved callers on the same subject cannot lose
// updates. A decrement on a missing subject matches zero documents and is
// not an error, matching the SQL backends.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate is a no-op: both collections are keyed by _id and need no
// secondary indexes.
func (s *Store) Migrate(ctx context.Context) error {
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
		_, err = s.mdb.NewUpdate((*currencyModel)(nil)).
			Filter(bson.M{"_id": subjectID}).
			SetUpdate(bson.M{"$setOnInsert": bson.M{"_id": subjectID, "balance": int64(0)}}).
			Upsert().
			Exec(ctx)
	case types.KindExperience:
		_, err = s.mdb.NewUpdate((*levelModel)(nil)).
			Filter(bson.M{"_id": subjectID}).
			SetUpdate(bson.M{"$setOnInsert": bson.M{"_id": subjectID, "experience": int64(0)}}).
			Upsert().
			Exec(ctx)
	default:
		return tally.ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("tally/mongo: ensure subject: %w", err)
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
		_, err = s.mdb.NewUpdate((*currencyModel)(nil)).
			Filter(bson.M{"_id": subjectID}).
			SetUpdate(bson.M{"$inc": bson.M{"balance": delta}}).
			Exec(ctx)
	case types.KindExperience:
		_, err = s.mdb.NewUpdate((*levelModel)(nil)).
			Filter(bson.M{"_id": subjectID}).
			SetUpdate(bson.M{"$inc": bson.M{"experience": delta}}).
			Exec(ctx)
	default:
		return tally.ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("tally/mongo: apply delta: %w", err)
	}
	return nil
}

func (s *Store) SetValue(ctx context.Context, kind types.Kind, subjectID, value int64) error {
	var err error
	switch kind {
	case types.KindCurrency:
		_, err = s.mdb.NewUpdate((*currencyModel)(nil)).
			Filter(bson.M{"_id": subjectID}).
			SetUpdate(bson.M{"$set": bson.M{"balance": value}}).
			Exec(ctx)
	case types.KindExperience:
		_, err = s.mdb.NewUpdate((*levelModel)(nil)).
			Filter(bson.M{"_id": subjectID}).
			SetUpdate(bson.M{"$set": bson.M{"experience": value}}).
			Exec(ctx)
	default:
		return tally.ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("tally/mongo: set value: %w", err)
	}
	return nil
}

func (s *Store) GetValue(ctx context.Context, kind types.Kind, subjectID int64) (int64, bool, error) {
	switch kind {
	case types.KindCurrency:
		var m currencyModel
		err := s.mdb.NewFind(&m).
			Filter(bson.M{"_id": subjectID}).
			Scan(ctx)
		if err != nil {
			if isNoDocuments(err) {
				return 0, false, nil
			}
			return 0, false, fmt.Errorf("tally/mongo: get value: %w", err)
		}
		return m.Balance, true, nil
	case types.KindExperience:
		var m levelModel
		err := s.mdb.NewFind(&m).
			Filter(bson.M{"_id": subjectID}).
			Scan(ctx)
		if err != nil {
			if isNoDocuments(err) {
				return 0, false, nil
			}
			return 0, false, fmt.Errorf("tally/mongo: get value: %w", err)
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
		err := s.mdb.NewFind(&models).
			Filter(bson.M{}).
			Sort(bson.D{{Key: "_id", Value: 1}}).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("tally/mongo: read all: %w", err)
		}
		rows := make([]types.Row, len(models))
		for i, m := range models {
			rows[i] = types.Row{SubjectID: m.ID, Value: m.Balance}
		}
		return rows, nil
	case types.KindExperience:
		var models []levelModel
		err := s.mdb.NewFind(&models).
			Filter(bson.M{}).
			Sort(bson.D{{Key: "_id", Value: 1}}).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("tally/mongo: read all: %w", err)
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

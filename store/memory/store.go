// Package memory implements an in-memory Tally store, intended for tests
// and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	tally "github.com/kyomi-dev/tally"
	tallystore "github.com/kyomi-dev/tally/store"
	"github.com/kyomi-dev/tally/types"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// One table per kind, subject id to value.
	tables map[types.Kind]map[int64]int64
}

func New() *Store {
	tables := make(map[types.Kind]map[int64]int64, len(types.Kinds))
	for _, k := range types.Kinds {
		tables[k] = make(map[int64]int64)
	}
	return &Store{tables: tables}
}

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) EnsureSubject(_ context.Context, kind types.Kind, subjectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.tables[kind]
	if !ok {
		return tally.ErrUnknownKind
	}
	if _, exists := table[subjectID]; !exists {
		table[subjectID] = 0
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, kind types.Kind, subjectID, delta int64) error {
	return s.applyDelta(kind, subjectID, delta)
}

func (s *Store) Decrement(ctx context.Context, kind types.Kind, subjectID, delta int64) error {
	return s.applyDelta(kind, subjectID, -delta)
}

// applyDelta mutates an existing row only, matching the relative UPDATE of
// the database backends. A missing subject is a no-op.
func (s *Store) applyDelta(kind types.Kind, subjectID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.tables[kind]
	if !ok {
		return tally.ErrUnknownKind
	}
	if _, exists := table[subjectID]; !exists {
		return nil
	}
	table[subjectID] += delta
	return nil
}

func (s *Store) SetValue(_ context.Context, kind types.Kind, subjectID, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.tables[kind]
	if !ok {
		return tally.ErrUnknownKind
	}
	if _, exists := table[subjectID]; !exists {
		return nil
	}
	table[subjectID] = value
	return nil
}

func (s *Store) GetValue(_ context.Context, kind types.Kind, subjectID int64) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.tables[kind]
	if !ok {
		return 0, false, tally.ErrUnknownKind
	}
	v, exists := table[subjectID]
	return v, exists, nil
}

func (s *Store) ReadAll(_ context.Context, kind types.Kind) ([]types.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.tables[kind]
	if !ok {
		return nil, tally.ErrUnknownKind
	}
	rows := make([]types.Row, 0, len(table))
	for id, v := range table {
		rows = append(rows, types.Row{SubjectID: id, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SubjectID < rows[j].SubjectID })
	return rows, nil
}

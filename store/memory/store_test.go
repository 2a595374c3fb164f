package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tally "github.com/kyomi-dev/tally"
	"github.com/kyomi-dev/tally/types"
)

func TestEnsureSubjectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.EnsureSubject(ctx, types.KindCurrency, 42))
	require.NoError(t, s.Increment(ctx, types.KindCurrency, 42, 100))

	// A second ensure must not reset the stored value.
	require.NoError(t, s.EnsureSubject(ctx, types.KindCurrency, 42))

	v, ok, err := s.GetValue(ctx, types.KindCurrency, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(100), v)
}

func TestDeltaOnMissingSubjectIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Decrement(ctx, types.KindExperience, 7, 50))

	_, ok, err := s.GetValue(ctx, types.KindExperience, 7)
	require.NoError(t, err)
	assert.False(t, ok, "delta must not create a row")
}

func TestIncrementAndDecrement(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.EnsureSubject(ctx, types.KindCurrency, 1))
	require.NoError(t, s.Increment(ctx, types.KindCurrency, 1, 30))
	require.NoError(t, s.Decrement(ctx, types.KindCurrency, 1, 50))

	v, ok, err := s.GetValue(ctx, types.KindCurrency, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(-20), v, "currency may go negative at the store level")
}

func TestKindsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.EnsureSubject(ctx, types.KindCurrency, 9))
	require.NoError(t, s.EnsureSubject(ctx, types.KindExperience, 9))
	require.NoError(t, s.Increment(ctx, types.KindCurrency, 9, 11))
	require.NoError(t, s.Increment(ctx, types.KindExperience, 9, 22))

	c, _, err := s.GetValue(ctx, types.KindCurrency, 9)
	require.NoError(t, err)
	x, _, err := s.GetValue(ctx, types.KindExperience, 9)
	require.NoError(t, err)

	assert.Equal(t, int64(11), c)
	assert.Equal(t, int64(22), x)
}

func TestReadAllReturnsSortedRows(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, id := range []int64{30, 10, 20} {
		require.NoError(t, s.EnsureSubject(ctx, types.KindExperience, id))
		require.NoError(t, s.Increment(ctx, types.KindExperience, id, id*2))
	}

	rows, err := s.ReadAll(ctx, types.KindExperience)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []types.Row{
		{SubjectID: 10, Value: 20},
		{SubjectID: 20, Value: 40},
		{SubjectID: 30, Value: 60},
	}, rows)
}

func TestUnknownKindRejected(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.EnsureSubject(ctx, types.Kind("bogus"), 1)
	assert.ErrorIs(t, err, tally.ErrUnknownKind)

	_, _, err = s.GetValue(ctx, types.Kind("bogus"), 1)
	assert.ErrorIs(t, err, tally.ErrUnknownKind)
}

func TestConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.EnsureSubject(ctx, types.KindCurrency, 5))

	const workers = 32
	const perWorker = 100

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_ = s.Increment(ctx, types.KindCurrency, 5, 1)
			}
		}()
	}
	wg.Wait()

	v, _, err := s.GetValue(ctx, types.KindCurrency, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), v)
}

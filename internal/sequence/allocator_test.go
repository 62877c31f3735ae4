package sequence_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/sequence"
	"example.com/backstage/services/identifier/internal/sequence/sequencetest"
)

var day = time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC)

func TestMemoryStore(t *testing.T) {
	sequencetest.Run(t, func(t *testing.T) sequence.CounterStore {
		return sequence.NewMemoryStore()
	})
}

func TestScopes(t *testing.T) {
	assert.Equal(t, sequence.Scope("batch:01:10:20251206"), sequence.BatchScope(1, identifier.BatchProduction, day))
	assert.Equal(t, sequence.Scope("unit:0110202512060001"), sequence.UnitScope("0110202512060001"))
	assert.Equal(t, sequence.Scope("short:07:20251206"), sequence.ShortScope(7, day))
}

func TestAllocateBatchSequenceConcurrent(t *testing.T) {
	store := sequence.NewMemoryStore()
	alloc := sequence.NewAllocator(store)
	ctx := context.Background()

	// Pre-existing value k.
	for i := 0; i < 7; i++ {
		_, err := alloc.AllocateBatchSequence(ctx, 1, identifier.BatchProduction, day)
		require.NoError(t, err)
	}

	const n = 100
	var (
		mu   sync.Mutex
		seen []int
		g    errgroup.Group
	)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := alloc.AllocateBatchSequence(ctx, 1, identifier.BatchProduction, day)
			if err != nil {
				return err
			}
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Ints(seen)
	require.Len(t, seen, n)
	for i, v := range seen {
		assert.Equal(t, 8+i, v)
	}
}

func TestAllocateBatchSequenceExhausted(t *testing.T) {
	store := sequence.NewMemoryStore()
	alloc := sequence.NewAllocator(store)
	ctx := context.Background()

	for i := 1; i < identifier.MaxBatchSequence; i++ {
		_, err := alloc.AllocateBatchSequence(ctx, 3, identifier.BatchHarvest, day)
		require.NoError(t, err)
	}
	v, err := alloc.AllocateBatchSequence(ctx, 3, identifier.BatchHarvest, day)
	require.NoError(t, err)
	assert.Equal(t, 9999, v)

	_, err = alloc.AllocateBatchSequence(ctx, 3, identifier.BatchHarvest, day)
	assert.ErrorIs(t, err, identifier.ErrSequenceExhausted)
	assert.EqualValues(t, 9999, store.Last(sequence.BatchScope(3, identifier.BatchHarvest, day)))

	// A neighbouring scope is unaffected.
	v, err = alloc.AllocateBatchSequence(ctx, 3, identifier.BatchHarvest, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestAllocateUnitSequence(t *testing.T) {
	alloc := sequence.NewAllocator(sequence.NewMemoryStore())
	ctx := context.Background()

	batch := identifier.BatchNumber{Site: 1, Type: identifier.BatchProduction, Date: day, Sequence: 1}
	other := batch
	other.Sequence = 2

	for want := 1; want <= 3; want++ {
		v, err := alloc.AllocateUnitSequence(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	v, err := alloc.AllocateUnitSequence(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = alloc.AllocateUnitSequence(ctx, identifier.BatchNumber{Site: 0, Type: identifier.BatchProduction, Date: day, Sequence: 1})
	assert.ErrorIs(t, err, identifier.ErrFieldOutOfRange)
}

func TestAllocateRejectsBadInputs(t *testing.T) {
	alloc := sequence.NewAllocator(sequence.NewMemoryStore())
	ctx := context.Background()

	_, err := alloc.AllocateBatchSequence(ctx, 100, identifier.BatchProduction, day)
	assert.ErrorIs(t, err, identifier.ErrFieldOutOfRange)
	_, err = alloc.AllocateBatchSequence(ctx, 1, 15, day)
	assert.ErrorIs(t, err, identifier.ErrFieldOutOfRange)
	_, err = alloc.AllocateShortSequence(ctx, 0, day)
	assert.ErrorIs(t, err, identifier.ErrFieldOutOfRange)
}

func TestAllocateRejectsZeroDate(t *testing.T) {
	store := sequence.NewMemoryStore()
	alloc := sequence.NewAllocator(store)
	ctx := context.Background()

	var e *identifier.Error
	_, err := alloc.AllocateBatchSequence(ctx, 1, identifier.BatchProduction, time.Time{})
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "date", e.Field)

	_, err = alloc.AllocateShortSequence(ctx, 1, time.Time{})
	assert.ErrorIs(t, err, identifier.ErrFieldOutOfRange)

	_, err = alloc.AllocateBatchSequence(ctx, 1, identifier.BatchProduction, time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, identifier.ErrFieldOutOfRange)

	assert.Equal(t, int64(0), store.Last(sequence.BatchScope(1, identifier.BatchProduction, time.Time{})))
	assert.Equal(t, int64(0), store.Last(sequence.ShortScope(1, time.Time{})))
}

func TestMemoryStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sequence.NewMemoryStore().Next(ctx, "batch:01:10:20251206", 10)
	assert.ErrorIs(t, err, context.Canceled)
}

// Package mappingtest holds the behaviour every mapping.Store must show,
// shared by the memory, SQL and cached implementations.
package mappingtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/mapping"
	"example.com/backstage/services/identifier/internal/models"
)

var day = time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC)

// Serial returns a valid, encoded serial pair for unit n of the worked
// example batch.
func Serial(t *testing.T, unit int) *models.SerialMapping {
	t.Helper()
	s := identifier.FullSerial{
		Site:          1,
		Strain:        100,
		BatchType:     identifier.BatchProduction,
		Date:          day,
		BatchSequence: 1,
		UnitSequence:  unit,
		WeightTenths:  35,
		PackSize:      identifier.PackSingle,
	}
	full, err := identifier.EncodeFullSerial(s)
	require.NoError(t, err)
	short, err := identifier.EncodeShortSerial(s.Site, s.Date, unit)
	require.NoError(t, err)
	return mapping.NewSerialMapping(s, full, short)
}

// Run exercises store. newStore must return an empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) mapping.Store) {
	ctx := context.Background()

	t.Run("resolves both directions", func(t *testing.T) {
		store := newStore(t)
		m := Serial(t, 1)
		require.NoError(t, store.CreateMapping(ctx, m))
		assert.NotEqual(t, uuid.Nil, m.ID)

		full, err := store.ResolveShortToFull(ctx, m.ShortSerial)
		require.NoError(t, err)
		assert.Equal(t, m.FullSerial, full)

		short, err := store.ResolveFullToShort(ctx, m.FullSerial)
		require.NoError(t, err)
		assert.Equal(t, m.ShortSerial, short)
	})

	t.Run("unknown identifiers are not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.ResolveShortToFull(ctx, "0125120699999")
		assert.ErrorIs(t, err, identifier.ErrNotFound)
		_, err = store.ResolveFullToShort(ctx, "011001020251206000100001003517")
		assert.ErrorIs(t, err, identifier.ErrNotFound)
		_, err = store.GetBatch(ctx, "0110202512060001")
		assert.ErrorIs(t, err, identifier.ErrNotFound)
	})

	t.Run("duplicates leave the existing mapping unchanged", func(t *testing.T) {
		store := newStore(t)
		first := Serial(t, 1)
		require.NoError(t, store.CreateMapping(ctx, first))

		sameFull := Serial(t, 1)
		sameFull.ShortSerial = Serial(t, 2).ShortSerial
		err := store.CreateMapping(ctx, sameFull)
		assert.ErrorIs(t, err, identifier.ErrDuplicateFull)

		sameShort := Serial(t, 3)
		sameShort.ShortSerial = first.ShortSerial
		err = store.CreateMapping(ctx, sameShort)
		assert.ErrorIs(t, err, identifier.ErrDuplicateShort)

		full, err := store.ResolveShortToFull(ctx, first.ShortSerial)
		require.NoError(t, err)
		assert.Equal(t, first.FullSerial, full)

		_, err = store.ResolveShortToFull(ctx, sameFull.ShortSerial)
		assert.ErrorIs(t, err, identifier.ErrNotFound)
		_, err = store.ResolveFullToShort(ctx, sameShort.FullSerial)
		assert.ErrorIs(t, err, identifier.ErrNotFound)
	})

	t.Run("concurrent creates have one winner", func(t *testing.T) {
		store := newStore(t)
		const callers = 16

		var (
			wg      sync.WaitGroup
			winners atomic.Int32
			dupes   atomic.Int32
		)
		candidates := make([]*models.SerialMapping, callers)
		for i := range candidates {
			candidates[i] = Serial(t, 7)
		}
		for _, m := range candidates {
			wg.Add(1)
			go func(m *models.SerialMapping) {
				defer wg.Done()
				err := store.CreateMapping(ctx, m)
				switch {
				case err == nil:
					winners.Add(1)
				case identifier.IsInvariantViolation(err):
					dupes.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(m)
		}
		wg.Wait()

		assert.Equal(t, int32(1), winners.Load())
		assert.Equal(t, int32(callers-1), dupes.Load())
	})

	t.Run("batches", func(t *testing.T) {
		store := newStore(t)
		b := identifier.BatchNumber{Site: 1, Type: identifier.BatchProduction, Date: day, Sequence: 1}
		rec := mapping.NewBatchRecord(b, b.String())
		require.NoError(t, store.CreateBatch(ctx, rec))

		got, err := store.GetBatch(ctx, "0110202512060001")
		require.NoError(t, err)
		assert.Equal(t, 1, got.SiteID)
		assert.Equal(t, 10, got.BatchType)
		assert.Equal(t, 1, got.Sequence)

		err = store.CreateBatch(ctx, mapping.NewBatchRecord(b, b.String()))
		assert.ErrorIs(t, err, identifier.ErrDuplicateBatch)
	})

	t.Run("request ids identify one issue", func(t *testing.T) {
		store := newStore(t)
		req := "terminal-7/0001"

		_, err := store.GetBatchByRequest(ctx, req)
		assert.ErrorIs(t, err, identifier.ErrNotFound)
		_, err = store.GetMappingByRequest(ctx, req)
		assert.ErrorIs(t, err, identifier.ErrNotFound)

		b := identifier.BatchNumber{Site: 1, Type: identifier.BatchProduction, Date: day, Sequence: 1}
		rec := mapping.NewBatchRecord(b, b.String())
		rec.RequestID = &req
		require.NoError(t, store.CreateBatch(ctx, rec))

		got, err := store.GetBatchByRequest(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "0110202512060001", got.BatchNumber)

		b.Sequence = 2
		again := mapping.NewBatchRecord(b, b.String())
		again.RequestID = &req
		assert.True(t, identifier.IsInvariantViolation(store.CreateBatch(ctx, again)))
		_, err = store.GetBatch(ctx, b.String())
		assert.ErrorIs(t, err, identifier.ErrNotFound)

		m := Serial(t, 1)
		m.RequestID = &req
		require.NoError(t, store.CreateMapping(ctx, m))

		found, err := store.GetMappingByRequest(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, m.FullSerial, found.FullSerial)
		assert.Equal(t, m.ShortSerial, found.ShortSerial)

		other := Serial(t, 2)
		other.RequestID = &req
		assert.True(t, identifier.IsInvariantViolation(store.CreateMapping(ctx, other)))
		_, err = store.ResolveShortToFull(ctx, other.ShortSerial)
		assert.ErrorIs(t, err, identifier.ErrNotFound)

		require.NoError(t, store.CreateMapping(ctx, Serial(t, 3)))
		require.NoError(t, store.CreateMapping(ctx, Serial(t, 4)))
	})

	t.Run("search projection bookkeeping", func(t *testing.T) {
		store := newStore(t)
		var created []*models.SerialMapping
		for unit := 1; unit <= 5; unit++ {
			m := Serial(t, unit)
			require.NoError(t, store.CreateMapping(ctx, m), fmt.Sprintf("unit %d", unit))
			created = append(created, m)
		}

		pending, err := store.ListUnindexed(ctx, 3)
		require.NoError(t, err)
		require.Len(t, pending, 3)

		ids := make([]uuid.UUID, 0, len(pending))
		for _, m := range pending {
			ids = append(ids, m.ID)
		}
		require.NoError(t, store.MarkIndexed(ctx, ids))

		pending, err = store.ListUnindexed(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		require.NoError(t, store.MarkIndexed(ctx, []uuid.UUID{created[0].ID, pending[0].ID, pending[1].ID}))
		pending, err = store.ListUnindexed(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

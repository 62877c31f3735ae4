// Package sequencetest holds the behaviour every sequence.CounterStore must
// show, shared by the memory, SQL and Redis implementations.
package sequencetest

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/identifier/internal/sequence"
)

// Run exercises store. newStore must return an empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) sequence.CounterStore) {
	t.Run("starts at one and increments", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		for want := int64(1); want <= 5; want++ {
			got, err := store.Next(ctx, "batch:01:10:20251206", 9999)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("scopes are independent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, err := store.Next(ctx, "batch:01:10:20251206", 9999)
			require.NoError(t, err)
		}
		got, err := store.Next(ctx, "batch:02:10:20251206", 9999)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)

		got, err = store.Next(ctx, "batch:01:20:20251206", 9999)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("stops at max without advancing", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		scope := sequence.Scope("unit:0110202512060001")
		for want := int64(1); want <= 3; want++ {
			got, err := store.Next(ctx, scope, 3)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		for i := 0; i < 2; i++ {
			_, err := store.Next(ctx, scope, 3)
			assert.ErrorIs(t, err, sequence.ErrExhausted)
		}
		got, err := store.Next(ctx, scope, 4)
		require.NoError(t, err)
		assert.Equal(t, int64(4), got)
	})

	t.Run("concurrent callers get distinct dense values", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		scope := sequence.Scope("short:01:20251206")
		const callers = 40

		values := make([]int64, callers)
		var g errgroup.Group
		for i := 0; i < callers; i++ {
			i := i
			g.Go(func() error {
				v, err := store.Next(ctx, scope, 99999)
				if err != nil {
					return fmt.Errorf("caller %d: %w", i, err)
				}
				values[i] = v
				return nil
			})
		}
		require.NoError(t, g.Wait())

		sort.Slice(values, func(a, b int) bool { return values[a] < values[b] })
		for i, v := range values {
			assert.Equal(t, int64(i+1), v)
		}
	})
}

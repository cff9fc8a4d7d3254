// Package mirrortest checks that a mirror.Store honours the write-once
// settlement contract.
package mirrortest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/krazyTry/meteora-graduator/internal/mirror"
)

// Run exercises store with pool keys prefixed by prefix.
func Run(t *testing.T, store mirror.Store, prefix string) {
	ctx := context.Background()
	pool := prefix + "pool"

	t.Run("track", func(t *testing.T) {
		require.NoError(t, store.Upsert(ctx, mirror.FundData{BondingCurvePool: pool, BaseMint: prefix + "mint"}))
		got, err := store.Get(ctx, pool)
		require.NoError(t, err)
		require.Equal(t, mirror.StateTrading, got.State)
		require.Equal(t, prefix+"mint", got.BaseMint)

		_, err = store.Get(ctx, prefix+"missing")
		require.ErrorIs(t, err, mirror.ErrNotFound)
	})

	t.Run("progress", func(t *testing.T) {
		next := time.Now().Add(time.Minute).UTC().Truncate(time.Millisecond)
		require.NoError(t, store.SaveProgress(ctx, pool, mirror.Progress{
			State:             mirror.StateMetadataCreated,
			Attempts:          1,
			LastStep:          "migrate",
			LastError:         "boom",
			NextAttemptAt:     &next,
			MetadataSignature: "meta-sig",
		}))
		got, err := store.Get(ctx, pool)
		require.NoError(t, err)
		require.Equal(t, mirror.StateMetadataCreated, got.State)
		require.Equal(t, 1, got.Attempts)
		require.Equal(t, "meta-sig", got.MetadataSignature)
		require.NotNil(t, got.NextAttemptAt)
		require.ErrorIs(t, store.SaveProgress(ctx, prefix+"missing", mirror.Progress{}), mirror.ErrNotFound)
	})

	t.Run("set migrated once", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			changed int
			errList []error
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.SetMigrated(ctx, pool, prefix+"damm", at)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errList = append(errList, err)
				}
				if ok {
					changed++
				}
			}()
		}
		wg.Wait()
		require.Empty(t, errList)
		require.Equal(t, 1, changed)

		ok, err := store.SetMigrated(ctx, pool, prefix+"other", at)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, store.SaveProgress(ctx, pool, mirror.Progress{State: mirror.StateMetadataCreated}))
		got, err := store.Get(ctx, pool)
		require.NoError(t, err)
		require.Equal(t, prefix+"damm", got.DammV2Pool)
		require.Equal(t, mirror.StateSettled, got.State)
		require.True(t, got.MigratedAt.Equal(at))
	})

	t.Run("list", func(t *testing.T) {
		list, err := store.ListPools(ctx)
		require.NoError(t, err)
		found := false
		for _, f := range list {
			if f.BondingCurvePool == pool {
				found = true
			}
		}
		require.True(t, found)
	})
}

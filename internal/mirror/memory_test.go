package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "P")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Upsert(ctx, FundData{BondingCurvePool: "P", BaseMint: "M"}))
	got, err := s.Get(ctx, "P")
	require.NoError(t, err)
	require.Equal(t, StateTrading, got.State)
	require.False(t, got.Settled())

	next := time.Now().Add(time.Minute)
	require.NoError(t, s.SaveProgress(ctx, "P", Progress{
		State:             StateMetadataCreated,
		Attempts:          1,
		LastStep:          "migrate",
		LastError:         "blockhash expired",
		NextAttemptAt:     &next,
		MetadataSignature: "sig1",
	}))
	require.NoError(t, s.SaveProgress(ctx, "P", Progress{State: StateMetadataCreated, Attempts: 2}))
	got, _ = s.Get(ctx, "P")
	require.Equal(t, 2, got.Attempts)
	require.Equal(t, "sig1", got.MetadataSignature)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	changed, err := s.SetMigrated(ctx, "P", "D", at)
	require.NoError(t, err)
	require.True(t, changed)

	// set at most once
	changed, err = s.SetMigrated(ctx, "P", "OTHER", at.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, changed)

	// progress after settlement is ignored
	require.NoError(t, s.SaveProgress(ctx, "P", Progress{State: StateMetadataCreated}))
	// re-tracking keeps the settlement
	require.NoError(t, s.Upsert(ctx, FundData{BondingCurvePool: "P"}))

	got, _ = s.Get(ctx, "P")
	require.Equal(t, "D", got.DammV2Pool)
	require.Equal(t, at, *got.MigratedAt)
	require.Equal(t, StateSettled, got.State)
	require.Equal(t, "M", got.BaseMint)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, FundData{BondingCurvePool: "P"}))

	got, _ := s.Get(ctx, "P")
	got.DammV2Pool = "mutated"

	again, _ := s.Get(ctx, "P")
	require.Empty(t, again.DammV2Pool)
}

func TestMemoryStoreUnknownPool(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.ErrorIs(t, s.SaveProgress(ctx, "X", Progress{}), ErrNotFound)
	_, err := s.SetMigrated(ctx, "X", "D", time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/krazyTry/meteora-graduator/internal/mirror/mirrortest"
)

func TestStoreContract(t *testing.T) {
	dsn := os.Getenv("GRADUATOR_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("GRADUATOR_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close(ctx)
	require.NoError(t, store.EnsureSchema(ctx))

	prefix := fmt.Sprintf("pgtest-%d-", time.Now().UnixNano())
	defer store.pool.Exec(ctx, `DELETE FROM fund_data WHERE bonding_curve_pool LIKE $1`, prefix+"%")

	mirrortest.Run(t, store, prefix)
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

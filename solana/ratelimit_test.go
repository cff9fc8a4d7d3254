package solana

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"github.com/krazyTry/meteora-graduator/internal/chaintest"
)

func TestNewLimitedRPCDisabled(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	require.Same(t, fake, NewLimitedRPC(fake, 0, 10))
}

func TestLimitedRPCHonoursContext(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	limited := NewLimitedRPC(fake, 0.001, 1)

	// the burst token goes to the first call
	_, err := limited.GetSlot(context.Background(), rpc.CommitmentConfirmed)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.GetSlot(ctx, rpc.CommitmentConfirmed)
	require.Error(t, err)
}

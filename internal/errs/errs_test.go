package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{nil, ""},
		{errors.New("boom"), CodeInternal},
		{&PoolMigratedError{Pool: "p"}, CodePoolMigrated},
		{fmt.Errorf("wrapped: %w", &NoClaimableFeesError{Pool: "p"}), CodeNoClaimableFees},
		{&ChainReadError{Address: "a", Op: "getPool", Err: ErrPoolNotFound}, CodeChainRead},
		{&TransactionFailedError{Step: "swap", Err: errors.New("x")}, CodeTransactionFailed},
	}
	for _, tc := range cases {
		require.Equal(t, tc.code, CodeOf(tc.err))
	}
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(&ChainReadError{Address: "a", Op: "getPool", Err: errors.New("timeout")}))
	require.False(t, IsRetryable(&ChainReadError{Address: "a", Op: "getPool", Err: ErrPoolNotFound}))
	require.True(t, IsRetryable(&TransactionFailedError{Step: "migrate", Err: errors.New("blockhash expired")}))
	require.False(t, IsRetryable(&PoolMigratedError{Pool: "p"}))
	require.False(t, IsRetryable(&InvalidAddressError{Input: "zz"}))
	require.False(t, IsRetryable(context.Canceled))
}

func TestMessages(t *testing.T) {
	require.Equal(t, "pool P already migrated", (&PoolMigratedError{Pool: "P"}).Error())
	require.Equal(t, "no claimable fees for pool P", (&NoClaimableFeesError{Pool: "P"}).Error())
	require.Equal(t, "claim transaction failed: boom", (&TransactionFailedError{Step: "claim", Err: errors.New("boom")}).Error())

	err := fmt.Errorf("ctx: %w", &ChainReadError{Address: "A", Op: "getConfig", Err: ErrPoolNotFound})
	require.ErrorIs(t, err, ErrPoolNotFound)
}

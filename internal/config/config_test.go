package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, rpc.MainNetBeta_RPC, cfg.RPCURL)
	require.Equal(t, rpc.CommitmentConfirmed, cfg.Commitment)
	require.Equal(t, "memory", cfg.Mirror)
	require.Equal(t, "local", cfg.Lease)
	require.Equal(t, time.Minute, cfg.SweepInterval)
	require.Equal(t, 10, cfg.MaxAttempts)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "graduator.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
rpc: http://file:8899
mirror: postgres
pg-dsn: postgres://file
max-attempts: 4
static-prices:
  - So11111111111111111111111111111111111111112=150
`), 0o600))

	t.Setenv("GRADUATOR_PG_DSN", "postgres://env")
	t.Setenv("GRADUATOR_SWEEP_INTERVAL", "15s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Int("max-attempts", 0, "")
	require.NoError(t, flags.Parse([]string{"--rpc", "http://flag:8899"}))

	cfg, err := Load(file, flags)
	require.NoError(t, err)
	require.Equal(t, "http://flag:8899", cfg.RPCURL)
	require.Equal(t, "postgres", cfg.Mirror)
	require.Equal(t, "postgres://env", cfg.PGDSN)
	require.Equal(t, 15*time.Second, cfg.SweepInterval)
	// an unset flag does not shadow the file
	require.Equal(t, 4, cfg.MaxAttempts)
	require.Equal(t, []string{"So11111111111111111111111111111111111111112=150"}, cfg.StaticPrices)
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("GRADUATOR_MIRROR", "sqlite")
	_, err := Load("", nil)
	require.ErrorContains(t, err, "mirror")

	t.Setenv("GRADUATOR_MIRROR", "memory")
	t.Setenv("GRADUATOR_LEASE", "redis")
	_, err = Load("", nil)
	require.ErrorContains(t, err, "redis-addr")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestKey(t *testing.T) {
	key, err := Key("")
	require.NoError(t, err)
	require.Nil(t, key)

	wallet := solana.NewWallet()
	key, err = Key(wallet.PrivateKey.String())
	require.NoError(t, err)
	require.Equal(t, wallet.PublicKey(), key.PublicKey())

	_, err = Key("not base58 !!")
	require.Error(t, err)
}

func TestPrices(t *testing.T) {
	prices, err := Prices([]string{solana.WrappedSol.String() + "= 150.25"})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("150.25").Equal(prices[solana.WrappedSol]))

	_, err = Prices([]string{"150"})
	require.Error(t, err)
}

// chdir stands in for testing.T.Chdir (Go 1.24+): it changes the working
// directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

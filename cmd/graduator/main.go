package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	dbc "github.com/krazyTry/meteora-graduator/dynamic_bonding_curve"
	"github.com/krazyTry/meteora-graduator/internal/service"
	"github.com/krazyTry/meteora-graduator/internal/trade"
)

// errFailed is returned after a failure envelope was printed.
var errFailed = errors.New("operation failed")

func main() {
	root := &cobra.Command{
		Use:           "graduator",
		Short:         "Meteora DBC graduation and fee settlement engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("rpc", "", "Solana RPC URL")
	pf.String("ws", "", "Solana websocket URL, enables subscription based confirmation")
	pf.String("commitment", "", "commitment level (processed, confirmed, finalized)")
	pf.Float64("rpc-rps", 0, "RPC requests per second")
	pf.String("payer-key", "", "migration payer key (base58 or keygen file)")
	pf.String("creator-key", "", "pool creator key used for creator fee claims")
	pf.String("partner-key", "", "fee claimer key used for partner fee claims")
	pf.String("trader-key", "", "swap signer key, defaults to the payer")
	pf.String("mirror", "", "mirror backend (memory, postgres, mongo)")
	pf.String("pg-dsn", "", "Postgres DSN")
	pf.String("mongo-uri", "", "MongoDB URI")
	pf.String("redis-addr", "", "Redis address for reference prices and leases")
	pf.Uint64("compute-unit-price", 0, "priority fee in micro-lamports per compute unit")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the migration scheduler and metrics server",
		Args:  cobra.NoArgs,
		RunE:  runScheduler,
	}
	runCmd.Flags().Duration("sweep-interval", 0, "time between sweeps")
	runCmd.Flags().String("metrics-addr", "", "metrics listen address, empty disables")
	runCmd.Flags().String("lease", "", "per-pool lease (local, redis)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one migration sweep",
		Args:  cobra.NoArgs,
		RunE: envelopeCmd(func(ctx context.Context, a *app, _ []string) (service.Envelope, error) {
			return a.engine.RunMigrationSweep(ctx), nil
		}),
	}

	poolCmd := &cobra.Command{
		Use:   "pool <address>",
		Short: "Show price, market cap and curve progress of a pool",
		Args:  cobra.ExactArgs(1),
		RunE: envelopeCmd(func(ctx context.Context, a *app, args []string) (service.Envelope, error) {
			return a.engine.GetPoolInfo(ctx, args[0]), nil
		}),
	}

	poolsCmd := &cobra.Command{
		Use:   "pools <address>...",
		Short: "Show many pools; invalid entries are reported per item",
		Args:  cobra.MinimumNArgs(1),
		RunE: envelopeCmd(func(ctx context.Context, a *app, args []string) (service.Envelope, error) {
			return a.engine.GetPoolsInfo(ctx, args), nil
		}),
	}

	marketCapCmd := &cobra.Command{
		Use:   "market-cap <address>",
		Short: "Show the USD market cap of a pool",
		Args:  cobra.ExactArgs(1),
		RunE: envelopeCmd(func(ctx context.Context, a *app, args []string) (service.Envelope, error) {
			return a.engine.GetMarketCap(ctx, args[0]), nil
		}),
	}

	buyCmd := &cobra.Command{
		Use:   "buy <pool> <quote-amount>",
		Short: "Swap quote atoms for base tokens",
		Args:  cobra.ExactArgs(2),
		RunE:  tradeCmd(dbc.TradeDirectionQuoteToBase),
	}
	buyCmd.Flags().Uint64("min-out", 0, "minimum base atoms out, 0 accepts any")

	sellCmd := &cobra.Command{
		Use:   "sell <pool> <base-amount>",
		Short: "Swap base atoms for the quote token",
		Args:  cobra.ExactArgs(2),
		RunE:  tradeCmd(dbc.TradeDirectionBaseToQuote),
	}
	sellCmd.Flags().Uint64("min-out", 0, "minimum quote atoms out, 0 accepts any")

	feesCmd := &cobra.Command{
		Use:   "fees <creator-or-partner>",
		Short: "List claimable trading fees",
		Args:  cobra.ExactArgs(1),
		RunE: envelopeCmd(func(ctx context.Context, a *app, args []string) (service.Envelope, error) {
			return a.engine.GetClaimableFees(ctx, args[0]), nil
		}),
	}

	claimCreatorCmd := &cobra.Command{
		Use:   "claim-creator <pool>",
		Short: "Claim the creator's trading fees of a pool",
		Args:  cobra.ExactArgs(1),
		RunE: envelopeCmd(func(ctx context.Context, a *app, args []string) (service.Envelope, error) {
			return a.engine.ClaimCreatorFee(ctx, args[0]), nil
		}),
	}

	claimPartnerCmd := &cobra.Command{
		Use:   "claim-partner <pool>",
		Short: "Claim the partner's trading fees of a pool",
		Args:  cobra.ExactArgs(1),
		RunE: envelopeCmd(func(ctx context.Context, a *app, args []string) (service.Envelope, error) {
			return a.engine.ClaimPartnerFee(ctx, args[0]), nil
		}),
	}

	trackCmd := &cobra.Command{
		Use:   "track <pool> <base-mint>",
		Short: "Add a pool to the migration mirror",
		Args:  cobra.ExactArgs(2),
		RunE: envelopeCmd(func(ctx context.Context, a *app, args []string) (service.Envelope, error) {
			return a.engine.Track(ctx, args[0], args[1]), nil
		}),
	}

	root.AddCommand(runCmd, sweepCmd, poolCmd, poolsCmd, marketCapCmd, buyCmd, sellCmd,
		feesCmd, claimCreatorCmd, claimPartnerCmd, trackCmd)

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// envelopeCmd runs fn against a freshly wired app and prints its envelope.
func envelopeCmd(fn func(ctx context.Context, a *app, args []string) (service.Envelope, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		env, err := fn(ctx, a, args)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(env); err != nil {
			return err
		}
		if !env.Success {
			return errFailed
		}
		return nil
	}
}

func tradeCmd(direction dbc.TradeDirection) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("amount %q: %w", args[1], err)
		}
		minOut, _ := cmd.Flags().GetUint64("min-out")
		return envelopeCmd(func(ctx context.Context, a *app, args []string) (service.Envelope, error) {
			return a.engine.Trade(ctx, trade.Request{
				Pool:             args[0],
				Direction:        direction,
				AmountIn:         amount,
				MinimumAmountOut: minOut,
			}), nil
		})(cmd, args)
	}
}

func runScheduler(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.server != nil {
		go func() {
			if err := a.server.Start(); err != nil {
				a.log.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.server.Stop(shutdownCtx)
		}()
	}

	a.log.Info("scheduler start",
		zap.String("rpc", a.cfg.RPCURL),
		zap.String("mirror", a.cfg.Mirror),
		zap.String("lease", a.cfg.Lease),
		zap.Duration("sweep_interval", a.cfg.SweepInterval),
		zap.String("metrics_addr", a.cfg.MetricsAddr),
	)

	err = a.orchestrator.Run(ctx, a.cfg.SweepInterval)
	if errors.Is(err, context.Canceled) {
		a.log.Info("scheduler stopped")
		return nil
	}
	return err
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

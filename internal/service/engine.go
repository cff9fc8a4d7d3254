// Package service exposes the engine's operations to callers such as the CLI,
// HTTP handlers and schedulers. Every operation returns an Envelope; errors
// and panics never cross the boundary.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/krazyTry/meteora-graduator/internal/errs"
	"github.com/krazyTry/meteora-graduator/internal/fees"
	"github.com/krazyTry/meteora-graduator/internal/migration"
	"github.com/krazyTry/meteora-graduator/internal/pricing"
	"github.com/krazyTry/meteora-graduator/internal/trade"
)

// Envelope is the result of one operation. Error is a stable machine code from
// the errs package; Message is human readable.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// PoolInfo is one item of a GetPoolsInfo result.
type PoolInfo struct {
	Address string             `json:"address"`
	Success bool               `json:"success"`
	Data    *pricing.Valuation `json:"data,omitempty"`
	Error   string             `json:"error,omitempty"`
	Message string             `json:"message,omitempty"`
}

type MarketCap struct {
	Pool         string          `json:"pool"`
	MarketCapUSD decimal.Decimal `json:"marketCapUsd"`
}

type Oracle interface {
	Quote(ctx context.Context, address solana.PublicKey) (*pricing.Valuation, error)
	MarketCapUSD(ctx context.Context, address solana.PublicKey) (decimal.Decimal, error)
}

type Trader interface {
	Buy(ctx context.Context, pool string, quoteAmountIn uint64) (*trade.Result, error)
	Sell(ctx context.Context, pool string, baseAmountIn uint64) (*trade.Result, error)
	Trade(ctx context.Context, req trade.Request) (*trade.Result, error)
}

type Migrator interface {
	Sweep(ctx context.Context) (*migration.SweepReport, error)
	Track(ctx context.Context, pool, baseMint string) error
}

type FeeSettler interface {
	GetClaimableFees(ctx context.Context, address string) ([]fees.FeeRecord, error)
	ClaimCreatorFee(ctx context.Context, pool string) (*fees.ClaimResult, error)
	ClaimPartnerFee(ctx context.Context, pool string) (*fees.ClaimResult, error)
}

// Components are the engine's collaborators. All are required.
type Components struct {
	Oracle   Oracle
	Trader   Trader
	Migrator Migrator
	Fees     FeeSettler
}

type Engine struct {
	Components
	log *zap.Logger
	// batchConcurrency bounds concurrent pool reads in GetPoolsInfo.
	batchConcurrency int
}

func New(c Components, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Components: c, log: log, batchConcurrency: 16}
}

func success(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func failure(err error) Envelope {
	return Envelope{Error: errs.CodeOf(err), Message: err.Error()}
}

// call runs fn and converts its result into an envelope.
func (e *Engine) call(op string, fn func() (any, error)) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("operation panicked", zap.String("op", op), zap.Any("panic", r), zap.Stack("stack"))
			env = Envelope{Error: errs.CodeInternal, Message: fmt.Sprintf("%s: internal error", op)}
		}
	}()
	data, err := fn()
	if err != nil {
		e.log.Warn("operation failed",
			zap.String("op", op),
			zap.String("code", errs.CodeOf(err)),
			zap.Bool("retryable", errs.IsRetryable(err)),
			zap.Error(err))
		return failure(err)
	}
	return success(data)
}

func parseAddress(address string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, &errs.InvalidAddressError{Input: address, Err: err}
	}
	return key, nil
}

// GetPoolInfo returns the valuation and curve progress of one pool.
func (e *Engine) GetPoolInfo(ctx context.Context, address string) Envelope {
	return e.call("getPoolInfo", func() (any, error) {
		key, err := parseAddress(address)
		if err != nil {
			return nil, err
		}
		return e.Oracle.Quote(ctx, key)
	})
}

// GetPoolsInfo values every address independently. The result has one item per
// input, in input order; a bad item never fails the batch.
func (e *Engine) GetPoolsInfo(ctx context.Context, addresses []string) Envelope {
	return e.call("getPoolsInfo", func() (any, error) {
		items := make([]PoolInfo, len(addresses))
		sem := make(chan struct{}, e.batchConcurrency)
		var wg sync.WaitGroup
		for i, address := range addresses {
			items[i].Address = address
			key, err := parseAddress(address)
			if err != nil {
				items[i].Error, items[i].Message = errs.CodeOf(err), err.Error()
				continue
			}
			wg.Add(1)
			go func(item *PoolInfo, key solana.PublicKey) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				v, err := e.Oracle.Quote(ctx, key)
				if err != nil {
					item.Error, item.Message = errs.CodeOf(err), err.Error()
					return
				}
				item.Success, item.Data = true, v
			}(&items[i], key)
		}
		wg.Wait()
		return items, nil
	})
}

// GetMarketCap returns the USD market cap of a pool, zero when no reference
// price is available.
func (e *Engine) GetMarketCap(ctx context.Context, address string) Envelope {
	return e.call("getMarketCap", func() (any, error) {
		key, err := parseAddress(address)
		if err != nil {
			return nil, err
		}
		mc, err := e.Oracle.MarketCapUSD(ctx, key)
		if err != nil {
			return nil, err
		}
		return MarketCap{Pool: address, MarketCapUSD: mc}, nil
	})
}

func (e *Engine) Buy(ctx context.Context, pool string, quoteAmountIn uint64) Envelope {
	return e.call("buy", func() (any, error) {
		return e.Trader.Buy(ctx, pool, quoteAmountIn)
	})
}

func (e *Engine) Sell(ctx context.Context, pool string, baseAmountIn uint64) Envelope {
	return e.call("sell", func() (any, error) {
		return e.Trader.Sell(ctx, pool, baseAmountIn)
	})
}

// Trade submits a swap with an explicit direction and minimum output.
func (e *Engine) Trade(ctx context.Context, req trade.Request) Envelope {
	return e.call("trade", func() (any, error) {
		return e.Trader.Trade(ctx, req)
	})
}

// RunMigrationSweep runs one migration pass. Per-pool failures are reported in
// the sweep report and do not fail the envelope.
func (e *Engine) RunMigrationSweep(ctx context.Context) Envelope {
	return e.call("runMigrationSweep", func() (any, error) {
		return e.Migrator.Sweep(ctx)
	})
}

// Track adds a pool to the migration mirror.
func (e *Engine) Track(ctx context.Context, pool, baseMint string) Envelope {
	return e.call("track", func() (any, error) {
		if _, err := parseAddress(pool); err != nil {
			return nil, err
		}
		if _, err := parseAddress(baseMint); err != nil {
			return nil, err
		}
		if err := e.Migrator.Track(ctx, pool, baseMint); err != nil {
			return nil, err
		}
		return map[string]string{"pool": pool, "baseMint": baseMint}, nil
	})
}

func (e *Engine) GetClaimableFees(ctx context.Context, address string) Envelope {
	return e.call("getClaimableFees", func() (any, error) {
		records, err := e.Fees.GetClaimableFees(ctx, address)
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []fees.FeeRecord{}
		}
		return records, nil
	})
}

func (e *Engine) ClaimCreatorFee(ctx context.Context, pool string) Envelope {
	return e.call("claimCreatorFee", func() (any, error) {
		return e.Fees.ClaimCreatorFee(ctx, pool)
	})
}

func (e *Engine) ClaimPartnerFee(ctx context.Context, pool string) Envelope {
	return e.call("claimPartnerFee", func() (any, error) {
		return e.Fees.ClaimPartnerFee(ctx, pool)
	})
}

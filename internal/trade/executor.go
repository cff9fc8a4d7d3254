// Package trade submits buy and sell swaps against bonding curve pools.
package trade

import (
	"context"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	dbc "github.com/krazyTry/meteora-graduator/dynamic_bonding_curve"
	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
	"github.com/krazyTry/meteora-graduator/internal/curve"
	"github.com/krazyTry/meteora-graduator/internal/errs"
	"github.com/krazyTry/meteora-graduator/internal/metrics"
	"github.com/krazyTry/meteora-graduator/internal/pricing"
	solanago "github.com/krazyTry/meteora-graduator/solana"
)

const stepSwap = "swap"

// Chain is the read side the executor depends on.
type Chain interface {
	GetPool(ctx context.Context, address solana.PublicKey) (*curve.PoolState, error)
	GetConfig(ctx context.Context, address solana.PublicKey) (*dbc.PoolConfig, error)
	TokenBalance(ctx context.Context, owner, mint, tokenProgram solana.PublicKey) (uint64, error)
	CurrentPoint(ctx context.Context, activationType dbc.ActivationType) (*big.Int, error)
}

// Sender submits and confirms transactions.
type Sender interface {
	Send(ctx context.Context, instructions []solana.Instruction, payer solana.PrivateKey, signers ...solana.PrivateKey) (*solanago.Receipt, error)
}

type Request struct {
	Pool      string
	Direction dbc.TradeDirection
	AmountIn  uint64
	// MinimumAmountOut of zero accepts any output.
	MinimumAmountOut uint64
}

type Result struct {
	Pool         string `json:"pool"`
	Direction    string `json:"direction"`
	Signature    string `json:"signature"`
	AmountIn     uint64 `json:"amountIn"`
	EstimatedOut uint64 `json:"estimatedOut"`
	// ActualOut is read from the confirmed transaction's balance changes; nil
	// when the transaction metadata was unavailable.
	ActualOut *uint64 `json:"actualOut,omitempty"`
}

type Executor struct {
	chain   Chain
	sender  Sender
	trader  solana.PrivateKey
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewExecutor(chain Chain, sender Sender, trader solana.PrivateKey, log *zap.Logger, m *metrics.Metrics) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{chain: chain, sender: sender, trader: trader, log: log, metrics: m}
}

// Buy swaps quoteAmountIn quote atoms for base tokens.
func (e *Executor) Buy(ctx context.Context, pool string, quoteAmountIn uint64) (*Result, error) {
	return e.Trade(ctx, Request{Pool: pool, Direction: dbc.TradeDirectionQuoteToBase, AmountIn: quoteAmountIn})
}

// Sell swaps baseAmountIn base atoms for the quote token.
func (e *Executor) Sell(ctx context.Context, pool string, baseAmountIn uint64) (*Result, error) {
	return e.Trade(ctx, Request{Pool: pool, Direction: dbc.TradeDirectionBaseToQuote, AmountIn: baseAmountIn})
}

func (e *Executor) Trade(ctx context.Context, req Request) (*Result, error) {
	poolAddress, err := solana.PublicKeyFromBase58(req.Pool)
	if err != nil {
		return nil, &errs.InvalidAddressError{Input: req.Pool, Err: err}
	}
	if req.AmountIn == 0 {
		return nil, &errs.InvalidInputError{Field: "amount", Reason: "must be greater than zero"}
	}
	if req.Direction != dbc.TradeDirectionBaseToQuote && req.Direction != dbc.TradeDirectionQuoteToBase {
		return nil, &errs.InvalidInputError{Field: "direction", Reason: "unknown trade direction"}
	}
	if len(e.trader) == 0 {
		return nil, &errs.MissingSignerError{Role: "trader"}
	}
	owner := e.trader.PublicKey()

	state, err := e.chain.GetPool(ctx, poolAddress)
	if err != nil {
		return nil, err
	}
	if state.Pool.Migrated() {
		return nil, &errs.PoolMigratedError{Pool: req.Pool}
	}
	config, err := e.chain.GetConfig(ctx, state.Pool.Config)
	if err != nil {
		return nil, err
	}

	if req.Direction == dbc.TradeDirectionBaseToQuote {
		baseProgram := helpers.GetTokenProgram(dbc.TokenType(state.Pool.PoolType))
		balance, err := e.chain.TokenBalance(ctx, owner, state.Pool.BaseMint, baseProgram)
		if err != nil {
			return nil, err
		}
		if balance < req.AmountIn {
			return nil, &errs.InsufficientBalanceError{Mint: state.Pool.BaseMint.String(), Required: req.AmountIn, Available: balance}
		}
	}

	var currentPoint *big.Int
	if dbc.RateLimiterConfigured(config) {
		if currentPoint, err = e.chain.CurrentPoint(ctx, dbc.ActivationType(config.ActivationType)); err != nil {
			return nil, &errs.ChainReadError{Address: req.Pool, Op: "currentPoint", Err: err}
		}
	}

	pre, ix, post, err := dbc.BuildSwap(dbc.SwapParams{
		Pool:             poolAddress,
		PoolState:        state.Pool,
		PoolConfigState:  config,
		Owner:            owner,
		AmountIn:         req.AmountIn,
		MinimumAmountOut: req.MinimumAmountOut,
		Direction:        req.Direction,
		CurrentPoint:     currentPoint,
	})
	if err != nil {
		return nil, &errs.InvalidInputError{Field: "swap", Reason: err.Error()}
	}

	result := &Result{
		Pool:         req.Pool,
		Direction:    req.Direction.String(),
		AmountIn:     req.AmountIn,
		EstimatedOut: pricing.EstimateOut(state.Pool, config, req.Direction, req.AmountIn),
	}

	instructions := append(append(pre, ix), post...)
	receipt, err := e.sender.Send(ctx, instructions, e.trader)
	e.metrics.Transaction(stepSwap, err)
	if err != nil {
		txErr := &errs.TransactionFailedError{Step: stepSwap, Err: err}
		if receipt != nil {
			txErr.Signature = receipt.Signature.String()
		}
		e.log.Warn("swap failed", zap.String("pool", req.Pool), zap.Stringer("direction", req.Direction), zap.Error(err))
		return nil, txErr
	}
	result.Signature = receipt.Signature.String()

	outputMint := config.QuoteMint
	if req.Direction == dbc.TradeDirectionQuoteToBase {
		outputMint = state.Pool.BaseMint
	}
	result.ActualOut = actualOut(receipt, owner, outputMint)

	e.log.Info("swap confirmed",
		zap.String("pool", req.Pool),
		zap.Stringer("direction", req.Direction),
		zap.Uint64("amountIn", req.AmountIn),
		zap.Uint64("estimatedOut", result.EstimatedOut),
		zap.String("signature", result.Signature),
	)
	return result, nil
}

// actualOut reads what the owner received. Native SOL output lands as lamports
// because the WSOL account is closed in the same transaction.
func actualOut(receipt *solanago.Receipt, owner, outputMint solana.PublicKey) *uint64 {
	if receipt == nil || receipt.Meta == nil {
		return nil
	}
	delta, ok := solanago.TokenBalanceDelta(receipt.Meta, owner, outputMint)
	if (!ok || delta.Sign() == 0) && helpers.IsNativeSol(outputMint) {
		delta, ok = solanago.LamportDelta(receipt.Meta)
	}
	if !ok || delta.Sign() < 0 || !delta.IsUint64() {
		return nil
	}
	out := delta.Uint64()
	return &out
}

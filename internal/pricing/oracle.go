package pricing

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	dbc "github.com/krazyTry/meteora-graduator/dynamic_bonding_curve"
	"github.com/krazyTry/meteora-graduator/internal/curve"
	"github.com/krazyTry/meteora-graduator/internal/errs"
	"github.com/krazyTry/meteora-graduator/internal/metrics"
	solanago "github.com/krazyTry/meteora-graduator/solana"
)

// ChainReader is the part of curve.Reader the oracle uses.
type ChainReader interface {
	GetPool(ctx context.Context, address solana.PublicKey) (*curve.PoolState, error)
	GetConfig(ctx context.Context, address solana.PublicKey) (*dbc.PoolConfig, error)
	GetMints(ctx context.Context, mints ...solana.PublicKey) ([]*solanago.Token, error)
}

// Valuation is a point-in-time pricing of one pool. USD fields are zero when
// no reference price is available.
type Valuation struct {
	Pool               solana.PublicKey `json:"pool"`
	Config             solana.PublicKey `json:"config"`
	Creator            solana.PublicKey `json:"creator"`
	BaseMint           solana.PublicKey `json:"baseMint"`
	QuoteMint          solana.PublicKey `json:"quoteMint"`
	SqrtPrice          string           `json:"sqrtPrice"`
	Price              decimal.Decimal  `json:"price"`
	QuoteUSD           decimal.Decimal  `json:"quoteUsd"`
	PriceUSD           decimal.Decimal  `json:"priceUsd"`
	TotalSupply        decimal.Decimal  `json:"totalSupply"`
	MarketCapUSD       decimal.Decimal  `json:"marketCapUsd"`
	CurveProgress      decimal.Decimal  `json:"curveProgress"`
	MigrationProgress  uint8            `json:"migrationProgress"`
	IsMigrated         bool             `json:"isMigrated"`
	ReferenceAvailable bool             `json:"referenceAvailable"`
}

type Oracle struct {
	chain   ChainReader
	source  ReferencePriceSource
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewOracle(chain ChainReader, source ReferencePriceSource, log *zap.Logger, m *metrics.Metrics) *Oracle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Oracle{chain: chain, source: source, log: log, metrics: m}
}

// Quote reads the pool and values it.
func (o *Oracle) Quote(ctx context.Context, address solana.PublicKey) (*Valuation, error) {
	state, err := o.chain.GetPool(ctx, address)
	if err != nil {
		return nil, err
	}
	return o.Value(ctx, state)
}

// Value prices an already read pool. Chain read failures are returned; a missing
// reference price only zeroes the USD fields.
func (o *Oracle) Value(ctx context.Context, state *curve.PoolState) (*Valuation, error) {
	pool := state.Pool
	config, err := o.chain.GetConfig(ctx, pool.Config)
	if err != nil {
		return nil, err
	}
	mints, err := o.chain.GetMints(ctx, pool.BaseMint, config.QuoteMint)
	if err != nil {
		return nil, err
	}
	base, quote := mints[0], mints[1]

	sqrt := pool.SqrtPrice.BigInt()
	v := &Valuation{
		Pool:              state.Address,
		Config:            pool.Config,
		Creator:           pool.Creator,
		BaseMint:          pool.BaseMint,
		QuoteMint:         config.QuoteMint,
		SqrtPrice:         sqrt.String(),
		Price:             PriceFromSqrtPrice(sqrt, base.Decimals, quote.Decimals),
		TotalSupply:       base.UiSupply(),
		CurveProgress:     CurveProgress(pool, config),
		MigrationProgress: pool.MigrationProgress,
		IsMigrated:        pool.Migrated(),
		QuoteUSD:          decimal.Zero,
		PriceUSD:          decimal.Zero,
		MarketCapUSD:      decimal.Zero,
	}

	quoteUSD, err := o.referencePrice(ctx, config.QuoteMint)
	if err != nil {
		var missing *errs.MissingReferencePriceError
		if errors.As(err, &missing) {
			o.log.Debug("reference price missing", zap.Stringer("pool", state.Address), zap.Error(err))
		} else {
			o.log.Warn("reference price lookup failed", zap.Stringer("pool", state.Address), zap.Error(err))
		}
		o.metrics.ReferenceMiss()
		return v, nil
	}

	v.ReferenceAvailable = true
	v.QuoteUSD = quoteUSD
	v.PriceUSD = USDPrice(v.Price, quoteUSD)
	v.MarketCapUSD = MarketCap(v.PriceUSD, v.TotalSupply)
	return v, nil
}

func (o *Oracle) referencePrice(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error) {
	if o.source == nil {
		return decimal.Zero, &errs.MissingReferencePriceError{Mint: mint.String()}
	}
	price, err := o.source.ReferencePrice(ctx, mint)
	if errors.Is(err, ErrNoReferencePrice) {
		return decimal.Zero, &errs.MissingReferencePriceError{Mint: mint.String()}
	}
	return price, err
}

// MarketCapUSD returns only the USD market cap of a pool.
func (o *Oracle) MarketCapUSD(ctx context.Context, address solana.PublicKey) (decimal.Decimal, error) {
	v, err := o.Quote(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return v.MarketCapUSD, nil
}

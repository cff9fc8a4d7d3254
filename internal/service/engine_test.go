package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	dbc "github.com/krazyTry/meteora-graduator/dynamic_bonding_curve"
	"github.com/krazyTry/meteora-graduator/internal/chaintest"
	"github.com/krazyTry/meteora-graduator/internal/curve"
	"github.com/krazyTry/meteora-graduator/internal/errs"
	"github.com/krazyTry/meteora-graduator/internal/fees"
	"github.com/krazyTry/meteora-graduator/internal/migration"
	"github.com/krazyTry/meteora-graduator/internal/mirror"
	"github.com/krazyTry/meteora-graduator/internal/pricing"
	"github.com/krazyTry/meteora-graduator/internal/trade"
	solanago "github.com/krazyTry/meteora-graduator/solana"
)

type fixture struct {
	fake   *chaintest.FakeRPC
	market *chaintest.Market
	source *pricing.StaticSource
	store  *mirror.MemoryStore
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := chaintest.NewFakeRPC()
	m := chaintest.NewMarket(fake)
	reader := curve.NewReader(fake)
	sender := solanago.NewSender(fake, nil, solanago.SenderConfig{PollInterval: time.Millisecond}, nil)
	source := pricing.NewStaticSource(map[solana.PublicKey]decimal.Decimal{
		solana.WrappedSol: decimal.NewFromInt(150),
	})
	store := mirror.NewMemoryStore()
	payer := solana.NewWallet().PrivateKey

	return &fixture{
		fake:   fake,
		market: m,
		source: source,
		store:  store,
		engine: New(Components{
			Oracle:   pricing.NewOracle(reader, source, nil, nil),
			Trader:   trade.NewExecutor(reader, sender, solana.NewWallet().PrivateKey, nil, nil),
			Migrator: migration.NewOrchestrator(reader, store, sender, payer, migration.Config{}, nil, nil),
			Fees:     fees.NewService(reader, sender, m.Creator, m.Partner, nil, nil),
		}, nil),
	}
}

func TestGetPoolInfo(t *testing.T) {
	f := newFixture(t)
	env := f.engine.GetPoolInfo(context.Background(), f.market.Pool.String())
	require.True(t, env.Success, env.Message)
	require.Empty(t, env.Error)

	v, ok := env.Data.(*pricing.Valuation)
	require.True(t, ok)
	require.Equal(t, f.market.Pool, v.Pool)
	require.True(t, decimal.NewFromInt(150_000_000).Equal(v.MarketCapUSD))
	require.False(t, v.CurveProgress.IsZero())

	env = f.engine.GetPoolInfo(context.Background(), "not-a-key")
	require.False(t, env.Success)
	require.Equal(t, errs.CodeInvalidAddress, env.Error)
	require.NotEmpty(t, env.Message)
	require.Nil(t, env.Data)
}

func TestGetPoolsInfoMixed(t *testing.T) {
	f := newFixture(t)
	other := chaintest.NewMarket(f.fake)
	missing := solana.NewWallet().PublicKey().String()
	input := []string{f.market.Pool.String(), "garbage", missing, other.Pool.String()}

	env := f.engine.GetPoolsInfo(context.Background(), input)
	require.True(t, env.Success)
	items, ok := env.Data.([]PoolInfo)
	require.True(t, ok)
	require.Len(t, items, len(input))
	for i, item := range items {
		require.Equal(t, input[i], item.Address)
	}

	require.True(t, items[0].Success)
	require.Equal(t, f.market.Pool, items[0].Data.Pool)

	require.False(t, items[1].Success)
	require.Equal(t, errs.CodeInvalidAddress, items[1].Error)
	require.Nil(t, items[1].Data)

	require.False(t, items[2].Success)
	require.Equal(t, errs.CodeChainRead, items[2].Error)

	require.True(t, items[3].Success)
	require.Equal(t, other.Pool, items[3].Data.Pool)
}

func TestGetPoolsInfoEmpty(t *testing.T) {
	f := newFixture(t)
	env := f.engine.GetPoolsInfo(context.Background(), nil)
	require.True(t, env.Success)
	require.Empty(t, env.Data)
}

func TestGetMarketCapWithoutReferencePrice(t *testing.T) {
	f := newFixture(t)
	f.engine.Oracle = pricing.NewOracle(curve.NewReader(f.fake), pricing.NewStaticSource(nil), nil, nil)

	env := f.engine.GetMarketCap(context.Background(), f.market.Pool.String())
	require.True(t, env.Success, env.Message)
	mc := env.Data.(MarketCap)
	require.True(t, mc.MarketCapUSD.IsZero())

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"data":{"pool":"`+f.market.Pool.String()+`","marketCapUsd":"0"}}`, string(raw))
}

func TestBuyMigratedPool(t *testing.T) {
	f := newFixture(t)
	f.fake.UpdatePool(f.market.Pool, func(p *dbc.VirtualPool) {
		p.IsMigrated = 1
		p.MigrationProgress = uint8(dbc.MigrationProgressCreatedPool)
	})

	env := f.engine.Buy(context.Background(), f.market.Pool.String(), 1_000)
	require.False(t, env.Success)
	require.Equal(t, errs.CodePoolMigrated, env.Error)
	require.Zero(t, f.fake.SendCount())
}

func TestBuy(t *testing.T) {
	f := newFixture(t)
	env := f.engine.Buy(context.Background(), f.market.Pool.String(), 1_000_000)
	require.True(t, env.Success, env.Message)
	res := env.Data.(*trade.Result)
	require.NotEmpty(t, res.Signature)
	require.EqualValues(t, 990_000, res.EstimatedOut)
}

func TestSellWithoutBalance(t *testing.T) {
	f := newFixture(t)
	env := f.engine.Sell(context.Background(), f.market.Pool.String(), 10)
	require.False(t, env.Success)
	require.Equal(t, errs.CodeInsufficientBalance, env.Error)
}

func TestTrackAndSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	env := f.engine.Track(ctx, f.market.Pool.String(), "nope")
	require.Equal(t, errs.CodeInvalidAddress, env.Error)

	env = f.engine.Track(ctx, f.market.Pool.String(), f.market.BaseMint.String())
	require.True(t, env.Success, env.Message)

	env = f.engine.RunMigrationSweep(ctx)
	require.True(t, env.Success, env.Message)
	report := env.Data.(*migration.SweepReport)
	require.Len(t, report.Pools, 1)
	require.Equal(t, migration.OutcomeWaiting, report.Pools[0].Outcome)
}

func TestClaimableFeesEnvelope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	env := f.engine.GetClaimableFees(ctx, f.market.Creator.PublicKey().String())
	require.True(t, env.Success)
	require.Equal(t, []fees.FeeRecord{}, env.Data)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"data":[]}`, string(raw))

	f.fake.UpdatePool(f.market.Pool, func(p *dbc.VirtualPool) {
		p.CreatorQuoteFee = 1_000
	})

	env = f.engine.ClaimCreatorFee(ctx, f.market.Pool.String())
	require.True(t, env.Success, env.Message)
	require.EqualValues(t, 1_000, env.Data.(*fees.ClaimResult).QuoteClaimed)

	env = f.engine.ClaimPartnerFee(ctx, solana.NewWallet().PublicKey().String())
	require.False(t, env.Success)
	require.Equal(t, errs.CodeNoClaimableFees, env.Error)
}

type panicky struct{ Trader }

func (panicky) Buy(context.Context, string, uint64) (*trade.Result, error) {
	panic("boom")
}

func TestPanicBecomesEnvelope(t *testing.T) {
	f := newFixture(t)
	f.engine.Trader = panicky{}
	env := f.engine.Buy(context.Background(), f.market.Pool.String(), 1)
	require.False(t, env.Success)
	require.Equal(t, errs.CodeInternal, env.Error)
}

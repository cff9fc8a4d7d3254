package pricing

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	dbc "github.com/krazyTry/meteora-graduator/dynamic_bonding_curve"
	"github.com/krazyTry/meteora-graduator/internal/chaintest"
	"github.com/krazyTry/meteora-graduator/internal/curve"
	"github.com/krazyTry/meteora-graduator/u128"
)

func q64(v int64) *big.Int {
	return new(big.Int).Lsh(big.NewInt(v), 64)
}

func TestPriceFromSqrtPrice(t *testing.T) {
	cases := []struct {
		name      string
		sqrt      *big.Int
		base      uint8
		quote     uint8
		wantPrice string
	}{
		{"unit", q64(1), 9, 9, "1"},
		{"doubled sqrt", q64(2), 6, 6, "4"},
		{"base fewer decimals", q64(1), 6, 9, "0.001"},
		{"base more decimals", q64(1), 9, 6, "1000"},
		{"half", new(big.Int).Rsh(q64(1), 1), 0, 0, "0.25"},
		{"zero", big.NewInt(0), 6, 9, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PriceFromSqrtPrice(tc.sqrt, tc.base, tc.quote)
			require.True(t, decimal.RequireFromString(tc.wantPrice).Equal(got), "got %s", got)
		})
	}
}

func TestPriceFromSqrtPriceTinyPrices(t *testing.T) {
	// sqrt price of 1 is the smallest representable step
	got := PriceFromSqrtPrice(big.NewInt(1), 6, 9)
	require.True(t, got.IsZero() || got.IsPositive())
	require.LessOrEqual(t, -got.Exponent(), int32(PriceScale))

	got = PriceFromSqrtPrice(big.NewInt(1_000_000), 9, 6)
	require.True(t, got.IsPositive(), "got %s", got)
}

func TestPriceFromSqrtPriceDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hi := rapid.Uint64().Draw(t, "hi")
		lo := rapid.Uint64().Draw(t, "lo")
		baseDec := rapid.Uint8Range(0, 12).Draw(t, "baseDecimals")
		quoteDec := rapid.Uint8Range(0, 12).Draw(t, "quoteDecimals")

		sqrt := new(big.Int).Lsh(new(big.Int).SetUint64(hi), 64)
		sqrt.Or(sqrt, new(big.Int).SetUint64(lo))

		a := PriceFromSqrtPrice(sqrt, baseDec, quoteDec)
		b := PriceFromSqrtPrice(new(big.Int).Set(sqrt), baseDec, quoteDec)
		if a.String() != b.String() {
			t.Fatalf("non deterministic: %s != %s", a, b)
		}
		if a.IsNegative() {
			t.Fatalf("negative price %s", a)
		}
	})
}

func TestPriceMonotonicInSqrtPrice(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Uint64Range(1, 1<<62).Draw(t, "x")
		d := rapid.Uint64Range(1, 1<<20).Draw(t, "d")
		lower := PriceFromSqrtPrice(new(big.Int).Lsh(new(big.Int).SetUint64(x), 32), 6, 9)
		upper := PriceFromSqrtPrice(new(big.Int).Lsh(new(big.Int).SetUint64(x+d), 32), 6, 9)
		if upper.LessThan(lower) {
			t.Fatalf("price decreased: %s < %s", upper, lower)
		}
	})
}

func TestUSDAndMarketCap(t *testing.T) {
	price := decimal.RequireFromString("0.001")
	usd := USDPrice(price, decimal.NewFromInt(150))
	require.True(t, decimal.RequireFromString("0.15").Equal(usd))
	require.True(t, decimal.NewFromInt(150_000_000).Equal(MarketCap(usd, decimal.NewFromInt(1_000_000_000))))
	require.True(t, MarketCap(USDPrice(price, decimal.Zero), decimal.NewFromInt(1_000)).IsZero())
}

func TestCurveProgress(t *testing.T) {
	config := &dbc.PoolConfig{MigrationQuoteThreshold: 100}
	require.True(t, decimal.RequireFromString("0.25").Equal(CurveProgress(&dbc.VirtualPool{QuoteReserve: 25}, config)))
	require.True(t, decimal.NewFromInt(1).Equal(CurveProgress(&dbc.VirtualPool{QuoteReserve: 250}, config)))
	require.True(t, CurveProgress(&dbc.VirtualPool{QuoteReserve: 25}, &dbc.PoolConfig{}).IsZero())
}

func TestEstimateOut(t *testing.T) {
	pool := &dbc.VirtualPool{SqrtPrice: u128.GenUint128FromString(q64(2).String())}
	config := &dbc.PoolConfig{}
	config.PoolFees.BaseFee.CliffFeeNumerator = 10_000_000 // 1%

	// raw price is 4 quote atoms per base atom
	require.EqualValues(t, 247, EstimateOut(pool, config, dbc.TradeDirectionQuoteToBase, 1000))
	require.EqualValues(t, 3960, EstimateOut(pool, config, dbc.TradeDirectionBaseToQuote, 1000))
	require.Zero(t, EstimateOut(pool, config, dbc.TradeDirectionBaseToQuote, 0))
}

func TestParsePrice(t *testing.T) {
	for raw, want := range map[string]string{
		"151.25":                    "151.25",
		" 151.25\n":                 "151.25",
		`"151.25"`:                  "151.25",
		`{"price":151.25}`:          "151.25",
		`{"price":"151.25","ts":1}`: "151.25",
	} {
		got, err := ParsePrice(raw)
		require.NoError(t, err, raw)
		require.True(t, decimal.RequireFromString(want).Equal(got), raw)
	}

	for _, raw := range []string{"", "0", "-1", `{"usd":1}`, `{"price":0}`} {
		_, err := ParsePrice(raw)
		require.ErrorIs(t, err, ErrNoReferencePrice, raw)
	}

	_, err := ParsePrice("not-a-number")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNoReferencePrice))
}

func newOracle(t *testing.T, source ReferencePriceSource) (*Oracle, *chaintest.Market) {
	t.Helper()
	fake := chaintest.NewFakeRPC()
	m := chaintest.NewMarket(fake)
	return NewOracle(curve.NewReader(fake), source, nil, nil), m
}

func TestOracleQuote(t *testing.T) {
	source := NewStaticSource(map[solana.PublicKey]decimal.Decimal{
		solana.WrappedSol: decimal.NewFromInt(150),
	})
	oracle, m := newOracle(t, source)

	v, err := oracle.Quote(context.Background(), m.Pool)
	require.NoError(t, err)
	require.True(t, v.ReferenceAvailable)
	require.True(t, decimal.RequireFromString("0.001").Equal(v.Price), v.Price.String())
	require.True(t, decimal.NewFromInt(1_000_000_000).Equal(v.TotalSupply))
	require.True(t, decimal.RequireFromString("0.15").Equal(v.PriceUSD))
	require.True(t, decimal.NewFromInt(150_000_000).Equal(v.MarketCapUSD))
	require.Equal(t, m.BaseMint, v.BaseMint)
	require.False(t, v.IsMigrated)
}

func TestOracleMissingReferencePrice(t *testing.T) {
	oracle, m := newOracle(t, NewStaticSource(nil))

	v, err := oracle.Quote(context.Background(), m.Pool)
	require.NoError(t, err)
	require.False(t, v.ReferenceAvailable)
	require.True(t, v.PriceUSD.IsZero())
	require.True(t, v.MarketCapUSD.IsZero())
	require.False(t, v.Price.IsZero())

	mc, err := oracle.MarketCapUSD(context.Background(), m.Pool)
	require.NoError(t, err)
	require.True(t, mc.IsZero())
}

type failingSource struct{}

func (failingSource) ReferencePrice(context.Context, solana.PublicKey) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("connection refused")
}

func TestOracleReferenceSourceDown(t *testing.T) {
	oracle, m := newOracle(t, failingSource{})
	v, err := oracle.Quote(context.Background(), m.Pool)
	require.NoError(t, err)
	require.True(t, v.MarketCapUSD.IsZero())
}

func TestOracleUnknownPool(t *testing.T) {
	oracle, _ := newOracle(t, nil)
	_, err := oracle.Quote(context.Background(), solana.NewWallet().PublicKey())
	require.Error(t, err)
}

func TestRedisSource(t *testing.T) {
	addr := os.Getenv("GRADUATOR_TEST_REDIS")
	if addr == "" {
		t.Skip("GRADUATOR_TEST_REDIS not set")
	}
	ctx := context.Background()
	src, err := NewRedisSource(RedisConfig{Address: addr, Prefix: "graduator-test:price:"}, nil)
	require.NoError(t, err)

	mint := solana.NewWallet().PublicKey()
	_, err = src.ReferencePrice(ctx, mint)
	require.ErrorIs(t, err, ErrNoReferencePrice)

	require.NoError(t, src.Client().Set(ctx, "graduator-test:price:"+mint.String(), `{"price":"142.5"}`, 0).Err())
	defer src.Client().Del(ctx, "graduator-test:price:"+mint.String())

	price, err := src.ReferencePrice(ctx, mint)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("142.5").Equal(price))
}

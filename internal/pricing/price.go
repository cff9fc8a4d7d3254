// Package pricing turns curve state into prices and USD valuations.
package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/krazyTry/meteora-graduator/decimal_math"
	dbc "github.com/krazyTry/meteora-graduator/dynamic_bonding_curve"
)

// PriceScale is the number of fractional digits kept by PriceFromSqrtPrice.
const PriceScale = 40

var q128 = decimal_math.Lsh(decimal.NewFromInt(1), 128)

// PriceFromSqrtPrice converts a Q64.64 sqrt price into quote units per base unit:
// sqrtPrice² / 2^128 × 10^(baseDecimals − quoteDecimals).
// The numerator and denominator are exact integers and a single rounded
// division is applied, so equal inputs always give equal outputs.
func PriceFromSqrtPrice(sqrtPrice *big.Int, baseDecimals, quoteDecimals uint8) decimal.Decimal {
	if sqrtPrice == nil || sqrtPrice.Sign() <= 0 {
		return decimal.Zero
	}
	num := decimal.NewFromBigInt(new(big.Int).Mul(sqrtPrice, sqrtPrice), 0)
	den := q128

	shift := int(baseDecimals) - int(quoteDecimals)
	if shift >= 0 {
		num = num.Mul(decimal_math.Pow10(shift))
	} else {
		den = den.Mul(decimal_math.Pow10(-shift))
	}
	return num.DivRound(den, PriceScale)
}

// USDPrice is price × quoteUSD.
func USDPrice(price, quoteUSD decimal.Decimal) decimal.Decimal {
	return price.Mul(quoteUSD)
}

// MarketCap is usdPrice × totalSupply, with supply in whole tokens.
func MarketCap(usdPrice, totalSupply decimal.Decimal) decimal.Decimal {
	return usdPrice.Mul(totalSupply)
}

// CurveProgress is the share of the migration quote threshold already raised,
// clamped to [0, 1].
func CurveProgress(pool *dbc.VirtualPool, config *dbc.PoolConfig) decimal.Decimal {
	if config.MigrationQuoteThreshold == 0 {
		return decimal.Zero
	}
	reserve := decimal.NewFromBigInt(new(big.Int).SetUint64(pool.QuoteReserve), 0)
	threshold := decimal.NewFromBigInt(new(big.Int).SetUint64(config.MigrationQuoteThreshold), 0)
	progress := reserve.DivRound(threshold, 6)
	if progress.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return progress
}

// EstimateOut approximates a swap's output in atoms at the current spot price,
// after the cliff base fee. It ignores price impact and dynamic fees, so it is an
// upper bound for the real output.
func EstimateOut(pool *dbc.VirtualPool, config *dbc.PoolConfig, direction dbc.TradeDirection, amountIn uint64) uint64 {
	sqrt := pool.SqrtPrice.BigInt()
	if amountIn == 0 || sqrt.Sign() == 0 {
		return 0
	}

	in := new(big.Int).SetUint64(amountIn)
	fee := new(big.Int).Mul(in, new(big.Int).SetUint64(config.PoolFees.BaseFee.CliffFeeNumerator))
	fee.Quo(fee, big.NewInt(dbc.FeeDenominator))
	in.Sub(in, fee)

	priceNum := new(big.Int).Mul(sqrt, sqrt)
	priceDen := new(big.Int).Lsh(big.NewInt(1), 128)

	out := new(big.Int)
	if direction == dbc.TradeDirectionQuoteToBase {
		out.Mul(in, priceDen).Quo(out, priceNum)
	} else {
		out.Mul(in, priceNum).Quo(out, priceDen)
	}
	if !out.IsUint64() {
		return ^uint64(0)
	}
	return out.Uint64()
}

package decimal_math

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Lsh returns x * 2^n on the integer part of x.
func Lsh(x decimal.Decimal, n uint) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).Lsh(x.BigInt(), n), 0)
}

// Pow10 is exact for any n, negative included.
func Pow10(n int) decimal.Decimal {
	return decimal.New(1, int32(n))
}

// FromAtoms converts a raw token amount into whole units.
func FromAtoms(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

package solana

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"

	"github.com/krazyTry/meteora-graduator/decimal_math"
)

// Token represents a Solana token with mint information and owner
type Token struct {
	token.Mint
	Address solana.PublicKey
	// Owner is the token program that owns the mint
	Owner solana.PublicKey
}

// UiSupply is the total supply scaled by the mint decimals.
func (t *Token) UiSupply() decimal.Decimal {
	return decimal_math.FromAtoms(new(big.Int).SetUint64(t.Supply), t.Decimals)
}

// TokenLayout provides methods for decoding token data
type TokenLayout struct {
}

// Decode reads the 82 byte mint layout; Token-2022 extensions after it are ignored.
func (l *TokenLayout) Decode(data []byte) (*Token, error) {
	mint := token.Mint{}

	if len(data) > token.MINT_SIZE {
		data = data[:token.MINT_SIZE]
	}
	if err := mint.Decode(data); err != nil {
		return nil, err
	}
	return &Token{Mint: mint}, nil
}

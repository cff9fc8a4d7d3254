package solana

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

func tokenBalanceSum(balances []rpc.TokenBalance, owner, mint solana.PublicKey) (*big.Int, bool) {
	sum := new(big.Int)
	found := false
	for _, b := range balances {
		if b.Owner == nil || !b.Owner.Equals(owner) || !b.Mint.Equals(mint) || b.UiTokenAmount == nil {
			continue
		}
		amount, ok := new(big.Int).SetString(b.UiTokenAmount.Amount, 10)
		if !ok {
			continue
		}
		sum.Add(sum, amount)
		found = true
	}
	return sum, found
}

// TokenBalanceDelta returns post minus pre token balance of owner for mint. The
// second result is false when the transaction touched no such account.
func TokenBalanceDelta(meta *rpc.TransactionMeta, owner, mint solana.PublicKey) (*big.Int, bool) {
	if meta == nil {
		return nil, false
	}
	pre, okPre := tokenBalanceSum(meta.PreTokenBalances, owner, mint)
	post, okPost := tokenBalanceSum(meta.PostTokenBalances, owner, mint)
	if !okPre && !okPost {
		return nil, false
	}
	return post.Sub(post, pre), true
}

// LamportDelta returns the fee payer's lamport change with the transaction fee
// added back.
func LamportDelta(meta *rpc.TransactionMeta) (*big.Int, bool) {
	if meta == nil || len(meta.PreBalances) == 0 || len(meta.PostBalances) == 0 {
		return nil, false
	}
	delta := new(big.Int).SetUint64(meta.PostBalances[0])
	delta.Sub(delta, new(big.Int).SetUint64(meta.PreBalances[0]))
	delta.Add(delta, new(big.Int).SetUint64(meta.Fee))
	return delta, true
}

package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// CurrentPoint returns the slot or the block time, depending on the pool's
// activation type (0 = slot, 1 = timestamp).
func CurrentPoint(ctx context.Context, rpcClient RPC, commitment rpc.CommitmentType, activationType uint8) (*big.Int, error) {
	currentSlot, err := rpcClient.GetSlot(ctx, commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	switch activationType {
	case 1:
		currentTime, err := rpcClient.GetBlockTime(ctx, currentSlot)
		if err != nil {
			return nil, fmt.Errorf("failed to get block time: %w", err)
		}
		if currentTime == nil {
			return nil, fmt.Errorf("block time unavailable for slot %d", currentSlot)
		}
		return big.NewInt(currentTime.Time().Unix()), nil
	case 0:
		return new(big.Int).SetUint64(currentSlot), nil
	default:
		return nil, fmt.Errorf("unknown activation type %d", activationType)
	}
}

// GetAccountInfo returns nil, nil when the account does not exist.
func GetAccountInfo(ctx context.Context, rpcClient RPC, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.Account, error) {
	out, err := rpcClient.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{Commitment: commitment, Encoding: solana.EncodingBase64})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return out.Value, nil
}

func GetMultipleAccountInfo(ctx context.Context, rpcClient RPC, accounts []solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetMultipleAccountsResult, error) {
	out, err := rpcClient.GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{Commitment: commitment, Encoding: solana.EncodingBase64})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Value) != len(accounts) {
		return nil, fmt.Errorf("getMultipleAccounts returned an unexpected number of accounts")
	}
	return out, nil
}

// GetMultipleToken decodes mint accounts; missing mints are nil entries.
func GetMultipleToken(ctx context.Context, rpcClient RPC, commitment rpc.CommitmentType, tokens ...solana.PublicKey) ([]*Token, error) {
	outs, err := GetMultipleAccountInfo(ctx, rpcClient, tokens, commitment)
	if err != nil {
		return nil, err
	}
	list := make([]*Token, len(outs.Value))
	for i, out := range outs.Value {
		if out == nil {
			continue
		}

		token, err := new(TokenLayout).Decode(out.Data.GetBinary())
		if err != nil {
			return nil, fmt.Errorf("decode mint %s: %w", tokens[i], err)
		}
		token.Address = tokens[i]
		token.Owner = out.Owner

		list[i] = token
	}
	return list, nil
}

// GetTokenAccount decodes an SPL token account; a missing account yields nil.
func GetTokenAccount(ctx context.Context, rpcClient RPC, address solana.PublicKey, commitment rpc.CommitmentType) (*Account, error) {
	acc, err := GetAccountInfo(ctx, rpcClient, address, commitment)
	if err != nil || acc == nil {
		return nil, err
	}
	account, err := new(AccountLayout).Decode(acc.Data.GetBinary())
	if err != nil {
		return nil, err
	}
	account.Address = address
	return account, nil
}

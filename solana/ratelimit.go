package solana

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

// LimitedRPC throttles every call through a shared token bucket so a sweep over
// many pools stays under the provider's request quota.
type LimitedRPC struct {
	next    RPC
	limiter *rate.Limiter
}

// NewLimitedRPC wraps next; rps <= 0 disables limiting.
func NewLimitedRPC(next RPC, rps float64, burst int) RPC {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &LimitedRPC{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *LimitedRPC) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.GetAccountInfoWithOpts(ctx, account, opts)
}

func (l *LimitedRPC) GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.GetMultipleAccountsWithOpts(ctx, accounts, opts)
}

func (l *LimitedRPC) GetProgramAccountsWithOpts(ctx context.Context, publicKey solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.GetProgramAccountsWithOpts(ctx, publicKey, opts)
}

func (l *LimitedRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.GetLatestBlockhash(ctx, commitment)
}

func (l *LimitedRPC) SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	return l.next.SendTransactionWithOpts(ctx, transaction, opts)
}

func (l *LimitedRPC) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.GetSignatureStatuses(ctx, searchTransactionHistory, transactionSignatures...)
}

func (l *LimitedRPC) GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.GetTransaction(ctx, txSig, opts)
}

func (l *LimitedRPC) GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return l.next.GetSlot(ctx, commitment)
}

func (l *LimitedRPC) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return l.next.GetBlockHeight(ctx, commitment)
}

func (l *LimitedRPC) GetBlockTime(ctx context.Context, block uint64) (*solana.UnixTimeSeconds, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.GetBlockTime(ctx, block)
}

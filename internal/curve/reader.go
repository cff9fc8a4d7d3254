// Package curve reads and decodes bonding curve state from the chain.
package curve

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	dbc "github.com/krazyTry/meteora-graduator/dynamic_bonding_curve"
	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
	"github.com/krazyTry/meteora-graduator/internal/errs"
	solanago "github.com/krazyTry/meteora-graduator/solana"
)

// MaxBatchSize is the getMultipleAccounts key limit.
const MaxBatchSize = 100

type PoolState struct {
	Address solana.PublicKey
	Pool    *dbc.VirtualPool
}

// PoolResult is one entry of a batch read; exactly one of State and Err is set.
type PoolResult struct {
	Address solana.PublicKey
	State   *PoolState
	Err     error
}

type ConfigResult struct {
	Address solana.PublicKey
	Config  *dbc.PoolConfig
	Err     error
}

type Reader struct {
	rpc         solanago.RPC
	commitment  rpc.CommitmentType
	concurrency int
	log         *zap.Logger
}

type Option func(*Reader)

func WithCommitment(c rpc.CommitmentType) Option {
	return func(r *Reader) { r.commitment = c }
}

// WithConcurrency bounds the number of batch chunks fetched at once.
func WithConcurrency(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.log = log
		}
	}
}

func NewReader(client solanago.RPC, opts ...Option) *Reader {
	r := &Reader{
		rpc:         client,
		commitment:  rpc.CommitmentConfirmed,
		concurrency: 4,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) Commitment() rpc.CommitmentType { return r.commitment }

func readErr(address solana.PublicKey, op string, err error) error {
	return &errs.ChainReadError{Address: address.String(), Op: op, Err: err}
}

func (r *Reader) GetPool(ctx context.Context, address solana.PublicKey) (*PoolState, error) {
	acc, err := solanago.GetAccountInfo(ctx, r.rpc, address, r.commitment)
	if err != nil {
		return nil, readErr(address, "getPool", err)
	}
	if acc == nil {
		return nil, readErr(address, "getPool", errs.ErrPoolNotFound)
	}
	pool, err := dbc.ParseAccount_VirtualPool(acc.Data.GetBinary())
	if err != nil {
		return nil, readErr(address, "getPool", err)
	}
	return &PoolState{Address: address, Pool: pool}, nil
}

// GetPools reads many pools. The result has one entry per input address, in
// input order; failures are reported per entry.
func (r *Reader) GetPools(ctx context.Context, addresses []solana.PublicKey) []PoolResult {
	accounts, errList := r.fetchMany(ctx, addresses)
	out := make([]PoolResult, len(addresses))
	for i, address := range addresses {
		out[i].Address = address
		switch {
		case errList[i] != nil:
			out[i].Err = readErr(address, "getPools", errList[i])
		case accounts[i] == nil:
			out[i].Err = readErr(address, "getPools", errs.ErrPoolNotFound)
		default:
			pool, err := dbc.ParseAccount_VirtualPool(accounts[i].Data.GetBinary())
			if err != nil {
				out[i].Err = readErr(address, "getPools", err)
				continue
			}
			out[i].State = &PoolState{Address: address, Pool: pool}
		}
	}
	return out
}

func (r *Reader) GetConfig(ctx context.Context, address solana.PublicKey) (*dbc.PoolConfig, error) {
	if address.IsZero() {
		return nil, readErr(address, "getConfig", errors.New("config address is empty"))
	}
	acc, err := solanago.GetAccountInfo(ctx, r.rpc, address, r.commitment)
	if err != nil {
		return nil, readErr(address, "getConfig", err)
	}
	if acc == nil {
		return nil, readErr(address, "getConfig", rpc.ErrNotFound)
	}
	config, err := dbc.ParseAccount_PoolConfig(acc.Data.GetBinary())
	if err != nil {
		return nil, readErr(address, "getConfig", err)
	}
	return config, nil
}

// GetConfigs reads configs in batches; duplicate addresses are fetched once.
func (r *Reader) GetConfigs(ctx context.Context, addresses []solana.PublicKey) map[solana.PublicKey]ConfigResult {
	unique := make([]solana.PublicKey, 0, len(addresses))
	seen := make(map[solana.PublicKey]struct{}, len(addresses))
	for _, a := range addresses {
		if _, ok := seen[a]; ok || a.IsZero() {
			continue
		}
		seen[a] = struct{}{}
		unique = append(unique, a)
	}

	accounts, errList := r.fetchMany(ctx, unique)
	out := make(map[solana.PublicKey]ConfigResult, len(unique))
	for i, address := range unique {
		res := ConfigResult{Address: address}
		switch {
		case errList[i] != nil:
			res.Err = readErr(address, "getConfigs", errList[i])
		case accounts[i] == nil:
			res.Err = readErr(address, "getConfigs", rpc.ErrNotFound)
		default:
			res.Config, res.Err = dbc.ParseAccount_PoolConfig(accounts[i].Data.GetBinary())
			if res.Err != nil {
				res.Err = readErr(address, "getConfigs", res.Err)
			}
		}
		out[address] = res
	}
	return out
}

// fetchMany splits keys into chunks and reads the chunks concurrently. A chunk
// failure is recorded against each of its keys only.
func (r *Reader) fetchMany(ctx context.Context, keys []solana.PublicKey) ([]*rpc.Account, []error) {
	accounts := make([]*rpc.Account, len(keys))
	errList := make([]error, len(keys))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for start := 0; start < len(keys); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				for i := start; i < end; i++ {
					errList[i] = ctx.Err()
				}
				return
			}

			out, err := solanago.GetMultipleAccountInfo(ctx, r.rpc, keys[start:end], r.commitment)
			if err != nil {
				r.log.Warn("batch account read failed", zap.Int("from", start), zap.Int("to", end), zap.Error(err))
				for i := start; i < end; i++ {
					errList[i] = err
				}
				return
			}
			copy(accounts[start:end], out.Value)
		}(start, end)
	}
	wg.Wait()
	return accounts, errList
}

// GetMints reads several mints at once; missing mints are an error.
func (r *Reader) GetMints(ctx context.Context, mints ...solana.PublicKey) ([]*solanago.Token, error) {
	tokens, err := solanago.GetMultipleToken(ctx, r.rpc, r.commitment, mints...)
	if err != nil {
		return nil, readErr(mints[0], "getMints", err)
	}
	for i, t := range tokens {
		if t == nil {
			return nil, readErr(mints[i], "getMints", rpc.ErrNotFound)
		}
	}
	return tokens, nil
}

func programAccounts[T any](ctx context.Context, r *Reader, op, key string, filter *helpers.Filter, parse func([]byte) (*T, error)) ([]dbc.ProgramAccount[T], error) {
	out, err := r.rpc.GetProgramAccountsWithOpts(ctx, dbc.DynamicBondingCurveProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: r.commitment,
		Encoding:   solana.EncodingBase64,
		Filters:    helpers.CreateProgramAccountFilter(key, filter),
	})
	if err != nil {
		return nil, readErr(filter.Owner, op, err)
	}

	list := make([]dbc.ProgramAccount[T], 0, len(out))
	for _, v := range out {
		if v == nil || v.Account == nil {
			continue
		}
		acc, err := parse(v.Account.Data.GetBinary())
		if err != nil {
			r.log.Warn("skip undecodable account", zap.String("op", op), zap.Stringer("address", v.Pubkey), zap.Error(err))
			continue
		}
		list = append(list, dbc.ProgramAccount[T]{Pubkey: v.Pubkey, Account: acc})
	}
	return list, nil
}

func (r *Reader) PoolsByCreator(ctx context.Context, creator solana.PublicKey) ([]dbc.ProgramAccount[dbc.VirtualPool], error) {
	return programAccounts(ctx, r, "poolsByCreator", helpers.AccountKeyVirtualPool,
		&helpers.Filter{Owner: creator, Offset: dbc.VirtualPoolCreatorOffset}, dbc.ParseAccount_VirtualPool)
}

func (r *Reader) PoolsByConfig(ctx context.Context, config solana.PublicKey) ([]dbc.ProgramAccount[dbc.VirtualPool], error) {
	return programAccounts(ctx, r, "poolsByConfig", helpers.AccountKeyVirtualPool,
		&helpers.Filter{Owner: config, Offset: dbc.VirtualPoolConfigOffset}, dbc.ParseAccount_VirtualPool)
}

func (r *Reader) PoolByBaseMint(ctx context.Context, baseMint solana.PublicKey) (*dbc.ProgramAccount[dbc.VirtualPool], error) {
	list, err := programAccounts(ctx, r, "poolByBaseMint", helpers.AccountKeyVirtualPool,
		&helpers.Filter{Owner: baseMint, Offset: dbc.VirtualPoolBaseMintOffset}, dbc.ParseAccount_VirtualPool)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, readErr(baseMint, "poolByBaseMint", errs.ErrPoolNotFound)
	}
	return &list[0], nil
}

func (r *Reader) ConfigsByFeeClaimer(ctx context.Context, feeClaimer solana.PublicKey) ([]dbc.ProgramAccount[dbc.PoolConfig], error) {
	return programAccounts(ctx, r, "configsByFeeClaimer", helpers.AccountKeyPoolConfig,
		&helpers.Filter{Owner: feeClaimer, Offset: dbc.PoolConfigFeeClaimerOffset}, dbc.ParseAccount_PoolConfig)
}

// MigrationMetadataExists reports whether the DAMM v2 migration metadata account
// of pool has been created.
func (r *Reader) MigrationMetadataExists(ctx context.Context, pool solana.PublicKey) (bool, error) {
	address := helpers.DeriveDammV2MigrationMetadataAddress(pool)
	acc, err := solanago.GetAccountInfo(ctx, r.rpc, address, r.commitment)
	if err != nil {
		return false, readErr(address, "migrationMetadata", err)
	}
	return acc != nil, nil
}

// TokenBalance returns the owner's associated token account balance; a missing
// account counts as zero.
func (r *Reader) TokenBalance(ctx context.Context, owner, mint, tokenProgram solana.PublicKey) (uint64, error) {
	ata, err := helpers.FindAssociatedTokenAddress(owner, mint, tokenProgram)
	if err != nil {
		return 0, err
	}
	acc, err := solanago.GetTokenAccount(ctx, r.rpc, ata, r.commitment)
	if err != nil {
		return 0, readErr(ata, "tokenBalance", err)
	}
	if acc == nil {
		return 0, nil
	}
	return acc.Amount, nil
}

func (r *Reader) CurrentPoint(ctx context.Context, activationType dbc.ActivationType) (*big.Int, error) {
	point, err := solanago.CurrentPoint(ctx, r.rpc, r.commitment, uint8(activationType))
	if err != nil {
		return nil, fmt.Errorf("current point: %w", err)
	}
	return point, nil
}

// Package fees reads accrued creator and partner trading fees and claims them.
package fees

import (
	"context"
	"math"
	"math/bits"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	dbc "github.com/krazyTry/meteora-graduator/dynamic_bonding_curve"
	"github.com/krazyTry/meteora-graduator/internal/curve"
	"github.com/krazyTry/meteora-graduator/internal/errs"
	"github.com/krazyTry/meteora-graduator/internal/metrics"
	solanago "github.com/krazyTry/meteora-graduator/solana"
)

const stepClaim = "claim"

type Role string

const (
	RoleCreator Role = "creator"
	RolePartner Role = "partner"
)

// Chain is the read side fee settlement depends on.
type Chain interface {
	GetConfigs(ctx context.Context, addresses []solana.PublicKey) map[solana.PublicKey]curve.ConfigResult
	PoolsByCreator(ctx context.Context, creator solana.PublicKey) ([]dbc.ProgramAccount[dbc.VirtualPool], error)
	PoolsByConfig(ctx context.Context, config solana.PublicKey) ([]dbc.ProgramAccount[dbc.VirtualPool], error)
	ConfigsByFeeClaimer(ctx context.Context, feeClaimer solana.PublicKey) ([]dbc.ProgramAccount[dbc.PoolConfig], error)
}

type Sender interface {
	Send(ctx context.Context, instructions []solana.Instruction, payer solana.PrivateKey, signers ...solana.PrivateKey) (*solanago.Receipt, error)
}

// FeeRecord is a point-in-time read of one pool's fee accumulators. It is never
// cached: every trade changes it.
type FeeRecord struct {
	Pool            solana.PublicKey `json:"pool"`
	BaseMint        solana.PublicKey `json:"baseMint"`
	QuoteMint       solana.PublicKey `json:"quoteMint"`
	CreatorBaseFee  uint64           `json:"creatorBaseFee"`
	CreatorQuoteFee uint64           `json:"creatorQuoteFee"`
	PartnerBaseFee  uint64           `json:"partnerBaseFee"`
	PartnerQuoteFee uint64           `json:"partnerQuoteFee"`
	TotalBaseFee    uint64           `json:"totalBaseFee"`
	TotalQuoteFee   uint64           `json:"totalQuoteFee"`
}

// Amounts returns the base and quote fees owed to role.
func (r FeeRecord) Amounts(role Role) (base, quote uint64) {
	if role == RoleCreator {
		return r.CreatorBaseFee, r.CreatorQuoteFee
	}
	return r.PartnerBaseFee, r.PartnerQuoteFee
}

type ClaimResult struct {
	Pool           string `json:"pool"`
	Role           Role   `json:"role"`
	Signature      string `json:"signature,omitempty"`
	BaseClaimed    uint64 `json:"baseClaimed"`
	QuoteClaimed   uint64 `json:"quoteClaimed"`
	NothingToClaim bool   `json:"nothingToClaim"`
}

// entry keeps the decoded accounts a record was read from so a claim can be
// built from the same snapshot.
type entry struct {
	record FeeRecord
	pool   *dbc.VirtualPool
	config *dbc.PoolConfig
}

func newRecord(address solana.PublicKey, pool *dbc.VirtualPool, config *dbc.PoolConfig) FeeRecord {
	return FeeRecord{
		Pool:            address,
		BaseMint:        pool.BaseMint,
		QuoteMint:       config.QuoteMint,
		CreatorBaseFee:  pool.CreatorBaseFee,
		CreatorQuoteFee: pool.CreatorQuoteFee,
		PartnerBaseFee:  pool.PartnerBaseFee,
		PartnerQuoteFee: pool.PartnerQuoteFee,
		TotalBaseFee:    saturatingAdd(pool.CreatorBaseFee, pool.PartnerBaseFee),
		TotalQuoteFee:   saturatingAdd(pool.CreatorQuoteFee, pool.PartnerQuoteFee),
	}
}

// saturatingAdd caps at MaxUint64 so a total never reads below either part.
func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

type Service struct {
	chain   Chain
	sender  Sender
	creator solana.PrivateKey
	partner solana.PrivateKey
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewService(chain Chain, sender Sender, creator, partner solana.PrivateKey, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{chain: chain, sender: sender, creator: creator, partner: partner, log: log, metrics: m}
}

// GetClaimableFees lists pools where address has outstanding fees, either as the
// pool creator or as the fee claimer of the pool's config.
func (s *Service) GetClaimableFees(ctx context.Context, address string) ([]FeeRecord, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, &errs.InvalidAddressError{Input: address, Err: err}
	}

	created, err := s.entries(ctx, owner, RoleCreator)
	if err != nil {
		return nil, err
	}
	partnered, err := s.entries(ctx, owner, RolePartner)
	if err != nil {
		return nil, err
	}

	seen := make(map[solana.PublicKey]struct{}, len(created)+len(partnered))
	out := make([]FeeRecord, 0, len(created)+len(partnered))
	for _, e := range append(created, partnered...) {
		if _, ok := seen[e.record.Pool]; ok {
			continue
		}
		seen[e.record.Pool] = struct{}{}
		out = append(out, e.record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pool.String() < out[j].Pool.String() })
	return out, nil
}

// entries reads every pool owner holds fees in for role, skipping pools where
// both of the role's amounts are zero.
func (s *Service) entries(ctx context.Context, owner solana.PublicKey, role Role) ([]entry, error) {
	var all []entry
	var err error
	if role == RoleCreator {
		all, err = s.creatorEntries(ctx, owner)
	} else {
		all, err = s.partnerEntries(ctx, owner)
	}
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, e := range all {
		base, quote := e.record.Amounts(role)
		if base == 0 && quote == 0 {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Service) creatorEntries(ctx context.Context, creator solana.PublicKey) ([]entry, error) {
	pools, err := s.chain.PoolsByCreator(ctx, creator)
	if err != nil {
		return nil, err
	}
	configKeys := make([]solana.PublicKey, 0, len(pools))
	for _, p := range pools {
		configKeys = append(configKeys, p.Account.Config)
	}
	configs := s.chain.GetConfigs(ctx, configKeys)

	out := make([]entry, 0, len(pools))
	for _, p := range pools {
		res, ok := configs[p.Account.Config]
		if !ok || res.Err != nil {
			s.log.Warn("skip pool with unreadable config", zap.Stringer("pool", p.Pubkey), zap.Stringer("config", p.Account.Config))
			continue
		}
		out = append(out, entry{record: newRecord(p.Pubkey, p.Account, res.Config), pool: p.Account, config: res.Config})
	}
	return out, nil
}

// partnerEntries fans out one pool query per config the partner claims fees for.
func (s *Service) partnerEntries(ctx context.Context, partner solana.PublicKey) ([]entry, error) {
	configs, err := s.chain.ConfigsByFeeClaimer(ctx, partner)
	if err != nil {
		return nil, err
	}

	results := make([][]entry, len(configs))
	errList := make([]error, len(configs))
	var wg sync.WaitGroup
	for i, c := range configs {
		wg.Add(1)
		go func(i int, c dbc.ProgramAccount[dbc.PoolConfig]) {
			defer wg.Done()
			pools, err := s.chain.PoolsByConfig(ctx, c.Pubkey)
			if err != nil {
				errList[i] = err
				return
			}
			for _, p := range pools {
				results[i] = append(results[i], entry{record: newRecord(p.Pubkey, p.Account, c.Account), pool: p.Account, config: c.Account})
			}
		}(i, c)
	}
	wg.Wait()

	var out []entry
	for i := range configs {
		if errList[i] != nil {
			return nil, errList[i]
		}
		out = append(out, results[i]...)
	}
	return out, nil
}

func (s *Service) ClaimCreatorFee(ctx context.Context, pool string) (*ClaimResult, error) {
	return s.claim(ctx, pool, RoleCreator, s.creator)
}

func (s *Service) ClaimPartnerFee(ctx context.Context, pool string) (*ClaimResult, error) {
	return s.claim(ctx, pool, RolePartner, s.partner)
}

// claim pays out exactly the amounts read at the start of the call. Fees
// accrued after the read stay in the pool for the next claim.
func (s *Service) claim(ctx context.Context, pool string, role Role, signer solana.PrivateKey) (*ClaimResult, error) {
	address, err := solana.PublicKeyFromBase58(pool)
	if err != nil {
		return nil, &errs.InvalidAddressError{Input: pool, Err: err}
	}
	if len(signer) == 0 {
		return nil, &errs.MissingSignerError{Role: string(role)}
	}
	claimer := signer.PublicKey()

	var list []entry
	if role == RoleCreator {
		list, err = s.creatorEntries(ctx, claimer)
	} else {
		list, err = s.partnerEntries(ctx, claimer)
	}
	if err != nil {
		return nil, err
	}

	var found *entry
	for i := range list {
		if list[i].record.Pool.Equals(address) {
			found = &list[i]
			break
		}
	}
	if found == nil {
		return nil, &errs.NoClaimableFeesError{Pool: pool}
	}

	result := &ClaimResult{Pool: pool, Role: role}
	base, quote := found.record.Amounts(role)
	if base == 0 && quote == 0 {
		result.NothingToClaim = true
		s.log.Info("nothing to claim", zap.String("pool", pool), zap.String("role", string(role)))
		return result, nil
	}

	params := dbc.ClaimTradingFeeParams{
		Pool:            address,
		PoolState:       found.pool,
		PoolConfigState: found.config,
		Claimer:         claimer,
		MaxBaseAmount:   base,
		MaxQuoteAmount:  quote,
	}
	build := dbc.ClaimPartnerTradingFee
	if role == RoleCreator {
		build = dbc.ClaimCreatorTradingFee
	}
	pre, ix, post, err := build(params)
	if err != nil {
		return nil, &errs.InvalidInputError{Field: "claim", Reason: err.Error()}
	}

	receipt, err := s.sender.Send(ctx, append(append(pre, ix), post...), signer)
	s.metrics.Transaction(stepClaim, err)
	if err != nil {
		txErr := &errs.TransactionFailedError{Step: stepClaim, Err: err}
		if receipt != nil {
			txErr.Signature = receipt.Signature.String()
		}
		s.log.Warn("claim failed", zap.String("pool", pool), zap.String("role", string(role)), zap.Error(err))
		return nil, txErr
	}

	result.Signature = receipt.Signature.String()
	result.BaseClaimed = base
	result.QuoteClaimed = quote
	s.log.Info("fees claimed",
		zap.String("pool", pool),
		zap.String("role", string(role)),
		zap.Uint64("base", base),
		zap.Uint64("quote", quote),
		zap.String("signature", result.Signature),
	)
	return result, nil
}

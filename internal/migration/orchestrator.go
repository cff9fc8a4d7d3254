// Package migration drives bonding curve pools that reached their threshold
// through migration into DAMM v2 and records the outcome in the mirror.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	dbc "github.com/krazyTry/meteora-graduator/dynamic_bonding_curve"
	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
	"github.com/krazyTry/meteora-graduator/internal/curve"
	"github.com/krazyTry/meteora-graduator/internal/errs"
	"github.com/krazyTry/meteora-graduator/internal/metrics"
	"github.com/krazyTry/meteora-graduator/internal/mirror"
	solanago "github.com/krazyTry/meteora-graduator/solana"
)

// Pipeline steps, as logged and persisted in LastStep.
const (
	StepRead     = "read"
	StepLease    = "lease"
	StepMetadata = "metadata"
	StepMigrate  = "migrate"
	StepSettle   = "settle"
)

type Outcome string

const (
	// OutcomeWaiting: the curve has not reached its threshold.
	OutcomeWaiting  Outcome = "waiting"
	OutcomeMigrated Outcome = "migrated"
	OutcomeSettled  Outcome = "settled"
	// OutcomeSkipped: nothing to do this sweep (terminal, backing off, or leased).
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDeferred: retried next sweep without counting an attempt.
	OutcomeDeferred Outcome = "deferred"
	OutcomeFailed   Outcome = "failed"
	OutcomeManual   Outcome = "manual_intervention"
)

type Chain interface {
	GetPools(ctx context.Context, addresses []solana.PublicKey) []curve.PoolResult
	GetConfigs(ctx context.Context, addresses []solana.PublicKey) map[solana.PublicKey]curve.ConfigResult
	MigrationMetadataExists(ctx context.Context, pool solana.PublicKey) (bool, error)
}

type Sender interface {
	Send(ctx context.Context, instructions []solana.Instruction, payer solana.PrivateKey, signers ...solana.PrivateKey) (*solanago.Receipt, error)
}

type Config struct {
	// Concurrency bounds the pools processed at once.
	Concurrency int
	// MaxAttempts failed steps move a pool to NEEDS_MANUAL_INTERVENTION.
	MaxAttempts  int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	Lease        Lease
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Minute
	}
	if c.Lease == nil {
		c.Lease = NewLocalLease()
	}
	return c
}

type PoolReport struct {
	Pool    string       `json:"pool"`
	State   mirror.State `json:"state"`
	Outcome Outcome      `json:"outcome"`
	Step    string       `json:"step,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type SweepReport struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Pools     []PoolReport  `json:"pools"`
}

// Count returns the number of pools that ended the sweep with outcome o.
func (r *SweepReport) Count(o Outcome) int {
	n := 0
	for _, p := range r.Pools {
		if p.Outcome == o {
			n++
		}
	}
	return n
}

type Orchestrator struct {
	chain   Chain
	store   mirror.Store
	sender  Sender
	payer   solana.PrivateKey
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOrchestrator(chain Chain, store mirror.Store, sender Sender, payer solana.PrivateKey, cfg Config, log *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		chain:   chain,
		store:   store,
		sender:  sender,
		payer:   payer,
		cfg:     cfg.withDefaults(),
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Track adds a pool to the mirror so the sweep watches it.
func (o *Orchestrator) Track(ctx context.Context, pool, baseMint string) error {
	if _, err := solana.PublicKeyFromBase58(pool); err != nil {
		return &errs.InvalidAddressError{Input: pool, Err: err}
	}
	return o.store.Upsert(ctx, mirror.FundData{BondingCurvePool: pool, BaseMint: baseMint})
}

// Run sweeps immediately and then every interval until ctx is done.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := o.Sweep(ctx); err != nil {
			o.log.Error("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// candidate is a tracked pool the sweep will read from chain.
type candidate struct {
	data    mirror.FundData
	address solana.PublicKey
}

// Sweep runs one reconciliation pass over every tracked pool. Pools are
// processed independently; only a failure to list the mirror fails the sweep.
func (o *Orchestrator) Sweep(ctx context.Context) (*SweepReport, error) {
	start := o.now()
	report := &SweepReport{StartedAt: start}

	tracked, err := o.store.ListPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked pools: %w", err)
	}

	var candidates []candidate
	for _, fd := range tracked {
		parked := fd.State == mirror.StateManualIntervention
		switch {
		case fd.Settled() || fd.State == mirror.StateSettled:
			report.Pools = append(report.Pools, PoolReport{Pool: fd.BondingCurvePool, State: fd.State, Outcome: OutcomeSkipped})
			continue
		case !parked && fd.NextAttemptAt != nil && fd.NextAttemptAt.After(start):
			report.Pools = append(report.Pools, PoolReport{Pool: fd.BondingCurvePool, State: fd.State, Outcome: OutcomeSkipped})
			continue
		}
		// parked pools are still read: one migrated on chain since is settled
		address, err := solana.PublicKeyFromBase58(fd.BondingCurvePool)
		if err != nil {
			if parked {
				report.Pools = append(report.Pools, PoolReport{Pool: fd.BondingCurvePool, State: fd.State, Outcome: OutcomeSkipped})
				continue
			}
			report.Pools = append(report.Pools, o.fail(ctx, fd, fd.State, StepRead, &errs.InvalidAddressError{Input: fd.BondingCurvePool, Err: err}))
			continue
		}
		candidates = append(candidates, candidate{data: fd, address: address})
	}

	keys := make([]solana.PublicKey, len(candidates))
	for i, c := range candidates {
		keys[i] = c.address
	}
	pools := o.chain.GetPools(ctx, keys)

	var configKeys []solana.PublicKey
	for _, res := range pools {
		if res.State != nil && (res.State.Pool.Migrated() || res.State.Pool.ThresholdReached()) {
			configKeys = append(configKeys, res.State.Pool.Config)
		}
	}
	configs := o.chain.GetConfigs(ctx, configKeys)

	reports := make([]PoolReport, len(candidates))
	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			reports[i] = o.process(ctx, candidates[i].data, pools[i], configs)
		}(i)
	}
	wg.Wait()
	report.Pools = append(report.Pools, reports...)
	report.Duration = o.now().Sub(start)

	o.metrics.ObserveSweep(report.Duration)
	counts := make(map[Outcome]int)
	for _, p := range report.Pools {
		o.metrics.PoolOutcome(string(p.Outcome))
		counts[p.Outcome]++
	}
	o.log.Info("sweep finished",
		zap.Int("tracked", len(tracked)),
		zap.Int("migrated", counts[OutcomeMigrated]),
		zap.Int("settled", counts[OutcomeSettled]),
		zap.Int("failed", counts[OutcomeFailed]),
		zap.Int("deferred", counts[OutcomeDeferred]),
		zap.Int("manual", counts[OutcomeManual]),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// process applies the transition function to one pool. The lease is held for the
// whole pipeline and the mirror is re-read under it, so a concurrent sweep that
// already settled the pool turns this run into a no-op.
func (o *Orchestrator) process(ctx context.Context, tracked mirror.FundData, res curve.PoolResult, configs map[solana.PublicKey]curve.ConfigResult) PoolReport {
	pool := tracked.BondingCurvePool
	release, ok, err := o.cfg.Lease.Acquire(ctx, pool)
	if err != nil {
		o.log.Warn("lease unavailable", zap.String("pool", pool), zap.Error(err))
		return PoolReport{Pool: pool, State: tracked.State, Outcome: OutcomeDeferred, Step: StepLease, Error: err.Error()}
	}
	if !ok {
		return PoolReport{Pool: pool, State: tracked.State, Outcome: OutcomeSkipped, Step: StepLease}
	}
	defer release()

	fd, err := o.store.Get(ctx, pool)
	if err != nil {
		o.log.Warn("mirror read failed", zap.String("pool", pool), zap.Error(err))
		return PoolReport{Pool: pool, State: tracked.State, Outcome: OutcomeDeferred, Step: StepRead, Error: err.Error()}
	}
	if fd.Settled() || fd.State == mirror.StateSettled {
		return PoolReport{Pool: pool, State: fd.State, Outcome: OutcomeSkipped}
	}
	if fd.State == mirror.StateManualIntervention {
		return o.reconcileParked(ctx, *fd, res, configs)
	}

	if res.Err != nil {
		// transient read failures are retried next sweep for free; a pool that
		// does not exist counts against the attempt budget
		if errs.IsRetryable(res.Err) {
			o.log.Warn("pool read failed", zap.String("pool", pool), zap.String("step", StepRead), zap.Error(res.Err))
			return PoolReport{Pool: pool, State: fd.State, Outcome: OutcomeDeferred, Step: StepRead, Error: res.Err.Error()}
		}
		return o.fail(ctx, *fd, fd.State, StepRead, res.Err)
	}
	state := res.State

	if !state.Pool.Migrated() && !state.Pool.ThresholdReached() {
		if fd.State == mirror.StateMigrated {
			return o.fail(ctx, *fd, fd.State, StepSettle, errors.New("migration not yet observed on chain"))
		}
		return PoolReport{Pool: pool, State: fd.State, Outcome: OutcomeWaiting}
	}

	cfgRes, ok := configs[state.Pool.Config]
	if !ok || cfgRes.Err != nil || cfgRes.Config == nil {
		cause := errors.New("config not read")
		if ok && cfgRes.Err != nil {
			cause = cfgRes.Err
		}
		o.log.Warn("config unavailable, retrying next sweep",
			zap.String("pool", pool),
			zap.Stringer("config", state.Pool.Config),
			zap.Error(cause),
		)
		return PoolReport{Pool: pool, State: fd.State, Outcome: OutcomeDeferred, Step: StepMetadata, Error: cause.Error()}
	}
	config := cfgRes.Config

	if dbc.MigrationOption(config.MigrationOption) != dbc.MigrationOptionMetDammV2 {
		return o.manual(ctx, *fd, fd.State, StepMigrate, fmt.Errorf("unsupported migration option %d", config.MigrationOption))
	}

	if state.Pool.Migrated() {
		return o.settle(ctx, *fd, state, config)
	}
	if fd.State == mirror.StateMigrated {
		return o.fail(ctx, *fd, fd.State, StepSettle, errors.New("migration not yet observed on chain"))
	}
	return o.migrate(ctx, *fd, state, config)
}

// migrate runs THRESHOLD_REACHED -> METADATA_CREATED -> MIGRATED. Each step is
// persisted before the next starts, so a crash resumes at the right step.
func (o *Orchestrator) migrate(ctx context.Context, fd mirror.FundData, state *curve.PoolState, config *dbc.PoolConfig) PoolReport {
	pool := fd.BondingCurvePool
	if len(o.payer) == 0 {
		return PoolReport{Pool: pool, State: fd.State, Outcome: OutcomeDeferred, Step: StepMetadata, Error: (&errs.MissingSignerError{Role: "payer"}).Error()}
	}

	current := fd.State
	if current == mirror.StateTrading || current == "" {
		current = mirror.StateThresholdReached
		if err := o.store.SaveProgress(ctx, pool, mirror.Progress{State: current, Attempts: fd.Attempts, LastStep: fd.LastStep, LastError: fd.LastError}); err != nil {
			return o.storeFailure(pool, current, StepMetadata, err)
		}
		o.log.Info("migration threshold reached", zap.String("pool", pool))
	}

	if current != mirror.StateMetadataCreated {
		exists, err := o.chain.MigrationMetadataExists(ctx, state.Address)
		if err != nil {
			return o.fail(ctx, fd, current, StepMetadata, err)
		}
		var signature string
		if !exists {
			ix, err := dbc.CreateDammV2MigrationMetadata(dbc.CreateDammV2MigrationMetadataParams{
				Payer:       o.payer.PublicKey(),
				VirtualPool: state.Address,
				Config:      state.Pool.Config,
			})
			if err != nil {
				return o.fail(ctx, fd, current, StepMetadata, err)
			}
			receipt, err := o.sender.Send(ctx, []solana.Instruction{ix}, o.payer)
			o.metrics.Transaction(StepMetadata, err)
			if err != nil {
				return o.fail(ctx, fd, current, StepMetadata, txFailure(StepMetadata, receipt, err))
			}
			signature = receipt.Signature.String()
		}
		current = mirror.StateMetadataCreated
		fd.Attempts = 0
		if err := o.store.SaveProgress(ctx, pool, mirror.Progress{State: current, LastStep: StepMetadata, MetadataSignature: signature}); err != nil {
			return o.storeFailure(pool, current, StepMetadata, err)
		}
		o.log.Info("migration metadata created", zap.String("pool", pool), zap.String("signature", signature))
	}

	dammConfig := helpers.GetDammV2Config(config.MigrationFeeOption)
	if dammConfig.IsZero() {
		return o.manual(ctx, fd, current, StepMigrate, fmt.Errorf("unknown migration fee option %d", config.MigrationFeeOption))
	}
	resp, err := dbc.MigrateToDammV2(dbc.MigrateToDammV2Params{
		Payer:           o.payer.PublicKey(),
		VirtualPool:     state.Address,
		PoolState:       state.Pool,
		PoolConfigState: config,
		DammConfig:      dammConfig,
	})
	if err != nil {
		return o.fail(ctx, fd, current, StepMigrate, err)
	}
	receipt, err := o.sender.Send(ctx, resp.Instructions, o.payer, resp.FirstPositionNFT, resp.SecondPositionNFT)
	o.metrics.Transaction(StepMigrate, err)
	if err != nil {
		return o.fail(ctx, fd, current, StepMigrate, txFailure(StepMigrate, receipt, err))
	}

	current = mirror.StateMigrated
	if err := o.store.SaveProgress(ctx, pool, mirror.Progress{State: current, LastStep: StepMigrate, MigrationSignature: receipt.Signature.String()}); err != nil {
		return o.storeFailure(pool, current, StepMigrate, err)
	}
	o.log.Info("pool migrated",
		zap.String("pool", pool),
		zap.Stringer("dammV2Pool", resp.DammPool),
		zap.String("signature", receipt.Signature.String()),
	)
	return PoolReport{Pool: pool, State: current, Outcome: OutcomeMigrated, Step: StepMigrate}
}

// reconcileParked settles a pool parked for manual intervention once the chain
// reports it migrated, whether by a late landing or by hand. Anything else
// leaves it parked. It never submits a transaction.
func (o *Orchestrator) reconcileParked(ctx context.Context, fd mirror.FundData, res curve.PoolResult, configs map[solana.PublicKey]curve.ConfigResult) PoolReport {
	parked := PoolReport{Pool: fd.BondingCurvePool, State: fd.State, Outcome: OutcomeSkipped}
	if res.Err != nil || res.State == nil || !res.State.Pool.Migrated() {
		return parked
	}
	cfgRes, ok := configs[res.State.Pool.Config]
	if !ok || cfgRes.Err != nil || cfgRes.Config == nil {
		parked.Outcome = OutcomeDeferred
		parked.Step = StepSettle
		return parked
	}
	if dbc.MigrationOption(cfgRes.Config.MigrationOption) != dbc.MigrationOptionMetDammV2 {
		return parked
	}
	o.log.Info("parked pool migrated on chain, settling", zap.String("pool", fd.BondingCurvePool))
	return o.settle(ctx, fd, res.State, cfgRes.Config)
}

// settle records the DAMM v2 pool of a pool the chain reports as migrated. It
// never submits a transaction, so its failures are retried every sweep without
// counting against MaxAttempts.
func (o *Orchestrator) settle(ctx context.Context, fd mirror.FundData, state *curve.PoolState, config *dbc.PoolConfig) PoolReport {
	pool := fd.BondingCurvePool
	dammPool, err := dbc.DammV2PoolForMigration(state.Pool, config)
	if err != nil {
		return o.settleFailure(fd, err)
	}
	changed, err := o.store.SetMigrated(ctx, pool, dammPool.String(), o.now())
	if err != nil {
		return o.settleFailure(fd, err)
	}
	if !changed {
		return PoolReport{Pool: pool, State: mirror.StateSettled, Outcome: OutcomeSkipped, Step: StepSettle}
	}
	o.log.Info("pool settled", zap.String("pool", pool), zap.Stringer("dammV2Pool", dammPool))
	return PoolReport{Pool: pool, State: mirror.StateSettled, Outcome: OutcomeSettled, Step: StepSettle}
}

func (o *Orchestrator) settleFailure(fd mirror.FundData, cause error) PoolReport {
	o.log.Warn("settle failed, retrying next sweep",
		zap.String("pool", fd.BondingCurvePool),
		zap.String("step", StepSettle),
		zap.Error(cause),
	)
	return PoolReport{Pool: fd.BondingCurvePool, State: fd.State, Outcome: OutcomeDeferred, Step: StepSettle, Error: cause.Error()}
}

func txFailure(step string, receipt *solanago.Receipt, err error) error {
	txErr := &errs.TransactionFailedError{Step: step, Err: err}
	if receipt != nil {
		txErr.Signature = receipt.Signature.String()
	}
	return txErr
}

// backoff returns RetryBackoff doubled per prior attempt, capped at MaxBackoff.
func (o *Orchestrator) backoff(attempts int) time.Duration {
	d := o.cfg.RetryBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= o.cfg.MaxBackoff {
			return o.cfg.MaxBackoff
		}
	}
	if d > o.cfg.MaxBackoff {
		return o.cfg.MaxBackoff
	}
	return d
}

// fail records a failed step, leaving the pool at state. Once MaxAttempts is
// reached the pool is parked for manual intervention.
func (o *Orchestrator) fail(ctx context.Context, fd mirror.FundData, state mirror.State, step string, cause error) PoolReport {
	attempts := fd.Attempts + 1
	if attempts >= o.cfg.MaxAttempts {
		return o.manual(ctx, fd, state, step, cause)
	}
	next := o.now().Add(o.backoff(attempts))
	o.log.Warn("migration step failed",
		zap.String("pool", fd.BondingCurvePool),
		zap.String("step", step),
		zap.Int("attempts", attempts),
		zap.Time("nextAttemptAt", next),
		zap.Error(cause),
	)
	if state == "" {
		state = mirror.StateTrading
	}
	err := o.store.SaveProgress(ctx, fd.BondingCurvePool, mirror.Progress{
		State:         state,
		Attempts:      attempts,
		LastError:     cause.Error(),
		LastStep:      step,
		NextAttemptAt: &next,
	})
	if err != nil {
		o.log.Error("failed to record step failure", zap.String("pool", fd.BondingCurvePool), zap.Error(err))
	}
	return PoolReport{Pool: fd.BondingCurvePool, State: state, Outcome: OutcomeFailed, Step: step, Error: cause.Error()}
}

func (o *Orchestrator) manual(ctx context.Context, fd mirror.FundData, state mirror.State, step string, cause error) PoolReport {
	o.log.Error("pool needs manual intervention",
		zap.String("pool", fd.BondingCurvePool),
		zap.String("step", step),
		zap.String("lastState", string(state)),
		zap.Int("attempts", fd.Attempts+1),
		zap.Error(cause),
	)
	err := o.store.SaveProgress(ctx, fd.BondingCurvePool, mirror.Progress{
		State:     mirror.StateManualIntervention,
		Attempts:  fd.Attempts + 1,
		LastError: cause.Error(),
		LastStep:  step,
	})
	if err != nil {
		o.log.Error("failed to record manual intervention", zap.String("pool", fd.BondingCurvePool), zap.Error(err))
	}
	return PoolReport{Pool: fd.BondingCurvePool, State: mirror.StateManualIntervention, Outcome: OutcomeManual, Step: step, Error: cause.Error()}
}

// storeFailure reports a progress write that failed after its on-chain step
// landed. The next sweep re-derives the step from chain state.
func (o *Orchestrator) storeFailure(pool string, state mirror.State, step string, err error) PoolReport {
	o.log.Error("failed to persist progress", zap.String("pool", pool), zap.String("step", step), zap.Error(err))
	return PoolReport{Pool: pool, State: state, Outcome: OutcomeFailed, Step: step, Error: err.Error()}
}

package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	sendandconfirmtransaction "github.com/gagliardetto/solana-go/rpc/sendAndConfirmTransaction"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"
)

var (
	// ErrTransactionFailed is returned when the cluster accepted the transaction
	// but its execution failed.
	ErrTransactionFailed = errors.New("transaction failed on chain")
	// ErrNotConfirmed is returned when the confirm timeout elapsed first.
	ErrNotConfirmed = errors.New("transaction not confirmed")
)

type SenderConfig struct {
	Commitment       rpc.CommitmentType
	MaxRetries       int
	RetryBackoff     time.Duration
	ConfirmTimeout   time.Duration
	PollInterval     time.Duration
	ComputeUnitPrice uint64
	SkipPreflight    bool
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.Commitment == "" {
		c.Commitment = rpc.CommitmentConfirmed
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c
}

// Receipt describes a sent transaction. Meta is nil when the transaction could not
// be fetched after confirmation.
type Receipt struct {
	Signature solana.Signature
	Slot      uint64
	Meta      *rpc.TransactionMeta
}

// Sender signs, submits and confirms transactions.
type Sender struct {
	rpc RPC
	ws  *ws.Client
	cfg SenderConfig
	log *zap.Logger
}

// NewSender creates a Sender. wsClient may be nil, in which case confirmation
// polls getSignatureStatuses.
func NewSender(rpcClient RPC, wsClient *ws.Client, cfg SenderConfig, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{rpc: rpcClient, ws: wsClient, cfg: cfg.withDefaults(), log: log}
}

// Send builds a transaction paid by payer, signs it with payer and signers, sends
// it and waits for confirmation. A non-nil Receipt is returned whenever a
// signed transaction was broadcast, even if submission or confirmation then failed.
func (s *Sender) Send(ctx context.Context, instructions []solana.Instruction, payer solana.PrivateKey, signers ...solana.PrivateKey) (*Receipt, error) {
	if len(instructions) == 0 {
		return nil, errors.New("no instructions to send")
	}

	ixs := make([]solana.Instruction, 0, len(instructions)+1)
	if s.cfg.ComputeUnitPrice > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitPriceInstructionBuilder().
			SetMicroLamports(s.cfg.ComputeUnitPrice).
			Build())
	}
	ixs = append(ixs, MergeInstructions(instructions)...)

	keys := append([]solana.PrivateKey{payer}, signers...)
	sign := func(key solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(key) {
				return &keys[i]
			}
		}
		return nil
	}

	// The transaction is signed once and re-broadcast unchanged, so a submission
	// whose response was lost cannot execute twice. It is rebuilt on a fresh
	// blockhash only once the old one expired without the signature landing.
	var (
		tx        *solana.Transaction
		lastValid uint64
	)
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		if tx != nil {
			landed, expired := s.submitted(ctx, tx.Signatures[0], lastValid)
			if landed {
				return nil
			}
			if expired {
				s.log.Info("blockhash expired, rebuilding transaction", zap.Stringer("signature", tx.Signatures[0]))
				tx = nil
			}
		}
		if tx == nil {
			built, last, err := s.build(ctx, ixs, payer.PublicKey(), sign)
			if err != nil {
				return err
			}
			tx, lastValid = built, last
		}

		_, err := s.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       s.cfg.SkipPreflight,
			PreflightCommitment: s.cfg.Commitment,
		})
		if err != nil {
			s.log.Warn("send transaction", zap.Stringer("signature", tx.Signatures[0]), zap.Error(err))
		}
		return err
	})
	if err != nil {
		if tx != nil {
			// the last broadcast may still land; its signature lets callers check
			return &Receipt{Signature: tx.Signatures[0]}, fmt.Errorf("send transaction: %w", err)
		}
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	sig := tx.Signatures[0]

	receipt := &Receipt{Signature: sig}
	slot, err := s.confirm(ctx, sig)
	if err != nil {
		return receipt, err
	}
	receipt.Slot = slot

	meta, err := s.fetchMeta(ctx, sig)
	if err != nil {
		s.log.Warn("fetch transaction meta", zap.Stringer("signature", sig), zap.Error(err))
		return receipt, nil
	}
	receipt.Meta = meta
	if meta != nil && meta.Err != nil {
		return receipt, fmt.Errorf("%w: %v", ErrTransactionFailed, meta.Err)
	}
	return receipt, nil
}

func (s *Sender) build(ctx context.Context, ixs []solana.Instruction, payer solana.PublicKey, sign func(solana.PublicKey) *solana.PrivateKey) (*solana.Transaction, uint64, error) {
	recent, err := s.rpc.GetLatestBlockhash(ctx, s.cfg.Commitment)
	if err != nil {
		return nil, 0, err
	}
	if recent == nil || recent.Value == nil {
		return nil, 0, errors.New("empty blockhash response")
	}

	tx, err := solana.NewTransaction(ixs, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, 0, err
	}
	if _, err = tx.Sign(sign); err != nil {
		return nil, 0, err
	}
	return tx, recent.Value.LastValidBlockHeight, nil
}

// submitted reports whether an earlier broadcast of sig reached the cluster, and
// whether its blockhash can no longer land. Lookup failures report neither, which
// re-broadcasts the same signature.
func (s *Sender) submitted(ctx context.Context, sig solana.Signature, lastValid uint64) (landed, expired bool) {
	status, err := s.status(ctx, sig)
	if err != nil {
		s.log.Debug("get signature status", zap.Stringer("signature", sig), zap.Error(err))
		return false, false
	}
	if status != nil {
		return true, false
	}
	height, err := s.rpc.GetBlockHeight(ctx, s.cfg.Commitment)
	if err != nil {
		s.log.Debug("get block height", zap.Error(err))
		return false, false
	}
	return false, height > lastValid
}

// status returns nil, nil when the cluster does not know sig.
func (s *Sender) status(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	resp, err := s.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Value) == 0 {
		return nil, nil
	}
	return resp.Value[0], nil
}

func (s *Sender) confirm(ctx context.Context, sig solana.Signature) (uint64, error) {
	deadline := time.Now().Add(s.cfg.ConfirmTimeout)
	if s.ws != nil {
		timeout := s.cfg.ConfirmTimeout
		confirmed, err := sendandconfirmtransaction.WaitForConfirmation(ctx, s.ws, sig, &timeout)
		if confirmed && err != nil {
			var slot uint64
			if status, _ := s.status(ctx, sig); status != nil {
				slot = status.Slot
			}
			return slot, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
		}
		// a confirmed signature takes its slot from the first poll; otherwise the
		// subscription may have missed the notification
	}
	return s.poll(ctx, sig, time.Until(deadline))
}

// poll checks the signature status at least once, then until budget runs out.
func (s *Sender) poll(ctx context.Context, sig solana.Signature, budget time.Duration) (uint64, error) {
	if budget < 0 {
		budget = 0
	}
	deadline := time.NewTimer(budget)
	defer deadline.Stop()

	for {
		status, err := s.status(ctx, sig)
		if err != nil {
			s.log.Debug("get signature status", zap.Stringer("signature", sig), zap.Error(err))
		} else if status != nil {
			if status.Err != nil {
				return status.Slot, fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if reached(status.ConfirmationStatus, s.cfg.Commitment) {
				return status.Slot, nil
			}
		}

		timer := time.NewTimer(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-deadline.C:
			timer.Stop()
			return 0, fmt.Errorf("%w: %s", ErrNotConfirmed, sig)
		case <-timer.C:
		}
	}
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch status {
	case rpc.ConfirmationStatusFinalized:
		return true
	case rpc.ConfirmationStatusConfirmed:
		return want != rpc.CommitmentFinalized
	case rpc.ConfirmationStatusProcessed:
		return want == rpc.CommitmentProcessed
	default:
		return false
	}
}

func (s *Sender) fetchMeta(ctx context.Context, sig solana.Signature) (*rpc.TransactionMeta, error) {
	commitment := s.cfg.Commitment
	if commitment == rpc.CommitmentProcessed {
		commitment = rpc.CommitmentConfirmed
	}
	maxVersion := uint64(0)
	txResp, err := s.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, err
	}
	if txResp == nil {
		return nil, nil
	}
	return txResp.Meta, nil
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

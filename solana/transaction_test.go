package solana

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
	"github.com/krazyTry/meteora-graduator/internal/chaintest"
)

func transferIx(from, to solana.PublicKey) solana.Instruction {
	return system.NewTransferInstructionBuilder().
		SetFundingAccount(from).
		SetRecipientAccount(to).
		SetLamports(1).
		Build()
}

func testSender(fake *chaintest.FakeRPC, cfg SenderConfig) *Sender {
	cfg.PollInterval = time.Millisecond
	cfg.RetryBackoff = time.Millisecond
	return NewSender(fake, nil, cfg, nil)
}

func TestSendConfirms(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	payer := solana.NewWallet().PrivateKey
	s := testSender(fake, SenderConfig{ComputeUnitPrice: 1000})

	receipt, err := s.Send(context.Background(), []solana.Instruction{transferIx(payer.PublicKey(), solana.NewWallet().PublicKey())}, payer)
	require.NoError(t, err)
	require.NotNil(t, receipt.Meta)
	require.NotZero(t, receipt.Slot)
	require.Equal(t, 1, fake.SendCount())

	tx := fake.Sent()[0]
	require.Equal(t, receipt.Signature, tx.Signatures[0])
	programs := chaintest.ProgramIDs(tx)
	require.Equal(t, []solana.PublicKey{computebudget.ProgramID, system.ProgramID}, programs)
}

func TestSendRequiresCoSigner(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	payer := solana.NewWallet().PrivateKey
	other := solana.NewWallet().PrivateKey
	s := testSender(fake, SenderConfig{})

	ix := transferIx(other.PublicKey(), payer.PublicKey())
	_, err := s.Send(context.Background(), []solana.Instruction{ix}, payer)
	require.Error(t, err)
	require.Zero(t, fake.SendCount())

	_, err = s.Send(context.Background(), []solana.Instruction{ix}, payer, other)
	require.NoError(t, err)
}

func TestSendRetriesSubmission(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	calls := 0
	fake.OnSend = func(*solana.Transaction) (*rpc.TransactionMeta, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("node is behind")
		}
		return nil, nil
	}
	payer := solana.NewWallet().PrivateKey
	s := testSender(fake, SenderConfig{MaxRetries: 3})

	_, err := s.Send(context.Background(), []solana.Instruction{transferIx(payer.PublicKey(), solana.NewWallet().PublicKey())}, payer)
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	calls = -10
	s = testSender(fake, SenderConfig{MaxRetries: 1})
	_, err = s.Send(context.Background(), []solana.Instruction{transferIx(payer.PublicKey(), solana.NewWallet().PublicKey())}, payer)
	require.Error(t, err)
}

func TestSendRetriesReuseSignature(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	var attempts []solana.Signature
	fake.OnSend = func(tx *solana.Transaction) (*rpc.TransactionMeta, error) {
		attempts = append(attempts, tx.Signatures[0])
		if len(attempts) < 3 {
			return nil, errors.New("node is behind")
		}
		return nil, nil
	}
	payer := solana.NewWallet().PrivateKey
	s := testSender(fake, SenderConfig{MaxRetries: 3})

	receipt, err := s.Send(context.Background(), []solana.Instruction{transferIx(payer.PublicKey(), solana.NewWallet().PublicKey())}, payer)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	for _, sig := range attempts {
		require.Equal(t, receipt.Signature, sig)
	}
	require.Equal(t, 1, fake.SendCount())
}

func TestSendLostResponseExecutesOnce(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	fake.LostResponses = 1
	executed := 0
	fake.OnSend = func(*solana.Transaction) (*rpc.TransactionMeta, error) {
		executed++
		return nil, nil
	}
	payer := solana.NewWallet().PrivateKey
	s := testSender(fake, SenderConfig{MaxRetries: 3})

	receipt, err := s.Send(context.Background(), []solana.Instruction{transferIx(payer.PublicKey(), solana.NewWallet().PublicKey())}, payer)
	require.NoError(t, err)
	require.Equal(t, 1, executed)
	require.Equal(t, 1, fake.SendCount())
	require.Equal(t, fake.Sent()[0].Signatures[0], receipt.Signature)
	require.NotNil(t, receipt.Meta)
}

func TestSendRebuildsAfterBlockhashExpiry(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	var attempts []solana.Signature
	fake.OnSend = func(tx *solana.Transaction) (*rpc.TransactionMeta, error) {
		attempts = append(attempts, tx.Signatures[0])
		if len(attempts) == 1 {
			// the cluster moves past the blockhash's last valid height
			fake.Slot += 200
			return nil, errors.New("node is behind")
		}
		return nil, nil
	}
	payer := solana.NewWallet().PrivateKey
	s := testSender(fake, SenderConfig{MaxRetries: 2})

	receipt, err := s.Send(context.Background(), []solana.Instruction{transferIx(payer.PublicKey(), solana.NewWallet().PublicKey())}, payer)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.NotEqual(t, attempts[0], attempts[1])
	require.Equal(t, attempts[1], receipt.Signature)
	require.Equal(t, 1, fake.SendCount())
}

func TestSendFailureKeepsSignature(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	fake.OnSend = func(*solana.Transaction) (*rpc.TransactionMeta, error) {
		return nil, errors.New("node is behind")
	}
	payer := solana.NewWallet().PrivateKey
	s := testSender(fake, SenderConfig{MaxRetries: 1})

	receipt, err := s.Send(context.Background(), []solana.Instruction{transferIx(payer.PublicKey(), solana.NewWallet().PublicKey())}, payer)
	require.Error(t, err)
	require.NotNil(t, receipt)
	require.False(t, receipt.Signature.IsZero())
}

func TestPollStopsAtRemainingBudget(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	s := testSender(fake, SenderConfig{ConfirmTimeout: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.poll(ctx, solana.Signature{1}, 0)
	require.ErrorIs(t, err, ErrNotConfirmed)
}

func TestSendOnChainFailure(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	fake.OnSend = func(*solana.Transaction) (*rpc.TransactionMeta, error) {
		return &rpc.TransactionMeta{Err: map[string]any{"InstructionError": []any{0, "Custom"}}}, nil
	}
	payer := solana.NewWallet().PrivateKey
	s := testSender(fake, SenderConfig{})

	receipt, err := s.Send(context.Background(), []solana.Instruction{transferIx(payer.PublicKey(), solana.NewWallet().PublicKey())}, payer)
	require.ErrorIs(t, err, ErrTransactionFailed)
	require.NotNil(t, receipt)
	require.False(t, receipt.Signature.IsZero())
}

func TestMergeInstructionsDedupes(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	_, create, err := helpers.GetOrCreateATAInstruction(mint, owner, owner, token.ProgramID)
	require.NoError(t, err)
	closeIx, err := helpers.UnwrapSOLInstruction(owner, owner)
	require.NoError(t, err)
	middle := transferIx(owner, mint)

	merged := MergeInstructions([]solana.Instruction{closeIx, create, middle, create, closeIx})
	require.Len(t, merged, 3)
	require.Equal(t, solana.SPLAssociatedTokenAccountProgramID, merged[0].ProgramID())
	require.Equal(t, system.ProgramID, merged[1].ProgramID())
	require.Equal(t, token.ProgramID, merged[2].ProgramID())
}

func TestBalanceDeltas(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{1_000_000},
		PostBalances: []uint64{1_495_000},
		PreTokenBalances: []rpc.TokenBalance{
			{Owner: &owner, Mint: mint, UiTokenAmount: &rpc.UiTokenAmount{Amount: "100"}},
		},
		PostTokenBalances: []rpc.TokenBalance{
			{Owner: &owner, Mint: mint, UiTokenAmount: &rpc.UiTokenAmount{Amount: "350"}},
		},
	}

	delta, ok := TokenBalanceDelta(meta, owner, mint)
	require.True(t, ok)
	require.Equal(t, big.NewInt(250), delta)

	_, ok = TokenBalanceDelta(meta, solana.NewWallet().PublicKey(), mint)
	require.False(t, ok)

	lamports, ok := LamportDelta(meta)
	require.True(t, ok)
	require.Equal(t, big.NewInt(500_000), lamports)
}

func TestCurrentPoint(t *testing.T) {
	fake := chaintest.NewFakeRPC()
	fake.Slot = 77
	fake.BlockTime = 1_700_000_000

	point, err := CurrentPoint(context.Background(), fake, rpc.CommitmentConfirmed, 0)
	require.NoError(t, err)
	require.EqualValues(t, 77, point.Int64())

	point, err = CurrentPoint(context.Background(), fake, rpc.CommitmentConfirmed, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1_700_000_000, point.Int64())

	_, err = CurrentPoint(context.Background(), fake, rpc.CommitmentConfirmed, 9)
	require.Error(t, err)
}

// Package chaintest provides an in-memory Solana RPC for package tests.
package chaintest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// SendHook observes a submitted transaction. It may mutate the fake's accounts.
// A returned meta with a non-nil Err marks the transaction as failed on chain; a
// returned error rejects the submission.
type SendHook func(tx *solana.Transaction) (*rpc.TransactionMeta, error)

type FakeRPC struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*rpc.Account
	metas    map[solana.Signature]*rpc.TransactionMeta
	sent     []*solana.Transaction

	Slot      uint64
	BlockTime int64
	OnSend    SendHook
	// LostResponses executes that many upcoming submissions but fails their
	// responses, as a timed out RPC call would.
	LostResponses int
	// ReadErr fails every account read when set.
	ReadErr error
}

func NewFakeRPC() *FakeRPC {
	return &FakeRPC{
		accounts: make(map[solana.PublicKey]*rpc.Account),
		metas:    make(map[solana.Signature]*rpc.TransactionMeta),
		Slot:     1000,
	}
}

func (f *FakeRPC) SetAccount(address, owner solana.PublicKey, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[address] = &rpc.Account{
		Lamports: 1_000_000,
		Owner:    owner,
		Data:     rpc.DataBytesOrJSONFromBytes(append([]byte(nil), data...)),
	}
}

func (f *FakeRPC) DeleteAccount(address solana.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, address)
}

func (f *FakeRPC) AccountData(address solana.PublicKey) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[address]
	if !ok {
		return nil
	}
	return acc.Data.GetBinary()
}

// SetMint stores an SPL mint account.
func (f *FakeRPC) SetMint(mint solana.PublicKey, decimals uint8, supply uint64) {
	data := make([]byte, token.MINT_SIZE)
	binary.LittleEndian.PutUint64(data[36:], supply)
	data[44] = decimals
	data[45] = 1
	f.SetAccount(mint, token.ProgramID, data)
}

// SetTokenAccount stores an initialized SPL token account.
func (f *FakeRPC) SetTokenAccount(address, mint, owner solana.PublicKey, amount uint64) {
	data := make([]byte, 165)
	copy(data[0:], mint.Bytes())
	copy(data[32:], owner.Bytes())
	binary.LittleEndian.PutUint64(data[64:], amount)
	data[108] = 1
	f.SetAccount(address, token.ProgramID, data)
}

// Sent returns the transactions submitted so far.
func (f *FakeRPC) Sent() []*solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*solana.Transaction(nil), f.sent...)
}

func (f *FakeRPC) SendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *FakeRPC) GetAccountInfoWithOpts(_ context.Context, account solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	acc, ok := f.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{
		RPCContext: rpc.RPCContext{Context: rpc.Context{Slot: f.Slot}},
		Value:      acc,
	}, nil
}

func (f *FakeRPC) GetMultipleAccountsWithOpts(_ context.Context, accounts []solana.PublicKey, _ *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	if len(accounts) > 100 {
		return nil, errors.New("too many accounts requested")
	}
	out := &rpc.GetMultipleAccountsResult{
		RPCContext: rpc.RPCContext{Context: rpc.Context{Slot: f.Slot}},
		Value:      make([]*rpc.Account, len(accounts)),
	}
	for i, key := range accounts {
		out.Value[i] = f.accounts[key]
	}
	return out, nil
}

func (f *FakeRPC) GetProgramAccountsWithOpts(_ context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	var out rpc.GetProgramAccountsResult
	for key, acc := range f.accounts {
		if !acc.Owner.Equals(program) {
			continue
		}
		if opts != nil && !matches(acc.Data.GetBinary(), opts.Filters) {
			continue
		}
		out = append(out, &rpc.KeyedAccount{Pubkey: key, Account: acc})
	}
	return out, nil
}

func matches(data []byte, filters []rpc.RPCFilter) bool {
	for _, filter := range filters {
		if filter.DataSize != 0 && uint64(len(data)) != filter.DataSize {
			return false
		}
		if filter.Memcmp != nil {
			offset := int(filter.Memcmp.Offset)
			want := []byte(filter.Memcmp.Bytes)
			if offset+len(want) > len(data) || !bytes.Equal(data[offset:offset+len(want)], want) {
				return false
			}
		}
	}
	return true
}

func (f *FakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hash solana.Hash
	binary.LittleEndian.PutUint64(hash[:], f.Slot)
	return &rpc.GetLatestBlockhashResult{
		RPCContext: rpc.RPCContext{Context: rpc.Context{Slot: f.Slot}},
		Value:      &rpc.LatestBlockhashResult{Blockhash: hash, LastValidBlockHeight: f.Slot + 150},
	}, nil
}

func (f *FakeRPC) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction is not signed")
	}

	f.mu.Lock()
	_, executed := f.metas[tx.Signatures[0]]
	f.mu.Unlock()
	if executed {
		// a signature executes once; re-broadcasts are accepted and ignored
		return tx.Signatures[0], nil
	}

	var (
		meta *rpc.TransactionMeta
		err  error
	)
	if f.OnSend != nil {
		meta, err = f.OnSend(tx)
	}
	if err != nil {
		return solana.Signature{}, err
	}
	if meta == nil {
		meta = &rpc.TransactionMeta{Fee: 5000}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.metas[tx.Signatures[0]] = meta
	f.Slot++
	if f.LostResponses > 0 {
		f.LostResponses--
		return solana.Signature{}, errors.New("rpc response lost")
	}
	return tx.Signatures[0], nil
}

func (f *FakeRPC) GetSignatureStatuses(_ context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &rpc.GetSignatureStatusesResult{Value: make([]*rpc.SignatureStatusesResult, len(sigs))}
	for i, sig := range sigs {
		meta, ok := f.metas[sig]
		if !ok {
			continue
		}
		out.Value[i] = &rpc.SignatureStatusesResult{
			Slot:               f.Slot,
			Err:                meta.Err,
			ConfirmationStatus: rpc.ConfirmationStatusFinalized,
		}
	}
	return out, nil
}

func (f *FakeRPC) GetTransaction(_ context.Context, sig solana.Signature, _ *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.metas[sig]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetTransactionResult{Slot: f.Slot, Meta: meta}, nil
}

func (f *FakeRPC) GetSlot(context.Context, rpc.CommitmentType) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Slot, nil
}

// GetBlockHeight tracks the slot; the fake never skips a slot.
func (f *FakeRPC) GetBlockHeight(context.Context, rpc.CommitmentType) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Slot, nil
}

func (f *FakeRPC) GetBlockTime(context.Context, uint64) (*solana.UnixTimeSeconds, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := solana.UnixTimeSeconds(f.BlockTime)
	return &t, nil
}

// ProgramIDs returns the program of every instruction of tx, in order.
func ProgramIDs(tx *solana.Transaction) []solana.PublicKey {
	var out []solana.PublicKey
	for _, ix := range tx.Message.Instructions {
		program, err := tx.Message.Program(ix.ProgramIDIndex)
		if err != nil {
			continue
		}
		out = append(out, program)
	}
	return out
}

// InstructionData returns the data of every instruction of tx invoking program.
func InstructionData(tx *solana.Transaction, program solana.PublicKey) [][]byte {
	var out [][]byte
	for _, ix := range tx.Message.Instructions {
		p, err := tx.Message.Program(ix.ProgramIDIndex)
		if err != nil || !p.Equals(program) {
			continue
		}
		out = append(out, []byte(ix.Data))
	}
	return out
}

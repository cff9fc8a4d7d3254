package solana

import (
	"fmt"

	binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type AccountState uint8

const (
	AccountStateUninitialized AccountState = 0
	AccountStateInitialized   AccountState = 1
	AccountStateFrozen        AccountState = 2
)

// TokenAccountSize is the SPL token account length without extensions.
const TokenAccountSize = 165

type Account struct {
	Address solana.PublicKey
	// Mint associated with the account
	Mint solana.PublicKey

	// Owner of the account
	Owner solana.PublicKey

	// Number of tokens the account holds
	Amount uint64

	Delegate        *solana.PublicKey
	DelegatedAmount uint64
	IsInitialized   bool
	IsFrozen        bool
	IsNative        bool
	CloseAuthority  *solana.PublicKey
}

type AccountLayout struct {
}

func readKey(dec *binary.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(32)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

// readOptionalKey reads a COption<Pubkey>: a u32 tag followed by 32 bytes.
func readOptionalKey(dec *binary.Decoder) (*solana.PublicKey, error) {
	tag, err := dec.ReadUint32(binary.LE)
	if err != nil {
		return nil, err
	}
	key, err := readKey(dec)
	if err != nil || tag == 0 {
		return nil, err
	}
	return &key, nil
}

// Decode reads the SPL token account layout; Token-2022 extensions after it are ignored.
func (l *AccountLayout) Decode(data []byte) (*Account, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("token account data too short (%d bytes)", len(data))
	}
	dec := binary.NewBinDecoder(data[:TokenAccountSize])

	var (
		out = &Account{}
		err error
	)
	if out.Mint, err = readKey(dec); err != nil {
		return nil, err
	}
	if out.Owner, err = readKey(dec); err != nil {
		return nil, err
	}
	if out.Amount, err = dec.ReadUint64(binary.LE); err != nil {
		return nil, err
	}
	if out.Delegate, err = readOptionalKey(dec); err != nil {
		return nil, err
	}
	state, err := dec.ReadUint8()
	if err != nil {
		return nil, err
	}
	out.IsInitialized = AccountState(state) != AccountStateUninitialized
	out.IsFrozen = AccountState(state) == AccountStateFrozen

	nativeTag, err := dec.ReadUint32(binary.LE)
	if err != nil {
		return nil, err
	}
	if _, err = dec.ReadUint64(binary.LE); err != nil {
		return nil, err
	}
	out.IsNative = nativeTag > 0

	if out.DelegatedAmount, err = dec.ReadUint64(binary.LE); err != nil {
		return nil, err
	}
	if out.CloseAuthority, err = readOptionalKey(dec); err != nil {
		return nil, err
	}
	return out, nil
}

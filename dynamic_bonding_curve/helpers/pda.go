package helpers

import (
	"bytes"

	solanago "github.com/gagliardetto/solana-go"
)

var seed = struct {
	PoolAuthority           []byte
	EventAuthority          []byte
	Pool                    []byte
	TokenVault              []byte
	DammV2MigrationMetadata []byte
	Position                []byte
	PositionNftAccount      []byte
	PositionVesting         []byte
}{
	PoolAuthority:           []byte("pool_authority"),
	EventAuthority:          []byte("__event_authority"),
	Pool:                    []byte("pool"),
	TokenVault:              []byte("token_vault"),
	DammV2MigrationMetadata: []byte("damm_v2"),
	Position:                []byte("position"),
	PositionNftAccount:      []byte("position_nft_account"),
	PositionVesting:         []byte("position_vesting"),
}

func DeriveDbcEventAuthority() solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{seed.EventAuthority}, DynamicBondingCurveProgramID)
	return pub
}

func DeriveDammV2EventAuthority() solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{seed.EventAuthority}, DammV2ProgramID)
	return pub
}

func DeriveDbcPoolAuthority() solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{seed.PoolAuthority}, DynamicBondingCurveProgramID)
	return pub
}

func DeriveDammV2PoolAuthority() solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{seed.PoolAuthority}, DammV2ProgramID)
	return pub
}

// DeriveDbcPoolAddress derives a virtual pool from its config and mint pair.
func DeriveDbcPoolAddress(quoteMint, baseMint, config solanago.PublicKey) solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{
		seed.Pool,
		config.Bytes(),
		GetFirstKey(quoteMint, baseMint),
		GetSecondKey(quoteMint, baseMint),
	}, DynamicBondingCurveProgramID)
	return pub
}

// DeriveDammV2PoolAddress derives the pool a graduated token lands in. The mint
// order does not matter.
func DeriveDammV2PoolAddress(config, tokenAMint, tokenBMint solanago.PublicKey) solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{
		seed.Pool,
		config.Bytes(),
		GetFirstKey(tokenAMint, tokenBMint),
		GetSecondKey(tokenAMint, tokenBMint),
	}, DammV2ProgramID)
	return pub
}

func DeriveDbcTokenVaultAddress(pool, mint solanago.PublicKey) solanago.PublicKey {
	// ["token_vault", mint, pool]
	pub, _, _ := solanago.FindProgramAddress([][]byte{seed.TokenVault, mint.Bytes(), pool.Bytes()}, DynamicBondingCurveProgramID)
	return pub
}

func DeriveDammV2MigrationMetadataAddress(pool solanago.PublicKey) solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{seed.DammV2MigrationMetadata, pool.Bytes()}, DynamicBondingCurveProgramID)
	return pub
}

func DeriveDammV2TokenVaultAddress(pool, mint solanago.PublicKey) solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{seed.TokenVault, mint.Bytes(), pool.Bytes()}, DammV2ProgramID)
	return pub
}

// DerivePositionAddress derives the DAMM v2 position PDA from the position NFT mint.
func DerivePositionAddress(positionNftMint solanago.PublicKey) solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{seed.Position, positionNftMint.Bytes()}, DammV2ProgramID)
	return pub
}

func DerivePositionNftAccount(positionNftMint solanago.PublicKey) solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{seed.PositionNftAccount, positionNftMint.Bytes()}, DammV2ProgramID)
	return pub
}

func DeriveDammV2PositionVestingAccount(position solanago.PublicKey) solanago.PublicKey {
	pub, _, _ := solanago.FindProgramAddress([][]byte{seed.PositionVesting, position.Bytes()}, DynamicBondingCurveProgramID)
	return pub
}

// GetFirstKey returns the larger of the two keys by byte order.
func GetFirstKey(a, b solanago.PublicKey) []byte {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return a.Bytes()
	}
	return b.Bytes()
}

func GetSecondKey(a, b solanago.PublicKey) []byte {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b.Bytes()
	}
	return a.Bytes()
}

package helpers

import (
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// NativeMint is the wrapped SOL mint.
var NativeMint = solanago.WrappedSol

type TokenType uint8

const (
	TokenTypeSPL       TokenType = 0
	TokenTypeToken2022 TokenType = 1
)

// CreateAssociatedTokenAccountIdempotentInstruction builds an ATA create that is a
// no-op when the account already exists. Works with SPL and Token-2022 mints.
func CreateAssociatedTokenAccountIdempotentInstruction(payer, ata, owner, mint, tokenProgram solanago.PublicKey) solanago.Instruction {
	accounts := solanago.AccountMetaSlice{
		solanago.NewAccountMeta(payer, true, true),
		solanago.NewAccountMeta(ata, true, false),
		solanago.NewAccountMeta(owner, false, false),
		solanago.NewAccountMeta(mint, false, false),
		solanago.NewAccountMeta(system.ProgramID, false, false),
		solanago.NewAccountMeta(tokenProgram, false, false),
	}
	// 1 = CreateIdempotent
	return solanago.NewInstruction(solanago.SPLAssociatedTokenAccountProgramID, accounts, []byte{1})
}

// GetOrCreateATAInstruction returns the owner's ATA and the idempotent create for it.
func GetOrCreateATAInstruction(tokenMint, owner, payer, tokenProgram solanago.PublicKey) (solanago.PublicKey, solanago.Instruction, error) {
	ata, err := FindAssociatedTokenAddress(owner, tokenMint, tokenProgram)
	if err != nil {
		return solanago.PublicKey{}, nil, err
	}
	return ata, CreateAssociatedTokenAccountIdempotentInstruction(payer, ata, owner, tokenMint, tokenProgram), nil
}

// UnwrapSOLInstruction closes the owner's WSOL account back into lamports.
func UnwrapSOLInstruction(owner, receiver solanago.PublicKey) (solanago.Instruction, error) {
	ata, err := FindAssociatedTokenAddress(owner, NativeMint, token.ProgramID)
	if err != nil {
		return nil, err
	}
	return token.NewCloseAccountInstructionBuilder().
		SetAccount(ata).
		SetDestinationAccount(receiver).
		SetOwnerAccount(owner).
		Build(), nil
}

func WrapSOLInstruction(from, to solanago.PublicKey, amount uint64) []solanago.Instruction {
	transferIx := system.NewTransferInstructionBuilder().
		SetFundingAccount(from).
		SetRecipientAccount(to).
		SetLamports(amount).
		Build()
	syncIx := token.NewSyncNativeInstructionBuilder().
		SetTokenAccount(to).
		Build()
	return []solanago.Instruction{transferIx, syncIx}
}

func FindAssociatedTokenAddress(wallet, mint, tokenProgram solanago.PublicKey) (solanago.PublicKey, error) {
	ata, _, err := solanago.FindProgramAddress([][]byte{wallet.Bytes(), tokenProgram.Bytes(), mint.Bytes()}, solanago.SPLAssociatedTokenAccountProgramID)
	return ata, err
}

func GetTokenProgram(tokenType TokenType) solanago.PublicKey {
	if tokenType == TokenTypeSPL {
		return token.ProgramID
	}
	return solanago.Token2022ProgramID
}

func IsNativeSol(mint solanago.PublicKey) bool {
	return mint.Equals(NativeMint)
}

package solana

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

func isATACreate(ix solana.Instruction) bool {
	return ix.ProgramID().Equals(solana.SPLAssociatedTokenAccountProgramID)
}

func isTokenProgram(program solana.PublicKey) bool {
	return program.Equals(token.ProgramID) || program.Equals(solana.Token2022ProgramID)
}

func isCloseAccount(ix solana.Instruction) bool {
	if !isTokenProgram(ix.ProgramID()) {
		return false
	}
	data, err := ix.Data()
	return err == nil && len(data) == 1 && data[0] == token.Instruction_CloseAccount
}

func sameInstruction(a, b solana.Instruction) bool {
	if !a.ProgramID().Equals(b.ProgramID()) {
		return false
	}
	as, bs := a.Accounts(), b.Accounts()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !as[i].PublicKey.Equals(bs[i].PublicKey) {
			return false
		}
	}
	ad, errA := a.Data()
	bd, errB := b.Data()
	return errA == nil && errB == nil && bytes.Equal(ad, bd)
}

func appendUnique(list []solana.Instruction, ix solana.Instruction) []solana.Instruction {
	for _, v := range list {
		if sameInstruction(v, ix) {
			return list
		}
	}
	return append(list, ix)
}

// SplitInstructions splits instructions into three phases: start, middle, end.
// ATA creates go first and account closes go last, each deduplicated.
func SplitInstructions(oldInstructions []solana.Instruction) ([]solana.Instruction, []solana.Instruction, []solana.Instruction) {
	var (
		startInstruction  []solana.Instruction
		middleInstruction []solana.Instruction
		endInstruction    []solana.Instruction
	)
	for _, v := range oldInstructions {
		switch {
		case isATACreate(v):
			startInstruction = appendUnique(startInstruction, v)
		case isCloseAccount(v):
			endInstruction = appendUnique(endInstruction, v)
		default:
			middleInstruction = append(middleInstruction, v)
		}
	}
	return startInstruction, middleInstruction, endInstruction
}

// MergeInstructions merges instructions
func MergeInstructions(oldInstructions []solana.Instruction) []solana.Instruction {
	var (
		newInstructions []solana.Instruction
	)

	startInstruction, middleInstruction, endInstruction := SplitInstructions(oldInstructions)

	newInstructions = append(newInstructions, startInstruction...)
	newInstructions = append(newInstructions, middleInstruction...)
	newInstructions = append(newInstructions, endInstruction...)

	return newInstructions
}

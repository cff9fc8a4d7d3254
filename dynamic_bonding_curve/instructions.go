package dynamic_bonding_curve

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
)

const (
	InstructionSwap                          = "swap"
	InstructionClaimTradingFee               = "claim_trading_fee"
	InstructionClaimCreatorTradingFee        = "claim_creator_trading_fee"
	InstructionMigrationDammV2CreateMetadata = "migration_damm_v2_create_metadata"
	InstructionMigrationDammV2               = "migration_damm_v2"
)

// SwapParameters are the borsh args of the swap instruction.
type SwapParameters struct {
	AmountIn         uint64
	MinimumAmountOut uint64
}

type claimArgs struct {
	MaxBaseAmount  uint64
	MaxQuoteAmount uint64
}

func instructionData(name string, args any) ([]byte, error) {
	disc := helpers.InstructionDiscriminator(name)
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// IsInstruction reports whether data starts with the discriminator of name.
func IsInstruction(data []byte, name string) bool {
	disc := helpers.InstructionDiscriminator(name)
	return len(data) >= 8 && bytes.Equal(data[:8], disc[:])
}

func NewSwapInstruction(
	params SwapParameters,
	poolAuthority solanago.PublicKey,
	config solanago.PublicKey,
	pool solanago.PublicKey,
	inputTokenAccount solanago.PublicKey,
	outputTokenAccount solanago.PublicKey,
	baseVault solanago.PublicKey,
	quoteVault solanago.PublicKey,
	baseMint solanago.PublicKey,
	quoteMint solanago.PublicKey,
	payer solanago.PublicKey,
	tokenBaseProgram solanago.PublicKey,
	tokenQuoteProgram solanago.PublicKey,
	referralTokenAccount solanago.PublicKey,
	eventAuthority solanago.PublicKey,
	program solanago.PublicKey,
) (*solanago.GenericInstruction, error) {
	data, err := instructionData(InstructionSwap, params)
	if err != nil {
		return nil, err
	}
	accounts := solanago.AccountMetaSlice{
		solanago.NewAccountMeta(poolAuthority, false, false),
		solanago.NewAccountMeta(config, false, false),
		solanago.NewAccountMeta(pool, true, false),
		solanago.NewAccountMeta(inputTokenAccount, true, false),
		solanago.NewAccountMeta(outputTokenAccount, true, false),
		solanago.NewAccountMeta(baseVault, true, false),
		solanago.NewAccountMeta(quoteVault, true, false),
		solanago.NewAccountMeta(baseMint, false, false),
		solanago.NewAccountMeta(quoteMint, false, false),
		solanago.NewAccountMeta(payer, false, true),
		solanago.NewAccountMeta(tokenBaseProgram, false, false),
		solanago.NewAccountMeta(tokenQuoteProgram, false, false),
		solanago.NewAccountMeta(referralTokenAccount, !referralTokenAccount.Equals(program), false),
		solanago.NewAccountMeta(eventAuthority, false, false),
		solanago.NewAccountMeta(program, false, false),
	}
	return solanago.NewInstruction(program, accounts, data), nil
}

// NewClaimTradingFeeInstruction claims the partner's share of trading fees.
func NewClaimTradingFeeInstruction(
	maxBaseAmount uint64,
	maxQuoteAmount uint64,
	poolAuthority solanago.PublicKey,
	config solanago.PublicKey,
	pool solanago.PublicKey,
	tokenAAccount solanago.PublicKey,
	tokenBAccount solanago.PublicKey,
	baseVault solanago.PublicKey,
	quoteVault solanago.PublicKey,
	baseMint solanago.PublicKey,
	quoteMint solanago.PublicKey,
	feeClaimer solanago.PublicKey,
	tokenBaseProgram solanago.PublicKey,
	tokenQuoteProgram solanago.PublicKey,
	eventAuthority solanago.PublicKey,
	program solanago.PublicKey,
) (*solanago.GenericInstruction, error) {
	data, err := instructionData(InstructionClaimTradingFee, claimArgs{MaxBaseAmount: maxBaseAmount, MaxQuoteAmount: maxQuoteAmount})
	if err != nil {
		return nil, err
	}
	accounts := solanago.AccountMetaSlice{
		solanago.NewAccountMeta(poolAuthority, false, false),
		solanago.NewAccountMeta(config, false, false),
		solanago.NewAccountMeta(pool, true, false),
		solanago.NewAccountMeta(tokenAAccount, true, false),
		solanago.NewAccountMeta(tokenBAccount, true, false),
		solanago.NewAccountMeta(baseVault, true, false),
		solanago.NewAccountMeta(quoteVault, true, false),
		solanago.NewAccountMeta(baseMint, false, false),
		solanago.NewAccountMeta(quoteMint, false, false),
		solanago.NewAccountMeta(feeClaimer, false, true),
		solanago.NewAccountMeta(tokenBaseProgram, false, false),
		solanago.NewAccountMeta(tokenQuoteProgram, false, false),
		solanago.NewAccountMeta(eventAuthority, false, false),
		solanago.NewAccountMeta(program, false, false),
	}
	return solanago.NewInstruction(program, accounts, data), nil
}

func NewClaimCreatorTradingFeeInstruction(
	maxBaseAmount uint64,
	maxQuoteAmount uint64,
	poolAuthority solanago.PublicKey,
	pool solanago.PublicKey,
	tokenAAccount solanago.PublicKey,
	tokenBAccount solanago.PublicKey,
	baseVault solanago.PublicKey,
	quoteVault solanago.PublicKey,
	baseMint solanago.PublicKey,
	quoteMint solanago.PublicKey,
	creator solanago.PublicKey,
	tokenBaseProgram solanago.PublicKey,
	tokenQuoteProgram solanago.PublicKey,
	eventAuthority solanago.PublicKey,
	program solanago.PublicKey,
) (*solanago.GenericInstruction, error) {
	data, err := instructionData(InstructionClaimCreatorTradingFee, claimArgs{MaxBaseAmount: maxBaseAmount, MaxQuoteAmount: maxQuoteAmount})
	if err != nil {
		return nil, err
	}
	accounts := solanago.AccountMetaSlice{
		solanago.NewAccountMeta(poolAuthority, false, false),
		solanago.NewAccountMeta(pool, true, false),
		solanago.NewAccountMeta(tokenAAccount, true, false),
		solanago.NewAccountMeta(tokenBAccount, true, false),
		solanago.NewAccountMeta(baseVault, true, false),
		solanago.NewAccountMeta(quoteVault, true, false),
		solanago.NewAccountMeta(baseMint, false, false),
		solanago.NewAccountMeta(quoteMint, false, false),
		solanago.NewAccountMeta(creator, false, true),
		solanago.NewAccountMeta(tokenBaseProgram, false, false),
		solanago.NewAccountMeta(tokenQuoteProgram, false, false),
		solanago.NewAccountMeta(eventAuthority, false, false),
		solanago.NewAccountMeta(program, false, false),
	}
	return solanago.NewInstruction(program, accounts, data), nil
}

func NewMigrationDammV2CreateMetadataInstruction(
	virtualPool solanago.PublicKey,
	config solanago.PublicKey,
	migrationMetadata solanago.PublicKey,
	payer solanago.PublicKey,
	systemProgram solanago.PublicKey,
	eventAuthority solanago.PublicKey,
	program solanago.PublicKey,
) (*solanago.GenericInstruction, error) {
	data, err := instructionData(InstructionMigrationDammV2CreateMetadata, nil)
	if err != nil {
		return nil, err
	}
	accounts := solanago.AccountMetaSlice{
		solanago.NewAccountMeta(virtualPool, false, false),
		solanago.NewAccountMeta(config, false, false),
		solanago.NewAccountMeta(migrationMetadata, true, false),
		solanago.NewAccountMeta(payer, true, true),
		solanago.NewAccountMeta(systemProgram, false, false),
		solanago.NewAccountMeta(eventAuthority, false, false),
		solanago.NewAccountMeta(program, false, false),
	}
	return solanago.NewInstruction(program, accounts, data), nil
}

func NewMigrationDammV2Instruction(
	virtualPool solanago.PublicKey,
	migrationMetadata solanago.PublicKey,
	config solanago.PublicKey,
	poolAuthority solanago.PublicKey,
	pool solanago.PublicKey,
	firstPositionNftMint solanago.PublicKey,
	firstPositionNftAccount solanago.PublicKey,
	firstPosition solanago.PublicKey,
	secondPositionNftMint solanago.PublicKey,
	secondPositionNftAccount solanago.PublicKey,
	secondPosition solanago.PublicKey,
	dammPoolAuthority solanago.PublicKey,
	ammProgram solanago.PublicKey,
	baseMint solanago.PublicKey,
	quoteMint solanago.PublicKey,
	tokenAVault solanago.PublicKey,
	tokenBVault solanago.PublicKey,
	baseVault solanago.PublicKey,
	quoteVault solanago.PublicKey,
	payer solanago.PublicKey,
	tokenBaseProgram solanago.PublicKey,
	tokenQuoteProgram solanago.PublicKey,
	token2022Program solanago.PublicKey,
	dammEventAuthority solanago.PublicKey,
	systemProgram solanago.PublicKey,
) (*solanago.GenericInstruction, error) {
	data, err := instructionData(InstructionMigrationDammV2, nil)
	if err != nil {
		return nil, err
	}
	accounts := solanago.AccountMetaSlice{
		solanago.NewAccountMeta(virtualPool, true, false),
		solanago.NewAccountMeta(migrationMetadata, false, false),
		solanago.NewAccountMeta(config, false, false),
		solanago.NewAccountMeta(poolAuthority, true, false),
		solanago.NewAccountMeta(pool, true, false),
		solanago.NewAccountMeta(firstPositionNftMint, true, true),
		solanago.NewAccountMeta(firstPositionNftAccount, true, false),
		solanago.NewAccountMeta(firstPosition, true, false),
		solanago.NewAccountMeta(secondPositionNftMint, true, true),
		solanago.NewAccountMeta(secondPositionNftAccount, true, false),
		solanago.NewAccountMeta(secondPosition, true, false),
		solanago.NewAccountMeta(dammPoolAuthority, false, false),
		solanago.NewAccountMeta(ammProgram, false, false),
		solanago.NewAccountMeta(baseMint, true, false),
		solanago.NewAccountMeta(quoteMint, true, false),
		solanago.NewAccountMeta(tokenAVault, true, false),
		solanago.NewAccountMeta(tokenBVault, true, false),
		solanago.NewAccountMeta(baseVault, true, false),
		solanago.NewAccountMeta(quoteVault, true, false),
		solanago.NewAccountMeta(payer, true, true),
		solanago.NewAccountMeta(tokenBaseProgram, false, false),
		solanago.NewAccountMeta(tokenQuoteProgram, false, false),
		solanago.NewAccountMeta(token2022Program, false, false),
		solanago.NewAccountMeta(dammEventAuthority, false, false),
		solanago.NewAccountMeta(systemProgram, false, false),
	}
	return solanago.NewInstruction(DynamicBondingCurveProgramID, accounts, data), nil
}

package dynamic_bonding_curve

import (
	"errors"

	solanago "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
)

type CreateDammV2MigrationMetadataParams struct {
	Payer       solanago.PublicKey
	VirtualPool solanago.PublicKey
	Config      solanago.PublicKey
}

type MigrateToDammV2Params struct {
	Payer           solanago.PublicKey
	VirtualPool     solanago.PublicKey
	PoolState       *VirtualPool
	PoolConfigState *PoolConfig
	DammConfig      solanago.PublicKey
}

// MigrateToDammV2Response carries the instructions and the two freshly generated
// position NFT mints, which must co-sign the transaction.
type MigrateToDammV2Response struct {
	Instructions      []solanago.Instruction
	DammPool          solanago.PublicKey
	FirstPositionNFT  solanago.PrivateKey
	SecondPositionNFT solanago.PrivateKey
}

// CreateDammV2MigrationMetadata creates migration metadata for DAMM V2.
func CreateDammV2MigrationMetadata(params CreateDammV2MigrationMetadataParams) (solanago.Instruction, error) {
	if params.Config.IsZero() {
		return nil, errors.New("pool config address is required")
	}
	migrationMetadata := helpers.DeriveDammV2MigrationMetadataAddress(params.VirtualPool)
	return NewMigrationDammV2CreateMetadataInstruction(
		params.VirtualPool,
		params.Config,
		migrationMetadata,
		params.Payer,
		system.ProgramID,
		helpers.DeriveDbcEventAuthority(),
		DynamicBondingCurveProgramID,
	)
}

// DammV2PoolForMigration derives the pool a graduated token lands in.
func DammV2PoolForMigration(pool *VirtualPool, config *PoolConfig) (solanago.PublicKey, error) {
	dammConfig := helpers.GetDammV2Config(config.MigrationFeeOption)
	if dammConfig.IsZero() {
		return solanago.PublicKey{}, errors.New("unknown migration fee option")
	}
	return helpers.DeriveDammV2PoolAddress(dammConfig, pool.BaseMint, config.QuoteMint), nil
}

// MigrateToDammV2 builds the migration instruction set and returns the position
// NFT keypairs.
func MigrateToDammV2(params MigrateToDammV2Params) (MigrateToDammV2Response, error) {
	virtualPoolState, poolConfigState := params.PoolState, params.PoolConfigState
	if virtualPoolState == nil || poolConfigState == nil {
		return MigrateToDammV2Response{}, errors.New("pool and config state are required")
	}

	dammPoolAuthority := helpers.DeriveDammV2PoolAuthority()
	dammEventAuthority := helpers.DeriveDammV2EventAuthority()
	migrationMetadata := helpers.DeriveDammV2MigrationMetadataAddress(params.VirtualPool)
	dammPool := helpers.DeriveDammV2PoolAddress(params.DammConfig, virtualPoolState.BaseMint, poolConfigState.QuoteMint)

	firstKP, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return MigrateToDammV2Response{}, err
	}
	secondKP, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return MigrateToDammV2Response{}, err
	}

	firstPosition := helpers.DerivePositionAddress(firstKP.PublicKey())
	firstPositionNftAccount := helpers.DerivePositionNftAccount(firstKP.PublicKey())
	secondPosition := helpers.DerivePositionAddress(secondKP.PublicKey())
	secondPositionNftAccount := helpers.DerivePositionNftAccount(secondKP.PublicKey())

	tokenAVault := helpers.DeriveDammV2TokenVaultAddress(dammPool, virtualPoolState.BaseMint)
	tokenBVault := helpers.DeriveDammV2TokenVaultAddress(dammPool, poolConfigState.QuoteMint)

	tokenBaseProgram := helpers.GetTokenProgram(TokenType(poolConfigState.TokenType))
	tokenQuoteProgram := helpers.GetTokenProgram(TokenType(poolConfigState.QuoteTokenFlag))

	ix, err := NewMigrationDammV2Instruction(
		params.VirtualPool,
		migrationMetadata,
		virtualPoolState.Config,
		helpers.DeriveDbcPoolAuthority(),
		dammPool,
		firstKP.PublicKey(),
		firstPositionNftAccount,
		firstPosition,
		secondKP.PublicKey(),
		secondPositionNftAccount,
		secondPosition,
		dammPoolAuthority,
		DammV2ProgramID,
		virtualPoolState.BaseMint,
		poolConfigState.QuoteMint,
		tokenAVault,
		tokenBVault,
		virtualPoolState.BaseVault,
		virtualPoolState.QuoteVault,
		params.Payer,
		tokenBaseProgram,
		tokenQuoteProgram,
		solanago.Token2022ProgramID,
		dammEventAuthority,
		system.ProgramID,
	)
	if err != nil {
		return MigrateToDammV2Response{}, err
	}

	// remaining accounts: damm_config, position vesting accounts
	ix.AccountValues = append(ix.AccountValues,
		solanago.NewAccountMeta(params.DammConfig, false, false),
		solanago.NewAccountMeta(helpers.DeriveDammV2PositionVestingAccount(firstPosition), true, false),
		solanago.NewAccountMeta(helpers.DeriveDammV2PositionVestingAccount(secondPosition), true, false),
	)

	cuIx := computebudget.NewSetComputeUnitLimitInstructionBuilder().SetUnits(MigrationComputeUnits).Build()

	return MigrateToDammV2Response{
		Instructions:      []solanago.Instruction{cuIx, ix},
		DammPool:          dammPool,
		FirstPositionNFT:  firstKP,
		SecondPositionNFT: secondKP,
	}, nil
}

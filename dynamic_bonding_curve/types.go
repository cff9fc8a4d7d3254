package dynamic_bonding_curve

import (
	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
)

type TokenType = helpers.TokenType

const (
	TokenTypeSPL       = helpers.TokenTypeSPL
	TokenTypeToken2022 = helpers.TokenTypeToken2022
)

type ActivationType = helpers.ActivationType

const (
	ActivationTypeSlot      = helpers.ActivationTypeSlot
	ActivationTypeTimestamp = helpers.ActivationTypeTimestamp
)

type MigrationOption = helpers.MigrationOption

const (
	MigrationOptionMetDamm   = helpers.MigrationOptionMetDamm
	MigrationOptionMetDammV2 = helpers.MigrationOptionMetDammV2
)

type BaseFeeMode = helpers.BaseFeeMode

const (
	BaseFeeModeFeeSchedulerLinear      = helpers.BaseFeeModeFeeSchedulerLinear
	BaseFeeModeFeeSchedulerExponential = helpers.BaseFeeModeFeeSchedulerExponential
	BaseFeeModeRateLimiter             = helpers.BaseFeeModeRateLimiter
)

type TradeDirection = helpers.TradeDirection

const (
	TradeDirectionBaseToQuote = helpers.TradeDirectionBaseToQuote
	TradeDirectionQuoteToBase = helpers.TradeDirectionQuoteToBase
)

type MigrationProgress = helpers.MigrationProgress

const (
	MigrationProgressPreBondingCurve  = helpers.MigrationProgressPreBondingCurve
	MigrationProgressPostBondingCurve = helpers.MigrationProgressPostBondingCurve
	MigrationProgressLockedVesting    = helpers.MigrationProgressLockedVesting
	MigrationProgressCreatedPool      = helpers.MigrationProgressCreatedPool
)

type VolatilityTracker struct {
	LastUpdateTimestamp   uint64
	Padding               [8]uint8
	SqrtPriceReference    bin.Uint128
	VolatilityAccumulator bin.Uint128
	VolatilityReference   bin.Uint128
}

type PoolMetrics struct {
	TotalProtocolBaseFee  uint64
	TotalProtocolQuoteFee uint64
	TotalTradingBaseFee   uint64
	TotalTradingQuoteFee  uint64
}

// VirtualPool is the on-chain bonding curve pool account, without its discriminator.
type VirtualPool struct {
	VolatilityTracker          VolatilityTracker
	Config                     solanago.PublicKey
	Creator                    solanago.PublicKey
	BaseMint                   solanago.PublicKey
	BaseVault                  solanago.PublicKey
	QuoteVault                 solanago.PublicKey
	BaseReserve                uint64
	QuoteReserve               uint64
	ProtocolBaseFee            uint64
	ProtocolQuoteFee           uint64
	PartnerBaseFee             uint64
	PartnerQuoteFee            uint64
	SqrtPrice                  bin.Uint128
	ActivationPoint            uint64
	PoolType                   uint8
	IsMigrated                 uint8
	IsPartnerWithdrawSurplus   uint8
	IsProtocolWithdrawSurplus  uint8
	MigrationProgress          uint8
	IsWithdrawLeftover         uint8
	IsCreatorWithdrawSurplus   uint8
	MigrationFeeWithdrawStatus uint8
	Metrics                    PoolMetrics
	FinishCurveTimestamp       uint64
	CreatorBaseFee             uint64
	CreatorQuoteFee            uint64
}

// Migrated reports the monotonic on-chain migration flag.
func (p *VirtualPool) Migrated() bool {
	return p.IsMigrated != 0
}

// ThresholdReached reports whether the curve is complete but the pool not yet migrated.
func (p *VirtualPool) ThresholdReached() bool {
	return MigrationProgress(p.MigrationProgress) == MigrationProgressCreatedPool && !p.Migrated()
}

type BaseFeeConfig struct {
	CliffFeeNumerator uint64
	SecondFactor      uint64
	ThirdFactor       uint64
	FirstFactor       uint16
	BaseFeeMode       uint8
	Padding0          [5]uint8
}

type DynamicFeeConfig struct {
	Initialized              uint8
	Padding                  [7]uint8
	MaxVolatilityAccumulator uint32
	VariableFeeControl       uint32
	BinStep                  uint16
	FilterPeriod             uint16
	DecayPeriod              uint16
	ReductionFactor          uint16
	Padding2                 [8]uint8
	BinStepU128              bin.Uint128
}

type PoolFeesConfig struct {
	BaseFee            BaseFeeConfig
	DynamicFee         DynamicFeeConfig
	Padding0           [5]uint64
	Padding1           [6]uint8
	ProtocolFeePercent uint8
	ReferralFeePercent uint8
}

type LockedVestingConfig struct {
	AmountPerPeriod                uint64
	CliffDurationFromMigrationTime uint64
	Frequency                      uint64
	NumberOfPeriod                 uint64
	CliffUnlockAmount              uint64
	Padding                        uint64
}

// PoolConfig holds the immutable parameters a pool was created with.
type PoolConfig struct {
	QuoteMint                     solanago.PublicKey
	FeeClaimer                    solanago.PublicKey
	LeftoverReceiver              solanago.PublicKey
	PoolFees                      PoolFeesConfig
	CollectFeeMode                uint8
	MigrationOption               uint8
	ActivationType                uint8
	TokenDecimal                  uint8
	Version                       uint8
	TokenType                     uint8
	QuoteTokenFlag                uint8
	PartnerLockedLpPercentage     uint8
	PartnerLpPercentage           uint8
	CreatorLockedLpPercentage     uint8
	CreatorLpPercentage           uint8
	MigrationFeeOption            uint8
	FixedTokenSupplyFlag          uint8
	CreatorTradingFeePercentage   uint8
	TokenUpdateAuthority          uint8
	MigrationFeePercentage        uint8
	CreatorMigrationFeePercentage uint8
	Padding1                      [7]uint8
	SwapBaseAmount                uint64
	MigrationQuoteThreshold       uint64
	MigrationBaseThreshold        uint64
	MigrationSqrtPrice            bin.Uint128
	LockedVestingConfig           LockedVestingConfig
	PreMigrationTokenSupply       uint64
	PostMigrationTokenSupply      uint64
}

// ProgramAccount pairs a decoded account with its address.
type ProgramAccount[T any] struct {
	Pubkey  solanago.PublicKey
	Account *T
}

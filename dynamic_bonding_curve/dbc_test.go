package dynamic_bonding_curve

import (
	"encoding/binary"
	"errors"
	"math/big"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
)

func TestAccountOffsets(t *testing.T) {
	// discriminator + 64 byte volatility tracker
	require.EqualValues(t, 72, VirtualPoolConfigOffset)
	require.EqualValues(t, 104, VirtualPoolCreatorOffset)
	require.EqualValues(t, 136, VirtualPoolBaseMintOffset)
	require.EqualValues(t, 40, PoolConfigFeeClaimerOffset)
}

func TestParseAccount(t *testing.T) {
	creator := solanago.NewWallet().PublicKey()
	data, err := EncodeVirtualPool(&VirtualPool{Creator: creator, QuoteReserve: 42, IsMigrated: 1})
	require.NoError(t, err)
	require.Equal(t, creator[:], data[VirtualPoolCreatorOffset:VirtualPoolCreatorOffset+32])

	pool, err := ParseAccount_VirtualPool(data)
	require.NoError(t, err)
	require.Equal(t, creator, pool.Creator)
	require.EqualValues(t, 42, pool.QuoteReserve)
	require.True(t, pool.Migrated())

	_, err = ParseAccount_PoolConfig(data)
	require.True(t, errors.Is(err, ErrDiscriminatorMismatch))

	_, err = ParseAccount_VirtualPool(data[:4])
	require.Error(t, err)
}

func TestThresholdReached(t *testing.T) {
	pool := &VirtualPool{MigrationProgress: uint8(MigrationProgressPostBondingCurve)}
	require.False(t, pool.ThresholdReached())
	pool.MigrationProgress = uint8(MigrationProgressCreatedPool)
	require.True(t, pool.ThresholdReached())
	pool.IsMigrated = 1
	require.False(t, pool.ThresholdReached())
}

func TestSwapInstructionData(t *testing.T) {
	ix, err := NewSwapInstruction(SwapParameters{AmountIn: 1_000, MinimumAmountOut: 7},
		solanago.PublicKey{}, solanago.PublicKey{}, solanago.PublicKey{}, solanago.PublicKey{},
		solanago.PublicKey{}, solanago.PublicKey{}, solanago.PublicKey{}, solanago.PublicKey{},
		solanago.PublicKey{}, solanago.PublicKey{}, solanago.PublicKey{}, solanago.PublicKey{},
		solanago.PublicKey{}, solanago.PublicKey{}, DynamicBondingCurveProgramID)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 24)
	require.True(t, IsInstruction(data, InstructionSwap))
	require.False(t, IsInstruction(data, InstructionClaimTradingFee))
	require.EqualValues(t, 1_000, binary.LittleEndian.Uint64(data[8:16]))
	require.EqualValues(t, 7, binary.LittleEndian.Uint64(data[16:24]))
}

func rateLimited() (*PoolConfig, *VirtualPool) {
	config := &PoolConfig{}
	config.PoolFees.BaseFee = BaseFeeConfig{
		CliffFeeNumerator: 10_000_000,
		FirstFactor:       10,
		SecondFactor:      100,
		ThirdFactor:       1_000_000_000,
		BaseFeeMode:       uint8(BaseFeeModeRateLimiter),
	}
	return config, &VirtualPool{ActivationPoint: 1_000}
}

func TestIsRateLimiterApplied(t *testing.T) {
	config, pool := rateLimited()

	require.True(t, IsRateLimiterApplied(config, pool, TradeDirectionQuoteToBase, big.NewInt(1_050)))
	require.True(t, IsRateLimiterApplied(config, pool, TradeDirectionQuoteToBase, big.NewInt(1_100)))
	require.False(t, IsRateLimiterApplied(config, pool, TradeDirectionQuoteToBase, big.NewInt(1_101)))
	require.False(t, IsRateLimiterApplied(config, pool, TradeDirectionBaseToQuote, big.NewInt(1_050)))
	require.False(t, IsRateLimiterApplied(config, pool, TradeDirectionQuoteToBase, nil))

	config.PoolFees.BaseFee.BaseFeeMode = uint8(BaseFeeModeFeeSchedulerLinear)
	require.False(t, IsRateLimiterApplied(config, pool, TradeDirectionQuoteToBase, big.NewInt(1_050)))
}

func TestBuildSwapWrapsNativeQuote(t *testing.T) {
	owner := solanago.NewWallet().PublicKey()
	config := &PoolConfig{QuoteMint: solanago.WrappedSol}
	pool := &VirtualPool{BaseMint: solanago.NewWallet().PublicKey()}

	pre, ix, post, err := BuildSwap(SwapParams{
		Pool: solanago.NewWallet().PublicKey(), PoolState: pool, PoolConfigState: config,
		Owner: owner, AmountIn: 5_000, Direction: TradeDirectionQuoteToBase,
	})
	require.NoError(t, err)
	// two idempotent ATA creates, then transfer + sync_native
	require.Len(t, pre, 4)
	require.Equal(t, solanago.SystemProgramID, pre[2].ProgramID())
	require.Len(t, post, 1)
	require.Equal(t, solanago.TokenProgramID, post[0].ProgramID())

	wsolATA, err := helpers.FindAssociatedTokenAddress(owner, solanago.WrappedSol, solanago.TokenProgramID)
	require.NoError(t, err)
	// input token account follows pool authority, config and pool
	require.Equal(t, wsolATA, ix.Accounts()[3].PublicKey)

	// selling a base token never wraps
	pre, _, post, err = BuildSwap(SwapParams{
		Pool: solanago.NewWallet().PublicKey(), PoolState: pool, PoolConfigState: config,
		Owner: owner, AmountIn: 5_000, Direction: TradeDirectionBaseToQuote,
	})
	require.NoError(t, err)
	require.Len(t, pre, 2)
	require.Len(t, post, 1)

	_, _, _, err = BuildSwap(SwapParams{PoolState: pool, PoolConfigState: config, Owner: owner})
	require.Error(t, err)
}

func TestBuildSwapRateLimiterAccount(t *testing.T) {
	config, pool := rateLimited()
	config.QuoteMint = solanago.WrappedSol
	params := SwapParams{
		PoolState: pool, PoolConfigState: config, Owner: solanago.NewWallet().PublicKey(),
		AmountIn: 1, Direction: TradeDirectionQuoteToBase, CurrentPoint: big.NewInt(1_000),
	}
	_, ix, _, err := BuildSwap(params)
	require.NoError(t, err)
	accounts := ix.Accounts()
	require.Equal(t, solanago.SysVarInstructionsPubkey, accounts[len(accounts)-1].PublicKey)
}

func TestDammV2PoolForMigration(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var base, quote solanago.PublicKey
		copy(base[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(rt, "base"))
		copy(quote[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(rt, "quote"))
		option := rapid.Uint8Range(0, uint8(len(helpers.DammV2MigrationFeeAddress)-1)).Draw(rt, "feeOption")

		pool := &VirtualPool{BaseMint: base}
		config := &PoolConfig{QuoteMint: quote, MigrationFeeOption: option}

		first, err := DammV2PoolForMigration(pool, config)
		require.NoError(rt, err)
		second, err := DammV2PoolForMigration(pool, config)
		require.NoError(rt, err)
		require.Equal(rt, first, second)

		dammConfig := helpers.GetDammV2Config(option)
		require.Equal(rt, first, helpers.DeriveDammV2PoolAddress(dammConfig, quote, base))
	})

	_, err := DammV2PoolForMigration(&VirtualPool{}, &PoolConfig{MigrationFeeOption: 200})
	require.Error(t, err)
}

func TestMigrateToDammV2(t *testing.T) {
	pool := &VirtualPool{
		Config:   solanago.NewWallet().PublicKey(),
		BaseMint: solanago.NewWallet().PublicKey(),
	}
	config := &PoolConfig{QuoteMint: solanago.WrappedSol, MigrationFeeOption: 2}
	dammConfig := helpers.GetDammV2Config(config.MigrationFeeOption)

	res, err := MigrateToDammV2(MigrateToDammV2Params{
		Payer:           solanago.NewWallet().PublicKey(),
		VirtualPool:     solanago.NewWallet().PublicKey(),
		PoolState:       pool,
		PoolConfigState: config,
		DammConfig:      dammConfig,
	})
	require.NoError(t, err)
	require.Len(t, res.Instructions, 2)
	require.Equal(t, solanago.ComputeBudget, res.Instructions[0].ProgramID())

	expected, err := DammV2PoolForMigration(pool, config)
	require.NoError(t, err)
	require.Equal(t, expected, res.DammPool)
	require.NotEqual(t, res.FirstPositionNFT.PublicKey(), res.SecondPositionNFT.PublicKey())

	ix := res.Instructions[1]
	data, err := ix.Data()
	require.NoError(t, err)
	require.True(t, IsInstruction(data, InstructionMigrationDammV2))

	accounts := ix.Accounts()
	require.Equal(t, dammConfig, accounts[len(accounts)-3].PublicKey)
	signers := 0
	for _, a := range accounts {
		if a.IsSigner {
			signers++
		}
	}
	// payer and both position NFT mints
	require.Equal(t, 3, signers)

	_, err = MigrateToDammV2(MigrateToDammV2Params{})
	require.Error(t, err)
}

package dynamic_bonding_curve

import (
	"errors"
	"math/big"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
)

type SwapParams struct {
	Pool             solanago.PublicKey
	PoolState        *VirtualPool
	PoolConfigState  *PoolConfig
	Owner            solanago.PublicKey
	Payer            *solanago.PublicKey
	AmountIn         uint64
	MinimumAmountOut uint64
	Direction        TradeDirection
	// CurrentPoint is the slot or timestamp matching the config's activation type.
	// Only consulted when the rate limiter is configured.
	CurrentPoint         *big.Int
	ReferralTokenAccount *solanago.PublicKey
}

// RateLimiterConfigured reports whether the pool's base fee runs in rate limiter
// mode with non-zero parameters.
func RateLimiterConfigured(config *PoolConfig) bool {
	baseFee := config.PoolFees.BaseFee
	if BaseFeeMode(baseFee.BaseFeeMode) != BaseFeeModeRateLimiter {
		return false
	}
	return !(baseFee.FirstFactor == 0 && baseFee.SecondFactor == 0 && baseFee.ThirdFactor == 0)
}

// IsRateLimiterApplied reports whether a swap must carry the instructions sysvar.
// The limiter only affects buys inside [activation, activation+maxLimiterDuration].
func IsRateLimiterApplied(config *PoolConfig, pool *VirtualPool, direction TradeDirection, currentPoint *big.Int) bool {
	if !RateLimiterConfigured(config) || currentPoint == nil {
		return false
	}
	if direction == TradeDirectionBaseToQuote {
		return false
	}
	lastEffective := new(big.Int).Add(
		new(big.Int).SetUint64(pool.ActivationPoint),
		new(big.Int).SetUint64(config.PoolFees.BaseFee.SecondFactor),
	)
	return currentPoint.Cmp(lastEffective) <= 0
}

// BuildSwap assembles token account preparation, the swap itself and the WSOL unwrap.
func BuildSwap(params SwapParams) (pre []solanago.Instruction, ix solanago.Instruction, post []solanago.Instruction, err error) {
	if params.AmountIn == 0 {
		return nil, nil, nil, errors.New("swap amount must be greater than zero")
	}
	if params.PoolState == nil || params.PoolConfigState == nil {
		return nil, nil, nil, errors.New("pool and config state are required")
	}
	poolState, poolConfigState := params.PoolState, params.PoolConfigState

	baseProgram := helpers.GetTokenProgram(TokenType(poolState.PoolType))
	quoteProgram := helpers.GetTokenProgram(TokenType(poolConfigState.QuoteTokenFlag))

	inputMint, outputMint := poolState.BaseMint, poolConfigState.QuoteMint
	inputProgram, outputProgram := baseProgram, quoteProgram
	if params.Direction == TradeDirectionQuoteToBase {
		inputMint, outputMint = outputMint, inputMint
		inputProgram, outputProgram = outputProgram, inputProgram
	}

	payer := params.Owner
	if params.Payer != nil {
		payer = *params.Payer
	}

	ataIn, createIn, err := helpers.GetOrCreateATAInstruction(inputMint, params.Owner, payer, inputProgram)
	if err != nil {
		return nil, nil, nil, err
	}
	ataOut, createOut, err := helpers.GetOrCreateATAInstruction(outputMint, params.Owner, payer, outputProgram)
	if err != nil {
		return nil, nil, nil, err
	}
	pre = []solanago.Instruction{createIn, createOut}

	if helpers.IsNativeSol(inputMint) {
		pre = append(pre, helpers.WrapSOLInstruction(params.Owner, ataIn, params.AmountIn)...)
	}
	if helpers.IsNativeSol(inputMint) || helpers.IsNativeSol(outputMint) {
		unwrapIx, uerr := helpers.UnwrapSOLInstruction(params.Owner, params.Owner)
		if uerr != nil {
			return nil, nil, nil, uerr
		}
		post = append(post, unwrapIx)
	}

	referral := DynamicBondingCurveProgramID
	if params.ReferralTokenAccount != nil {
		referral = *params.ReferralTokenAccount
	}

	swapIx, err := NewSwapInstruction(
		SwapParameters{
			AmountIn:         params.AmountIn,
			MinimumAmountOut: params.MinimumAmountOut,
		},
		helpers.DeriveDbcPoolAuthority(),
		poolState.Config,
		params.Pool,
		ataIn,
		ataOut,
		poolState.BaseVault,
		poolState.QuoteVault,
		poolState.BaseMint,
		poolConfigState.QuoteMint,
		params.Owner,
		baseProgram,
		quoteProgram,
		referral,
		helpers.DeriveDbcEventAuthority(),
		DynamicBondingCurveProgramID,
	)
	if err != nil {
		return nil, nil, nil, err
	}

	// rate limiter remaining account
	if IsRateLimiterApplied(poolConfigState, poolState, params.Direction, params.CurrentPoint) {
		swapIx.AccountValues = append(swapIx.AccountValues, solanago.NewAccountMeta(solanago.SysVarInstructionsPubkey, false, false))
	}

	return pre, swapIx, post, nil
}

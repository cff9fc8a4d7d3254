package dynamic_bonding_curve

import (
	solanago "github.com/gagliardetto/solana-go"

	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
)

type ClaimTradingFeeParams struct {
	Pool            solanago.PublicKey
	PoolState       *VirtualPool
	PoolConfigState *PoolConfig
	// Claimer signs the claim: the config's fee claimer for partner claims, the
	// pool creator for creator claims.
	Claimer        solanago.PublicKey
	Payer          solanago.PublicKey
	MaxBaseAmount  uint64
	MaxQuoteAmount uint64
}

type claimTradingFeeAccounts struct {
	tokenBaseAccount  solanago.PublicKey
	tokenQuoteAccount solanago.PublicKey
	tokenBaseProgram  solanago.PublicKey
	tokenQuoteProgram solanago.PublicKey
}

// prepareClaimAccounts creates the claimer's token accounts and, for a native
// quote mint, closes the WSOL account back to the claimer afterwards.
func prepareClaimAccounts(params ClaimTradingFeeParams) (accs claimTradingFeeAccounts, pre []solanago.Instruction, post []solanago.Instruction, err error) {
	accs.tokenBaseProgram = helpers.GetTokenProgram(TokenType(params.PoolConfigState.TokenType))
	accs.tokenQuoteProgram = helpers.GetTokenProgram(TokenType(params.PoolConfigState.QuoteTokenFlag))

	payer := params.Payer
	if payer.IsZero() {
		payer = params.Claimer
	}

	var createBase, createQuote solanago.Instruction
	accs.tokenBaseAccount, createBase, err = helpers.GetOrCreateATAInstruction(params.PoolState.BaseMint, params.Claimer, payer, accs.tokenBaseProgram)
	if err != nil {
		return accs, nil, nil, err
	}
	accs.tokenQuoteAccount, createQuote, err = helpers.GetOrCreateATAInstruction(params.PoolConfigState.QuoteMint, params.Claimer, payer, accs.tokenQuoteProgram)
	if err != nil {
		return accs, nil, nil, err
	}
	pre = []solanago.Instruction{createBase, createQuote}

	if helpers.IsNativeSol(params.PoolConfigState.QuoteMint) {
		unwrapIx, err := helpers.UnwrapSOLInstruction(params.Claimer, params.Claimer)
		if err != nil {
			return accs, nil, nil, err
		}
		post = append(post, unwrapIx)
	}
	return accs, pre, post, nil
}

// ClaimPartnerTradingFee builds the partner claim for at most the given amounts.
func ClaimPartnerTradingFee(params ClaimTradingFeeParams) (pre []solanago.Instruction, ix solanago.Instruction, post []solanago.Instruction, err error) {
	accs, pre, post, err := prepareClaimAccounts(params)
	if err != nil {
		return nil, nil, nil, err
	}
	ix, err = NewClaimTradingFeeInstruction(
		params.MaxBaseAmount,
		params.MaxQuoteAmount,
		helpers.DeriveDbcPoolAuthority(),
		params.PoolState.Config,
		params.Pool,
		accs.tokenBaseAccount,
		accs.tokenQuoteAccount,
		params.PoolState.BaseVault,
		params.PoolState.QuoteVault,
		params.PoolState.BaseMint,
		params.PoolConfigState.QuoteMint,
		params.Claimer,
		accs.tokenBaseProgram,
		accs.tokenQuoteProgram,
		helpers.DeriveDbcEventAuthority(),
		DynamicBondingCurveProgramID,
	)
	if err != nil {
		return nil, nil, nil, err
	}
	return pre, ix, post, nil
}

// ClaimCreatorTradingFee builds the creator claim for at most the given amounts.
func ClaimCreatorTradingFee(params ClaimTradingFeeParams) (pre []solanago.Instruction, ix solanago.Instruction, post []solanago.Instruction, err error) {
	accs, pre, post, err := prepareClaimAccounts(params)
	if err != nil {
		return nil, nil, nil, err
	}
	ix, err = NewClaimCreatorTradingFeeInstruction(
		params.MaxBaseAmount,
		params.MaxQuoteAmount,
		helpers.DeriveDbcPoolAuthority(),
		params.Pool,
		accs.tokenBaseAccount,
		accs.tokenQuoteAccount,
		params.PoolState.BaseVault,
		params.PoolState.QuoteVault,
		params.PoolState.BaseMint,
		params.PoolConfigState.QuoteMint,
		params.Claimer,
		accs.tokenBaseProgram,
		accs.tokenQuoteProgram,
		helpers.DeriveDbcEventAuthority(),
		DynamicBondingCurveProgramID,
	)
	if err != nil {
		return nil, nil, nil, err
	}
	return pre, ix, post, nil
}

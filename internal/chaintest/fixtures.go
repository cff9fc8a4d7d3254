package chaintest

import (
	"github.com/gagliardetto/solana-go"

	dbc "github.com/krazyTry/meteora-graduator/dynamic_bonding_curve"
	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
	"github.com/krazyTry/meteora-graduator/u128"
)

// SqrtPriceOne is Q64.64 for a raw price of 1 quote atom per base atom.
const SqrtPriceOne = "18446744073709551616"

const (
	BaseDecimals  = 6
	QuoteDecimals = 9
)

// Config returns a DAMM v2 migrating config quoted in SOL.
func Config(feeClaimer solana.PublicKey) *dbc.PoolConfig {
	return &dbc.PoolConfig{
		QuoteMint:                   solana.WrappedSol,
		FeeClaimer:                  feeClaimer,
		LeftoverReceiver:            feeClaimer,
		MigrationOption:             uint8(dbc.MigrationOptionMetDammV2),
		ActivationType:              uint8(dbc.ActivationTypeSlot),
		TokenDecimal:                BaseDecimals,
		TokenType:                   uint8(dbc.TokenTypeSPL),
		QuoteTokenFlag:              uint8(dbc.TokenTypeSPL),
		PartnerLpPercentage:         50,
		CreatorLpPercentage:         50,
		MigrationFeeOption:          0,
		CreatorTradingFeePercentage: 50,
		MigrationQuoteThreshold:     85_000_000_000,
		PoolFees: dbc.PoolFeesConfig{
			BaseFee: dbc.BaseFeeConfig{CliffFeeNumerator: 10_000_000},
		},
		PreMigrationTokenSupply:  1_000_000_000_000_000,
		PostMigrationTokenSupply: 1_000_000_000_000_000,
	}
}

// Pool returns a trading pool priced at SqrtPriceOne.
func Pool(config, creator, baseMint solana.PublicKey) *dbc.VirtualPool {
	pool := helpers.DeriveDbcPoolAddress(solana.WrappedSol, baseMint, config)
	return &dbc.VirtualPool{
		Config:            config,
		Creator:           creator,
		BaseMint:          baseMint,
		BaseVault:         helpers.DeriveDbcTokenVaultAddress(pool, baseMint),
		QuoteVault:        helpers.DeriveDbcTokenVaultAddress(pool, solana.WrappedSol),
		BaseReserve:       800_000_000_000_000,
		QuoteReserve:      10_000_000_000,
		SqrtPrice:         u128.GenUint128FromString(SqrtPriceOne),
		MigrationProgress: uint8(dbc.MigrationProgressPreBondingCurve),
	}
}

func (f *FakeRPC) SetPool(address solana.PublicKey, pool *dbc.VirtualPool) {
	data, err := dbc.EncodeVirtualPool(pool)
	if err != nil {
		panic(err)
	}
	f.SetAccount(address, dbc.DynamicBondingCurveProgramID, data)
}

func (f *FakeRPC) SetConfig(address solana.PublicKey, config *dbc.PoolConfig) {
	data, err := dbc.EncodePoolConfig(config)
	if err != nil {
		panic(err)
	}
	f.SetAccount(address, dbc.DynamicBondingCurveProgramID, data)
}

// Pool decodes the pool stored at address.
func (f *FakeRPC) Pool(address solana.PublicKey) *dbc.VirtualPool {
	pool, err := dbc.ParseAccount_VirtualPool(f.AccountData(address))
	if err != nil {
		panic(err)
	}
	return pool
}

// UpdatePool applies fn to the stored pool.
func (f *FakeRPC) UpdatePool(address solana.PublicKey, fn func(*dbc.VirtualPool)) {
	pool := f.Pool(address)
	fn(pool)
	f.SetPool(address, pool)
}

// Market is a single pool with its config, mints and actors.
type Market struct {
	Config     solana.PublicKey
	Pool       solana.PublicKey
	BaseMint   solana.PublicKey
	Creator    solana.PrivateKey
	Partner    solana.PrivateKey
	ConfigData *dbc.PoolConfig
}

// NewMarket registers a fresh market on f.
func NewMarket(f *FakeRPC) *Market {
	m := &Market{
		Config:   solana.NewWallet().PublicKey(),
		BaseMint: solana.NewWallet().PublicKey(),
		Creator:  solana.NewWallet().PrivateKey,
		Partner:  solana.NewWallet().PrivateKey,
	}
	m.Pool = helpers.DeriveDbcPoolAddress(solana.WrappedSol, m.BaseMint, m.Config)
	m.ConfigData = Config(m.Partner.PublicKey())

	f.SetConfig(m.Config, m.ConfigData)
	f.SetPool(m.Pool, Pool(m.Config, m.Creator.PublicKey(), m.BaseMint))
	f.SetMint(m.BaseMint, BaseDecimals, 1_000_000_000_000_000)
	f.SetMint(solana.WrappedSol, QuoteDecimals, 0)
	return m
}

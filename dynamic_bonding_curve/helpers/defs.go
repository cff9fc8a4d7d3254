package helpers

type ActivationType uint8

const (
	ActivationTypeSlot      ActivationType = 0
	ActivationTypeTimestamp ActivationType = 1
)

type MigrationOption uint8

const (
	MigrationOptionMetDamm   MigrationOption = 0
	MigrationOptionMetDammV2 MigrationOption = 1
)

type BaseFeeMode uint8

const (
	BaseFeeModeFeeSchedulerLinear      BaseFeeMode = 0
	BaseFeeModeFeeSchedulerExponential BaseFeeMode = 1
	BaseFeeModeRateLimiter             BaseFeeMode = 2
)

// TradeDirection is always passed explicitly to the swap builder.
type TradeDirection uint8

const (
	TradeDirectionBaseToQuote TradeDirection = 0
	TradeDirectionQuoteToBase TradeDirection = 1
)

func (d TradeDirection) String() string {
	switch d {
	case TradeDirectionBaseToQuote:
		return "base_to_quote"
	case TradeDirectionQuoteToBase:
		return "quote_to_base"
	}
	return "unknown"
}

// MigrationProgress defines the migration progress states
type MigrationProgress uint8

const (
	MigrationProgressPreBondingCurve MigrationProgress = iota
	MigrationProgressPostBondingCurve
	MigrationProgressLockedVesting
	MigrationProgressCreatedPool
)

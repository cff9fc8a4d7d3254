package dynamic_bonding_curve

import (
	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
)

var (
	DynamicBondingCurveProgramID = helpers.DynamicBondingCurveProgramID
	DammV2ProgramID              = helpers.DammV2ProgramID
)

const (
	// MigrationComputeUnits is the compute limit requested for migration_damm_v2.
	MigrationComputeUnits = 600_000
	FeeDenominator        = helpers.FeeDenominator
)

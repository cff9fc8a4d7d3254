package helpers

import (
	solanago "github.com/gagliardetto/solana-go"
)

const (
	AccountKeyPoolConfig            = "PoolConfig"
	AccountKeyVirtualPool           = "VirtualPool"
	AccountKeyMeteoraDammV2Metadata = "MeteoraDammV2Metadata"
)

// FeeDenominator is the denominator of every fee numerator stored by the program.
const FeeDenominator = 1_000_000_000

var (
	DynamicBondingCurveProgramID = solanago.MustPublicKeyFromBase58("dbcij3LWUppWqq96dh6gJWwBifmcGfLSB5D4DuSMaqN")
	DammV2ProgramID              = solanago.MustPublicKeyFromBase58("cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG")

	// DammV2MigrationFeeAddress is indexed by the config's migration fee option.
	DammV2MigrationFeeAddress = []solanago.PublicKey{
		solanago.MustPublicKeyFromBase58("7F6dnUcRuyM2TwR8myT1dYypFXpPSxqwKNSFNkxyNESd"),
		solanago.MustPublicKeyFromBase58("2nHK1kju6XjphBLbNxpM5XRGFj7p9U8vvNzyZiha1z6k"),
		solanago.MustPublicKeyFromBase58("Hv8Lmzmnju6m7kcokVKvwqz7QPmdX9XfKjJsXz8RXcjp"),
		solanago.MustPublicKeyFromBase58("2c4cYd4reUYVRAB9kUUkrq55VPyy2FNQ3FDL4o12JXmq"),
		solanago.MustPublicKeyFromBase58("AkmQWebAwFvWk55wBoCr5D62C6VVDTzi84NJuD9H7cFD"),
		solanago.MustPublicKeyFromBase58("DbCRBj8McvPYHJG1ukj8RE15h2dCNUdTAESG49XpQ44u"),
		solanago.MustPublicKeyFromBase58("A8gMrEPJkacWkcb3DGwtJwTe16HktSEfvwtuDh2MCtck"),
	}
)

// GetDammV2Config returns the DAMM v2 config a pool migrates into, or the zero key
// when the option is outside the known range.
func GetDammV2Config(migrationFeeOption uint8) solanago.PublicKey {
	if int(migrationFeeOption) >= len(DammV2MigrationFeeAddress) {
		return solanago.PublicKey{}
	}
	return DammV2MigrationFeeAddress[migrationFeeOption]
}

package dynamic_bonding_curve

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/krazyTry/meteora-graduator/dynamic_bonding_curve/helpers"
)

var (
	VirtualPoolDiscriminator         = helpers.AccountDiscriminator(helpers.AccountKeyVirtualPool)
	PoolConfigDiscriminator          = helpers.AccountDiscriminator(helpers.AccountKeyPoolConfig)
	DammV2MigrationMetaDiscriminator = helpers.AccountDiscriminator(helpers.AccountKeyMeteoraDammV2Metadata)
)

// ErrDiscriminatorMismatch is returned when account data belongs to another account type.
var ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")

func parseAccount(data []byte, disc [8]byte, name string, out any) error {
	if len(data) < 8 {
		return fmt.Errorf("%s: account data too short (%d bytes)", name, len(data))
	}
	if !bytes.Equal(data[:8], disc[:]) {
		return fmt.Errorf("%s: %w", name, ErrDiscriminatorMismatch)
	}
	if err := bin.NewBorshDecoder(data[8:]).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", name, err)
	}
	return nil
}

func encodeAccount(disc [8]byte, v any) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ParseAccount_VirtualPool(data []byte) (*VirtualPool, error) {
	out := new(VirtualPool)
	if err := parseAccount(data, VirtualPoolDiscriminator, helpers.AccountKeyVirtualPool, out); err != nil {
		return nil, err
	}
	return out, nil
}

func ParseAccount_PoolConfig(data []byte) (*PoolConfig, error) {
	out := new(PoolConfig)
	if err := parseAccount(data, PoolConfigDiscriminator, helpers.AccountKeyPoolConfig, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeVirtualPool produces account data as the program lays it out.
func EncodeVirtualPool(p *VirtualPool) ([]byte, error) {
	return encodeAccount(VirtualPoolDiscriminator, p)
}

func EncodePoolConfig(c *PoolConfig) ([]byte, error) {
	return encodeAccount(PoolConfigDiscriminator, c)
}

var (
	VirtualPoolConfigOffset    = helpers.ComputeStructOffset(new(VirtualPool), "Config")
	VirtualPoolCreatorOffset   = helpers.ComputeStructOffset(new(VirtualPool), "Creator")
	VirtualPoolBaseMintOffset  = helpers.ComputeStructOffset(new(VirtualPool), "BaseMint")
	PoolConfigFeeClaimerOffset = helpers.ComputeStructOffset(new(PoolConfig), "FeeClaimer")
)

package helpers

import (
	"bytes"
	"crypto/sha256"
	"reflect"

	binary "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Filter matches a public key at a byte offset of an account.
type Filter struct {
	Owner  solanago.PublicKey
	Offset uint64
}

// AccountDiscriminator is the anchor account discriminator sha256("account:<name>")[:8].
func AccountDiscriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

// InstructionDiscriminator is the anchor sighash sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

// ComputeStructOffset gets the offset position of a field in an account struct,
// counting the 8 byte discriminator.
func ComputeStructOffset(x any, o string) uint64 {
	t := reflect.TypeOf(x).Elem()
	fields := make([]reflect.StructField, 0)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == o {
			break
		}
		fields = append(fields, f)
	}

	newType := reflect.StructOf(fields)
	newValue := reflect.New(newType).Elem()

	buf := new(bytes.Buffer)
	_ = binary.NewBorshEncoder(buf).Encode(newValue.Interface())

	return uint64(buf.Len()) + 8
}

func CreateProgramAccountFilter(key string, filter *Filter) []rpc.RPCFilter {
	disc := AccountDiscriminator(key)
	filters := []rpc.RPCFilter{
		{
			Memcmp: &rpc.RPCFilterMemcmp{
				Offset: 0,
				Bytes:  disc[:],
			},
		},
	}

	if filter != nil {
		filters = append(filters, rpc.RPCFilter{
			Memcmp: &rpc.RPCFilterMemcmp{
				Offset: filter.Offset,
				Bytes:  filter.Owner[:],
			},
		})
	}

	return filters
}

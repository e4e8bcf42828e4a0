// Package contracts encodes logical protocol operations into call
// descriptors and decodes read-only queries. Encoding is pure: no network
// access, same inputs always produce the same payload, so batch shapes can be
// unit-tested without a chain connection.
package contracts

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller is the minimal read surface. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MaxUint256 is the unlimited-approval amount.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

func call(ctx context.Context, caller Caller, target common.Address, parsed abi.ABI, method string, out interface{}, args ...interface{}) error {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return err
	}
	res, err := caller.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err != nil {
		return err
	}
	return parsed.UnpackIntoInterface(out, method, res)
}

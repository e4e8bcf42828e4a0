package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictfi/gomarket/internal/txn"
)

const wethJSON = `[
	{"inputs":[],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"},
	{"inputs":[{"name":"wad","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var wethABI = mustABI(wethJSON)

// EncodeWrap converts native currency into the canonical wrapped token. The
// amount rides as attached value, so this is the only call descriptor in the
// codebase that carries a non-zero Value.
func EncodeWrap(wrapped common.Address, amount *big.Int) (txn.Call, error) {
	data, err := wethABI.Pack("deposit")
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: wrapped, Data: data, Value: new(big.Int).Set(amount)}, nil
}

// EncodeUnwrap converts wrapped token back to native currency.
func EncodeUnwrap(wrapped common.Address, amount *big.Int) (txn.Call, error) {
	data, err := wethABI.Pack("withdraw", amount)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: wrapped, Data: data, Value: big.NewInt(0)}, nil
}

package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictfi/gomarket/internal/txn"
)

const erc20JSON = `[
	{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"sender","type":"address"},{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var erc20ABI = mustABI(erc20JSON)

// EncodeApprove grants spender an allowance on token.
func EncodeApprove(token, spender common.Address, amount *big.Int) (txn.Call, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: token, Data: data, Value: big.NewInt(0)}, nil
}

// EncodeTransfer moves tokens from the executing account to recipient.
func EncodeTransfer(token, recipient common.Address, amount *big.Int) (txn.Call, error) {
	data, err := erc20ABI.Pack("transfer", recipient, amount)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: token, Data: data, Value: big.NewInt(0)}, nil
}

// EncodeTransferFrom moves tokens between third parties (requires allowance).
func EncodeTransferFrom(token, from, to common.Address, amount *big.Int) (txn.Call, error) {
	data, err := erc20ABI.Pack("transferFrom", from, to, amount)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: token, Data: data, Value: big.NewInt(0)}, nil
}

// ERC20Allowance reads allowance(owner, spender) on token.
func ERC20Allowance(ctx context.Context, caller Caller, token, owner, spender common.Address) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, token, erc20ABI, "allowance", &out, owner, spender); err != nil {
		return nil, err
	}
	return out, nil
}

// ERC20BalanceOf reads balanceOf(account) on token.
func ERC20BalanceOf(ctx context.Context, caller Caller, token, account common.Address) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, token, erc20ABI, "balanceOf", &out, account); err != nil {
		return nil, err
	}
	return out, nil
}

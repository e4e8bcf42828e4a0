package txn

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const multiSendJSON = `[{"inputs":[{"internalType":"bytes","name":"transactions","type":"bytes"}],"name":"multiSend","outputs":[],"stateMutability":"payable","type":"function"}]`

var multiSendABI = mustABI(multiSendJSON)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// PackMultiSend packs each call in MultiSend wire format:
// operation (1 byte) ++ to (20) ++ value (32) ++ dataLength (32) ++ data.
func PackMultiSend(calls []Call) []byte {
	var packed []byte
	for _, c := range calls {
		packed = append(packed, byte(c.Operation))
		packed = append(packed, c.To.Bytes()...)
		packed = append(packed, common.LeftPadBytes(c.NativeValue().Bytes(), 32)...)
		packed = append(packed, common.LeftPadBytes(big.NewInt(int64(len(c.Data))).Bytes(), 32)...)
		packed = append(packed, c.Data...)
	}
	return packed
}

// EncodeBatch collapses a batch into the single (to, data, operation) triple
// the proxy executes. A one-call batch goes straight to its target; anything
// larger is routed through the MultiSend contract with a delegatecall.
func EncodeBatch(multiSendAddr common.Address, batch *Batch) (to common.Address, data []byte, op Operation, err error) {
	calls := batch.Calls()
	if len(calls) == 1 {
		return calls[0].To, calls[0].Data, calls[0].Operation, nil
	}

	data, err = multiSendABI.Pack("multiSend", PackMultiSend(calls))
	if err != nil {
		return common.Address{}, nil, OpCall, err
	}
	return multiSendAddr, data, OpDelegateCall, nil
}

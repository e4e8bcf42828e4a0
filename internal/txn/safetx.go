package txn

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SafeTx is the EIP-712 message the proxy account verifies before executing
// a batch. Gas/refund fields are zeroed: the orchestrator never uses the
// proxy's gas-refund mechanics.
type SafeTx struct {
	To        common.Address
	Value     *big.Int
	Data      []byte
	Operation Operation
	Nonce     *big.Int
}

// TypedDataHash computes the EIP-712 digest for the proxy at safeAddr on
// chainID. Must match the proxy contract's own domain separator exactly.
func (tx SafeTx) TypedDataHash(chainID *big.Int, safeAddr common.Address) ([]byte, error) {
	domain := apitypes.TypedDataDomain{
		ChainId:           (*math.HexOrDecimal256)(chainID),
		VerifyingContract: safeAddr.Hex(),
	}

	types := apitypes.Types{
		"EIP712Domain": []apitypes.Type{
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"SafeTx": []apitypes.Type{
			{Name: "to", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "data", Type: "bytes"},
			{Name: "operation", Type: "uint8"},
			{Name: "safeTxGas", Type: "uint256"},
			{Name: "baseGas", Type: "uint256"},
			{Name: "gasPrice", Type: "uint256"},
			{Name: "gasToken", Type: "address"},
			{Name: "refundReceiver", Type: "address"},
			{Name: "nonce", Type: "uint256"},
		},
	}

	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}
	message := apitypes.TypedDataMessage{
		"to":             tx.To.Hex(),
		"value":          value.String(),
		"data":           tx.Data,
		"operation":      fmt.Sprintf("%d", tx.Operation),
		"safeTxGas":      "0",
		"baseGas":        "0",
		"gasPrice":       "0",
		"gasToken":       "0x0000000000000000000000000000000000000000",
		"refundReceiver": "0x0000000000000000000000000000000000000000",
		"nonce":          tx.Nonce.String(),
	}

	typedData := apitypes.TypedData{
		Types:       types,
		PrimaryType: "SafeTx",
		Domain:      domain,
		Message:     message,
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash message: %w", err)
	}

	raw := []byte{0x19, 0x01}
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}

// Sign produces the owner signature in the proxy's r ++ s ++ v layout.
func Sign(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

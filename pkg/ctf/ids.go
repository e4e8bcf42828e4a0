// Package ctf derives conditional-token-framework identifiers offline.
//
// The derivations must match the on-chain contracts bit for bit, since the
// orchestrator uses them to build payloads and predict addresses before any
// call confirms them:
//
//	conditionId  = keccak256(abi.encodePacked(oracle, questionId, outcomeSlotCount))
//	collectionId = keccak256(abi.encodePacked(parentCollectionId, conditionId, indexSet))
//	positionId   = uint256(keccak256(abi.encodePacked(collateralToken, collectionId)))
//
// The collectionId form here covers base-layer collections
// (parentCollectionId == bytes32(0)), the only kind this codebase builds.
package ctf

import (
	"crypto/rand"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ConditionID derives the deterministic handle for an outcome condition.
func ConditionID(oracle common.Address, questionID common.Hash, outcomeSlotCount uint) common.Hash {
	var buf []byte
	buf = append(buf, oracle.Bytes()...)
	buf = append(buf, questionID.Bytes()...)
	buf = append(buf, common.LeftPadBytes(new(big.Int).SetUint64(uint64(outcomeSlotCount)).Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

// CollectionID derives the collection handle for one index set of a condition.
func CollectionID(parent common.Hash, conditionID common.Hash, indexSet *big.Int) common.Hash {
	var buf []byte
	buf = append(buf, parent.Bytes()...)
	buf = append(buf, conditionID.Bytes()...)
	buf = append(buf, common.LeftPadBytes(indexSet.Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

// PositionID derives the ERC-1155 token id for a collateral/collection pair.
func PositionID(collateral common.Address, collectionID common.Hash) *big.Int {
	var buf []byte
	buf = append(buf, collateral.Bytes()...)
	buf = append(buf, collectionID.Bytes()...)
	return new(big.Int).SetBytes(crypto.Keccak256(buf))
}

// OutcomePositionID is the common case: position for a single outcome index
// of a condition under the zero parent collection.
func OutcomePositionID(collateral common.Address, conditionID common.Hash, outcomeIndex uint) *big.Int {
	indexSet := new(big.Int).Lsh(big.NewInt(1), outcomeIndex)
	return PositionID(collateral, CollectionID(common.Hash{}, conditionID, indexSet))
}

// FullPartition returns the index sets covering every single outcome of an
// n-outcome condition: [0b01, 0b10, ...]. Binary markets are the n=2 case.
func FullPartition(outcomeSlotCount uint) []*big.Int {
	sets := make([]*big.Int, 0, outcomeSlotCount)
	for i := uint(0); i < outcomeSlotCount; i++ {
		sets = append(sets, new(big.Int).Lsh(big.NewInt(1), i))
	}
	return sets
}

// PredictMarketAddress mirrors the market maker factory's CREATE2 scheme.
// The factory hashes the caller-chosen salt together with the deployment
// parameters, so the resulting address is fully determined before the batch
// is submitted. initCodeHash is the keccak hash of the proxy init code the
// factory deploys (fixed per factory release, supplied via config).
func PredictMarketAddress(factory common.Address, initCodeHash common.Hash,
	salt common.Hash, conditionID common.Hash, collateral common.Address,
	creator common.Address, feeBps *big.Int) common.Address {

	var params []byte
	params = append(params, creator.Bytes()...)
	params = append(params, salt.Bytes()...)
	params = append(params, conditionID.Bytes()...)
	params = append(params, collateral.Bytes()...)
	params = append(params, common.LeftPadBytes(feeBps.Bytes(), 32)...)
	saltHash := crypto.Keccak256Hash(params)

	return crypto.CreateAddress2(factory, saltHash, initCodeHash.Bytes())
}

// RandomSalt produces the deployment salt for a new market maker. Entropy is
// mixed with a UUID so two salts generated in the same instant still differ
// even on a broken rand source.
func RandomSalt() (common.Hash, error) {
	var buf [48]byte
	if _, err := rand.Read(buf[:32]); err != nil {
		return common.Hash{}, err
	}
	id := uuid.New()
	copy(buf[32:], id[:])
	return crypto.Keccak256Hash(buf[:]), nil
}

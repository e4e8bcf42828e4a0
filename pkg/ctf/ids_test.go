package ctf

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testOracle     = common.HexToAddress("0x1337000000000000000000000000000000000001")
	testQuestionID = common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000001")
	testCollateral = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
)

func TestConditionIDDeterministic(t *testing.T) {
	a := ConditionID(testOracle, testQuestionID, 2)
	b := ConditionID(testOracle, testQuestionID, 2)
	if a != b {
		t.Fatalf("same inputs produced different ids: %s vs %s", a.Hex(), b.Hex())
	}
	if a == (common.Hash{}) {
		t.Fatal("condition id is zero")
	}
}

func TestConditionIDInputSensitivity(t *testing.T) {
	base := ConditionID(testOracle, testQuestionID, 2)

	variants := map[string]common.Hash{
		"oracle":      ConditionID(common.HexToAddress("0x1337000000000000000000000000000000000002"), testQuestionID, 2),
		"question id": ConditionID(testOracle, common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000002"), 2),
		"slot count":  ConditionID(testOracle, testQuestionID, 3),
	}
	for name, got := range variants {
		if got == base {
			t.Errorf("changing %s did not change the condition id", name)
		}
	}
}

func TestPositionIDPerOutcome(t *testing.T) {
	cond := ConditionID(testOracle, testQuestionID, 2)

	yes := OutcomePositionID(testCollateral, cond, 0)
	no := OutcomePositionID(testCollateral, cond, 1)
	if yes.Cmp(no) == 0 {
		t.Fatal("outcome 0 and outcome 1 derive the same position id")
	}

	again := OutcomePositionID(testCollateral, cond, 0)
	if yes.Cmp(again) != 0 {
		t.Fatal("position id derivation is not deterministic")
	}

	otherCollateral := common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619")
	if OutcomePositionID(otherCollateral, cond, 0).Cmp(yes) == 0 {
		t.Fatal("collateral does not affect the position id")
	}
}

func TestFullPartition(t *testing.T) {
	tests := []struct {
		outcomes uint
		want     []int64
	}{
		{2, []int64{1, 2}},
		{3, []int64{1, 2, 4}},
		{4, []int64{1, 2, 4, 8}},
	}
	for _, tt := range tests {
		sets := FullPartition(tt.outcomes)
		if len(sets) != len(tt.want) {
			t.Fatalf("outcomes=%d: got %d sets, want %d", tt.outcomes, len(sets), len(tt.want))
		}
		for i, w := range tt.want {
			if sets[i].Int64() != w {
				t.Errorf("outcomes=%d set[%d]: got %d, want %d", tt.outcomes, i, sets[i].Int64(), w)
			}
		}
	}
}

func TestPredictMarketAddressDeterministic(t *testing.T) {
	factory := common.HexToAddress("0x89023DEb1d9a9a62fF3A5ca8F23Be8d87A576220")
	initCodeHash := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	salt := common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
	cond := ConditionID(testOracle, testQuestionID, 2)
	creator := common.HexToAddress("0x3333333333333333333333333333333333333333")
	fee := big.NewInt(200)

	a := PredictMarketAddress(factory, initCodeHash, salt, cond, testCollateral, creator, fee)
	b := PredictMarketAddress(factory, initCodeHash, salt, cond, testCollateral, creator, fee)
	if a != b {
		t.Fatalf("prediction is not deterministic: %s vs %s", a.Hex(), b.Hex())
	}
	if a == (common.Address{}) {
		t.Fatal("predicted address is zero")
	}

	otherSalt := common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222223")
	if PredictMarketAddress(factory, initCodeHash, otherSalt, cond, testCollateral, creator, fee) == a {
		t.Fatal("salt does not affect the predicted address")
	}
	if PredictMarketAddress(factory, initCodeHash, salt, cond, testCollateral, creator, big.NewInt(300)) == a {
		t.Fatal("fee does not affect the predicted address")
	}
}

func TestRandomSaltUnique(t *testing.T) {
	a, err := RandomSalt()
	if err != nil {
		t.Fatalf("RandomSalt error: %v", err)
	}
	b, err := RandomSalt()
	if err != nil {
		t.Fatalf("RandomSalt error: %v", err)
	}
	if a == b {
		t.Fatal("two salts collided")
	}
}

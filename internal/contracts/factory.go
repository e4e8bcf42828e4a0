package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictfi/gomarket/internal/txn"
)

const factoryJSON = `[
	{"inputs":[
		{"name":"saltNonce","type":"bytes32"},
		{"name":"conditionId","type":"bytes32"},
		{"name":"collateralToken","type":"address"},
		{"name":"fee","type":"uint256"},
		{"name":"initialFunds","type":"uint256"},
		{"name":"distributionHint","type":"uint256[]"}
	],"name":"create2FixedProductMarketMaker","outputs":[{"name":"","type":"address"}],"stateMutability":"nonpayable","type":"function"}
]`

var factoryABI = mustABI(factoryJSON)

// EncodeCreateMarketMaker deploys a market maker through the factory's
// CREATE2 path. The salt feeds the same address formula as
// ctf.PredictMarketAddress, so the deployment lands on the predicted address.
// The factory pulls initialFunds from the caller, hence the preceding
// unlimited approval in the create-market batch.
func EncodeCreateMarketMaker(factory common.Address, salt common.Hash, conditionID common.Hash,
	collateral common.Address, fee *big.Int, initialFunds *big.Int, distributionHint []*big.Int) (txn.Call, error) {

	if distributionHint == nil {
		distributionHint = []*big.Int{}
	}
	data, err := factoryABI.Pack("create2FixedProductMarketMaker",
		salt, conditionID, collateral, fee, initialFunds, distributionHint)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: factory, Data: data, Value: big.NewInt(0)}, nil
}

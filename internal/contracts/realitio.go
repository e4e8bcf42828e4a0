package contracts

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/predictfi/gomarket/internal/txn"
)

const realitioJSON = `[
	{"inputs":[
		{"name":"template_id","type":"uint256"},
		{"name":"question","type":"string"},
		{"name":"arbitrator","type":"address"},
		{"name":"timeout","type":"uint32"},
		{"name":"opening_ts","type":"uint32"},
		{"name":"nonce","type":"uint256"}
	],"name":"askQuestion","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"payable","type":"function"}
]`

const oracleAdapterJSON = `[
	{"inputs":[
		{"name":"questionId","type":"bytes32"},
		{"name":"templateId","type":"uint256"},
		{"name":"question","type":"string"},
		{"name":"numOutcomes","type":"uint256"}
	],"name":"resolve","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var (
	realitioABI      = mustABI(realitioJSON)
	oracleAdapterABI = mustABI(oracleAdapterJSON)
)

// QuestionParams is everything the oracle needs to register a question. The
// Question string is the already-templated payload (question text, outcomes,
// category, language joined the way the oracle's template expects).
type QuestionParams struct {
	TemplateID uint
	Question   string
	Category   string
	Arbitrator common.Address
	Timeout    uint32
	OpeningTS  uint32
	Nonce      *big.Int
}

// EncodeAskQuestion registers the question with the oracle.
func EncodeAskQuestion(realitio common.Address, p QuestionParams) (txn.Call, error) {
	nonce := p.Nonce
	if nonce == nil {
		nonce = big.NewInt(0)
	}
	data, err := realitioABI.Pack("askQuestion",
		new(big.Int).SetUint64(uint64(p.TemplateID)), p.Question, p.Arbitrator, p.Timeout, p.OpeningTS, nonce)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: realitio, Data: data, Value: big.NewInt(0)}, nil
}

// EncodeResolve asks the oracle adapter to report the question's answer into
// the outcome-token registry, resolving the condition.
func EncodeResolve(adapter common.Address, questionID common.Hash, templateID uint, question string, numOutcomes uint) (txn.Call, error) {
	data, err := oracleAdapterABI.Pack("resolve",
		questionID, new(big.Int).SetUint64(uint64(templateID)), question, new(big.Int).SetUint64(uint64(numOutcomes)))
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: adapter, Data: data, Value: big.NewInt(0)}, nil
}

// QuestionID mirrors the oracle's deterministic question-id scheme so the id
// an askQuestion call will produce is known before the batch is submitted.
// Inputs: questioner, templated question text, category, arbitrator, opening
// time, and chain id.
func QuestionID(asker common.Address, p QuestionParams, chainID *big.Int) common.Hash {
	var opening [4]byte
	binary.BigEndian.PutUint32(opening[:], p.OpeningTS)

	var buf []byte
	buf = append(buf, asker.Bytes()...)
	buf = append(buf, crypto.Keccak256([]byte(p.Question))...)
	buf = append(buf, crypto.Keccak256([]byte(p.Category))...)
	buf = append(buf, p.Arbitrator.Bytes()...)
	buf = append(buf, opening[:]...)
	buf = append(buf, common.LeftPadBytes(chainID.Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

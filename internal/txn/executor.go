package txn

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Backend is the chain connectivity this package needs. *ethclient.Client
// satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Executor submits one batch atomically through the proxy account and awaits
// its inclusion. Exactly one submission happens per Execute call.
type Executor interface {
	Execute(ctx context.Context, batch *Batch) (common.Hash, error)
	AwaitConfirmation(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

const proxyExecJSON = `[
	{"inputs":[],"name":"nonce","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[
		{"name":"to","type":"address"},
		{"name":"value","type":"uint256"},
		{"name":"data","type":"bytes"},
		{"name":"operation","type":"uint8"},
		{"name":"safeTxGas","type":"uint256"},
		{"name":"baseGas","type":"uint256"},
		{"name":"gasPrice","type":"uint256"},
		{"name":"gasToken","type":"address"},
		{"name":"refundReceiver","type":"address"},
		{"name":"signatures","type":"bytes"}
	],"name":"execTransaction","outputs":[{"name":"success","type":"bool"}],"stateMutability":"payable","type":"function"}
]`

var proxyExecABI = mustABI(proxyExecJSON)

// OnchainExecutor submits batches directly from the owner key: it wraps the
// batch in the proxy's execTransaction call and sends it as a regular
// transaction, attaching the batch's aggregate native value.
type OnchainExecutor struct {
	backend   Backend
	chainID   *big.Int
	ownerKey  *ecdsa.PrivateKey
	ownerAddr common.Address
	proxyAddr common.Address
	multiSend common.Address
	pollEvery time.Duration
	log       *logrus.Entry
}

func NewOnchainExecutor(backend Backend, chainID *big.Int, ownerKey *ecdsa.PrivateKey,
	proxyAddr, multiSend common.Address, log *logrus.Entry) *OnchainExecutor {

	return &OnchainExecutor{
		backend:   backend,
		chainID:   chainID,
		ownerKey:  ownerKey,
		ownerAddr: crypto.PubkeyToAddress(ownerKey.PublicKey),
		proxyAddr: proxyAddr,
		multiSend: multiSend,
		pollEvery: 2 * time.Second,
		log:       log,
	}
}

// ProxyNonce reads the proxy account's current signing nonce.
func (e *OnchainExecutor) ProxyNonce(ctx context.Context) (*big.Int, error) {
	data, err := proxyExecABI.Pack("nonce")
	if err != nil {
		return nil, err
	}
	out, err := e.backend.CallContract(ctx, ethereum.CallMsg{To: &e.proxyAddr, Data: data}, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read proxy nonce")
	}
	var nonce *big.Int
	if err := proxyExecABI.UnpackIntoInterface(&nonce, "nonce", out); err != nil {
		return nil, pkgerrors.Wrap(err, "unpack proxy nonce")
	}
	return nonce, nil
}

func (e *OnchainExecutor) Execute(ctx context.Context, batch *Batch) (common.Hash, error) {
	if batch == nil || batch.Len() == 0 {
		return common.Hash{}, errors.New("empty batch")
	}

	to, data, op, err := EncodeBatch(e.multiSend, batch)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "encode batch")
	}

	proxyNonce, err := e.ProxyNonce(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	value := batch.AggregateValue()
	safeTx := SafeTx{To: to, Value: value, Data: data, Operation: op, Nonce: proxyNonce}
	digest, err := safeTx.TypedDataHash(e.chainID, e.proxyAddr)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "safe tx hash")
	}
	sig, err := Sign(digest, e.ownerKey)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "sign safe tx")
	}

	callData, err := proxyExecABI.Pack("execTransaction",
		to, value, data, uint8(op),
		big.NewInt(0), big.NewInt(0), big.NewInt(0),
		common.Address{}, common.Address{}, sig)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "pack execTransaction")
	}

	accountNonce, err := e.backend.PendingNonceAt(ctx, e.ownerAddr)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "pending nonce")
	}
	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "suggest gas price")
	}
	gasLimit, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  e.ownerAddr,
		To:    &e.proxyAddr,
		Data:  callData,
		Value: value,
	})
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "estimate gas")
	}

	tx := ethtypes.NewTransaction(accountNonce, e.proxyAddr, value, gasLimit, gasPrice, callData)
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(e.chainID), e.ownerKey)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "sign transaction")
	}
	if err := e.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "send transaction")
	}

	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"tx":    signedTx.Hash().Hex(),
			"calls": batch.Len(),
			"value": value.String(),
		}).Info("batch submitted")
	}
	return signedTx.Hash(), nil
}

func (e *OnchainExecutor) AwaitConfirmation(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return awaitReceipt(ctx, e.backend, txHash, e.pollEvery)
}

// awaitReceipt polls for inclusion until the context expires. This is the
// single suspend-until-resolved wait per submission; no retry logic lives here.
func awaitReceipt(ctx context.Context, backend Backend, txHash common.Hash, every time.Duration) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, pkgerrors.Wrap(err, "transaction receipt")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

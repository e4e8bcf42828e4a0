package txn

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RelayerCreds authenticates against the gasless relayer.
type RelayerCreds struct {
	Key        string
	Secret     string
	Passphrase string
}

// RelayerExecutor submits batches through a hosted relayer instead of
// spending gas from the owner key. The relayer verifies the same SafeTx
// signature the proxy does, so batch semantics are identical to the
// on-chain executor. Receipt polling still goes through the chain backend.
type RelayerExecutor struct {
	http      *resty.Client
	backend   Backend
	chainID   *big.Int
	ownerKey  *ecdsa.PrivateKey
	ownerAddr common.Address
	proxyAddr common.Address
	multiSend common.Address
	creds     RelayerCreds
	pollEvery time.Duration
	log       *logrus.Entry
}

type relayerSubmitRequest struct {
	Type            string                 `json:"type"`
	From            string                 `json:"from"`
	To              string                 `json:"to"`
	ProxyWallet     string                 `json:"proxyWallet"`
	Data            string                 `json:"data"`
	Value           string                 `json:"value"`
	Nonce           string                 `json:"nonce"`
	Signature       string                 `json:"signature"`
	SignatureParams relayerSignatureParams `json:"signatureParams"`
}

type relayerSignatureParams struct {
	GasPrice   string `json:"gasPrice"`
	SafeTxnGas string `json:"safeTxnGas"`
	BaseGas    string `json:"baseGas"`
}

type relayerSubmitResponse struct {
	ID              string `json:"id"`
	TransactionHash string `json:"transactionHash"`
	State           string `json:"state"`
	Error           string `json:"error,omitempty"`
}

func NewRelayerExecutor(baseURL string, backend Backend, chainID *big.Int,
	ownerKey *ecdsa.PrivateKey, proxyAddr, multiSend common.Address,
	creds RelayerCreds, log *logrus.Entry) *RelayerExecutor {

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)

	return &RelayerExecutor{
		http:      client,
		backend:   backend,
		chainID:   chainID,
		ownerKey:  ownerKey,
		ownerAddr: crypto.PubkeyToAddress(ownerKey.PublicKey),
		proxyAddr: proxyAddr,
		multiSend: multiSend,
		creds:     creds,
		pollEvery: 2 * time.Second,
		log:       log,
	}
}

// authHeaders builds the HMAC-signed headers the relayer requires.
func (e *RelayerExecutor) authHeaders(method, path string, body []byte) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := timestamp + method + path + string(body)

	secret, err := base64.URLEncoding.DecodeString(e.creds.Secret)
	if err != nil {
		secret, err = base64.StdEncoding.DecodeString(e.creds.Secret)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "decode relayer secret")
		}
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"RELAY_API_KEY":    e.creds.Key,
		"RELAY_PASSPHRASE": e.creds.Passphrase,
		"RELAY_SIGNATURE":  signature,
		"RELAY_TIMESTAMP":  timestamp,
	}, nil
}

// Nonce fetches the next proxy nonce tracked by the relayer.
func (e *RelayerExecutor) Nonce(ctx context.Context) (*big.Int, error) {
	path := "/nonce"
	headers, err := e.authHeaders("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Nonce string `json:"nonce"`
	}
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("address", e.ownerAddr.Hex()).
		SetResult(&out).
		Get(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "relayer nonce")
	}
	if resp.IsError() {
		return nil, fmt.Errorf("relayer nonce: %d %s", resp.StatusCode(), resp.String())
	}
	nonce, ok := new(big.Int).SetString(out.Nonce, 10)
	if !ok {
		return nil, fmt.Errorf("relayer nonce: bad value %q", out.Nonce)
	}
	return nonce, nil
}

// IsDeployed reports whether the relayer has deployed the proxy yet.
func (e *RelayerExecutor) IsDeployed(ctx context.Context) (bool, error) {
	path := "/deployed"
	headers, err := e.authHeaders("GET", path, nil)
	if err != nil {
		return false, err
	}

	var out struct {
		Deployed bool `json:"deployed"`
	}
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("address", e.proxyAddr.Hex()).
		SetResult(&out).
		Get(path)
	if err != nil {
		return false, pkgerrors.Wrap(err, "relayer deployed check")
	}
	if resp.IsError() {
		return false, fmt.Errorf("relayer deployed check: %d %s", resp.StatusCode(), resp.String())
	}
	return out.Deployed, nil
}

func (e *RelayerExecutor) Execute(ctx context.Context, batch *Batch) (common.Hash, error) {
	if batch == nil || batch.Len() == 0 {
		return common.Hash{}, errors.New("empty batch")
	}
	value := batch.AggregateValue()
	if value.Sign() > 0 {
		// The relayer funds gas only; native value must come from the owner.
		return common.Hash{}, errors.New("relayer cannot attach native value; use the on-chain executor")
	}

	to, data, op, err := EncodeBatch(e.multiSend, batch)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "encode batch")
	}

	nonce, err := e.Nonce(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	safeTx := SafeTx{To: to, Value: big.NewInt(0), Data: data, Operation: op, Nonce: nonce}
	digest, err := safeTx.TypedDataHash(e.chainID, e.proxyAddr)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "safe tx hash")
	}
	sig, err := Sign(digest, e.ownerKey)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "sign safe tx")
	}

	req := relayerSubmitRequest{
		Type:        "SAFE",
		From:        e.ownerAddr.Hex(),
		To:          to.Hex(),
		ProxyWallet: e.proxyAddr.Hex(),
		Data:        "0x" + hex.EncodeToString(data),
		Value:       "0",
		Nonce:       nonce.String(),
		Signature:   "0x" + hex.EncodeToString(sig),
		SignatureParams: relayerSignatureParams{
			GasPrice:   "0",
			SafeTxnGas: "0",
			BaseGas:    "0",
		},
	}

	path := "/submit"
	body, err := e.http.JSONMarshal(req)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "marshal submit request")
	}
	headers, err := e.authHeaders("POST", path, body)
	if err != nil {
		return common.Hash{}, err
	}

	var out relayerSubmitResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post(path)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "relayer submit")
	}
	if resp.IsError() || out.Error != "" {
		return common.Hash{}, fmt.Errorf("relayer submit: %d %s %s", resp.StatusCode(), resp.String(), out.Error)
	}
	if out.TransactionHash == "" {
		return common.Hash{}, fmt.Errorf("relayer submit: no transaction hash in response (state=%s)", out.State)
	}

	txHash := common.HexToHash(out.TransactionHash)
	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"tx":    txHash.Hex(),
			"calls": batch.Len(),
			"state": out.State,
		}).Info("batch submitted via relayer")
	}
	return txHash, nil
}

func (e *RelayerExecutor) AwaitConfirmation(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return awaitReceipt(ctx, e.backend, txHash, e.pollEvery)
}

// Package bootstrap assembles the orchestrator and its collaborators from
// configuration. Both binaries share this wiring.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/predictfi/gomarket/internal/market"
	"github.com/predictfi/gomarket/internal/proxy"
	"github.com/predictfi/gomarket/internal/txn"
	"github.com/predictfi/gomarket/pkg/config"
	"github.com/predictfi/gomarket/pkg/logger"
	"github.com/predictfi/gomarket/pkg/secretstore"
)

// Runtime is the assembled application: one orchestrator bound to one
// signing key, one proxy, one chain.
type Runtime struct {
	Orchestrator *market.Orchestrator
	Account      *proxy.Account
	Client       *ethclient.Client
	Owner        common.Address
}

func (r *Runtime) Close() {
	if r.Client != nil {
		r.Client.Close()
	}
}

func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	client, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	key, err := secretstore.ResolveKey(secretstore.WalletSource{
		PrivateKey:     cfg.Wallet.PrivateKey,
		Mnemonic:       cfg.Wallet.Mnemonic,
		DerivationPath: cfg.Wallet.DerivationPath,
		StorePath:      cfg.Wallet.SecretStorePath,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve wallet key: %w", err)
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)

	if !common.IsHexAddress(cfg.Wallet.ProxyAddress) {
		client.Close()
		return nil, errors.New("wallet.proxy_address is required")
	}
	proxyAddr := common.HexToAddress(cfg.Wallet.ProxyAddress)
	chainID := big.NewInt(cfg.Chain.ChainID)
	multiSend := common.HexToAddress(cfg.Contracts.MultiSend)

	account := proxy.NewAccount(client, proxyAddr, common.HexToAddress(cfg.Contracts.ProxyImplementation))

	var exec txn.Executor
	if cfg.Contracts.RelayerURL != "" {
		creds := txn.RelayerCreds{
			Key:        os.Getenv("GOMARKET_RELAYER_KEY"),
			Secret:     os.Getenv("GOMARKET_RELAYER_SECRET"),
			Passphrase: os.Getenv("GOMARKET_RELAYER_PASSPHRASE"),
		}
		exec = txn.NewRelayerExecutor(cfg.Contracts.RelayerURL, client, chainID,
			key, proxyAddr, multiSend, creds, logger.WithField("component", "relayer"))
	} else {
		exec = txn.NewOnchainExecutor(client, chainID, key, proxyAddr, multiSend,
			logger.WithField("component", "executor"))
	}

	gateway := market.NewChainGateway(client, client, common.HexToAddress(cfg.Contracts.ConditionalTokens))

	addrs := market.Addresses{
		ConditionalTokens:  common.HexToAddress(cfg.Contracts.ConditionalTokens),
		WrappedNative:      common.HexToAddress(cfg.Contracts.WrappedNative),
		MarketMakerFactory: common.HexToAddress(cfg.Contracts.MarketMakerFactory),
		Oracle:             common.HexToAddress(cfg.Contracts.Oracle),
		Realitio:           common.HexToAddress(cfg.Contracts.Realitio),
		MarketInitCodeHash: common.HexToHash(cfg.Contracts.MarketInitCodeHash),
	}

	orch := market.NewOrchestrator(gateway, exec, account, addrs, chainID, owner,
		uint(cfg.Orchestrator.SlippageBps), logger.WithField("component", "orchestrator"))

	return &Runtime{
		Orchestrator: orch,
		Account:      account,
		Client:       client,
		Owner:        owner,
	}, nil
}

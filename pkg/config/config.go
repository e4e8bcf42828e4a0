// Package config loads the application configuration from a YAML file with
// environment-variable overrides for the secrets that should not live on disk.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// WalletConfig identifies the signing key and the proxy account it controls.
// Exactly one of PrivateKey / Mnemonic / SecretStorePath is expected; the
// secret store variant keeps the key encrypted at rest (see pkg/secretstore).
type WalletConfig struct {
	PrivateKey      string `yaml:"private_key"`
	Mnemonic        string `yaml:"mnemonic"`
	DerivationPath  string `yaml:"derivation_path"`
	SecretStorePath string `yaml:"secret_store_path"`
	ProxyAddress    string `yaml:"proxy_address"`
}

// ChainConfig points at the host chain.
type ChainConfig struct {
	RPCURL  string `yaml:"rpc_url"`
	ChainID int64  `yaml:"chain_id"`
}

// ContractsConfig holds the deployed protocol addresses. All are required
// except RelayerURL, which switches submission to the gasless relayer when set.
type ContractsConfig struct {
	ConditionalTokens  string `yaml:"conditional_tokens"`
	WrappedNative      string `yaml:"wrapped_native"`
	MarketMakerFactory string `yaml:"market_maker_factory"`
	Oracle             string `yaml:"oracle"`
	Realitio           string `yaml:"realitio"`
	Arbitrator         string `yaml:"arbitrator"`
	MultiSend          string `yaml:"multi_send"`
	ProxyImplementation string `yaml:"proxy_implementation"`
	// MarketInitCodeHash is the keccak hash of the market maker proxy init
	// code, needed to predict deployment addresses ahead of the factory call.
	MarketInitCodeHash string `yaml:"market_init_code_hash"`
	RelayerURL         string `yaml:"relayer_url"`
}

// OrchestratorConfig tunes workflow behavior.
type OrchestratorConfig struct {
	SlippageBps       int64 `yaml:"slippage_bps"`        // buy min-out guard, default 100 (1%)
	ConfirmTimeoutSec int   `yaml:"confirm_timeout_sec"` // await-confirmation bound, default 180
}

// ServerConfig configures the control-plane HTTP API.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`
}

// LogConfig mirrors pkg/logger.Config.
type LogConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Config is the root application configuration.
type Config struct {
	Wallet       WalletConfig       `yaml:"wallet"`
	Chain        ChainConfig        `yaml:"chain"`
	Contracts    ContractsConfig    `yaml:"contracts"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
}

// Load reads the YAML file at path, applies env overrides, and validates.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Wallet: WalletConfig{
			DerivationPath: "m/44'/60'/0'/0/0",
		},
		Orchestrator: OrchestratorConfig{
			SlippageBps:       100,
			ConfirmTimeoutSec: 180,
		},
		Server: ServerConfig{
			ListenAddr: ":8787",
			DBPath:     "data/gomarket.db",
		},
		Log: LogConfig{
			Level:      "info",
			OutputFile: "logs/gomarket.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// applyEnv lets deployments override file values; secrets are usually only
// provided this way.
func applyEnv(cfg *Config) {
	if v := envStr("GOMARKET_PRIVATE_KEY"); v != "" {
		cfg.Wallet.PrivateKey = v
	}
	if v := envStr("GOMARKET_MNEMONIC"); v != "" {
		cfg.Wallet.Mnemonic = v
	}
	if v := envStr("GOMARKET_PROXY_ADDRESS"); v != "" {
		cfg.Wallet.ProxyAddress = v
	}
	if v := envStr("GOMARKET_RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	if v := envStr("GOMARKET_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Chain.ChainID = id
		}
	}
	if v := envStr("GOMARKET_RELAYER_URL"); v != "" {
		cfg.Contracts.RelayerURL = v
	}
	if v := envStr("GOMARKET_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func envStr(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func (c *Config) validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("chain.chain_id is required")
	}
	for name, addr := range map[string]string{
		"contracts.conditional_tokens":   c.Contracts.ConditionalTokens,
		"contracts.wrapped_native":       c.Contracts.WrappedNative,
		"contracts.market_maker_factory": c.Contracts.MarketMakerFactory,
		"contracts.multi_send":           c.Contracts.MultiSend,
	} {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if c.Orchestrator.SlippageBps < 0 || c.Orchestrator.SlippageBps >= 10000 {
		return fmt.Errorf("orchestrator.slippage_bps out of range: %d", c.Orchestrator.SlippageBps)
	}
	return nil
}

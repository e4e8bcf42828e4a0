package secretstore

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// storeKeyName is the Badger key under which the signing key lives.
const storeKeyName = "wallet/private_key"

// WalletSource describes where the signing key comes from. Fields mirror
// pkg/config.WalletConfig; exactly one of PrivateKey, Mnemonic, or StorePath
// must be set.
type WalletSource struct {
	PrivateKey     string
	Mnemonic       string
	DerivationPath string
	StorePath      string
}

// ResolveKey turns a WalletSource into a signing key.
func ResolveKey(src WalletSource) (*ecdsa.PrivateKey, error) {
	switch {
	case strings.TrimSpace(src.PrivateKey) != "":
		return parsePrivateKey(src.PrivateKey)
	case strings.TrimSpace(src.Mnemonic) != "":
		return deriveFromMnemonic(src.Mnemonic, src.DerivationPath)
	case strings.TrimSpace(src.StorePath) != "":
		return loadFromStore(src.StorePath)
	default:
		return nil, fmt.Errorf("no wallet source configured (private_key, mnemonic, or secret_store_path)")
	}
}

func parsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func deriveFromMnemonic(mnemonic, derivationPath string) (*ecdsa.PrivateKey, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if derivationPath == "" {
		derivationPath = "m/44'/60'/0'/0/0"
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path: %w", err)
	}
	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("derive failed: %w", err)
	}
	key, err := w.PrivateKey(acct)
	if err != nil {
		return nil, fmt.Errorf("private key failed: %w", err)
	}
	return key, nil
}

func loadFromStore(path string) (*ecdsa.PrivateKey, error) {
	encKey, err := ParseKey(os.Getenv("GOMARKET_MASTER_KEY"))
	if err != nil {
		return nil, fmt.Errorf("GOMARKET_MASTER_KEY: %w", err)
	}
	store, err := Open(OpenOptions{Path: path, EncryptionKey: encKey, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	raw, found, err := store.GetString(storeKeyName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("secretstore: %s not found in %s", storeKeyName, path)
	}
	return parsePrivateKey(raw)
}

// StoreKey writes the signing key into the store at path. Used by the
// key-init CLI flow.
func StoreKey(path, privateKeyHex string) error {
	if _, err := parsePrivateKey(privateKeyHex); err != nil {
		return err
	}
	encKey, err := ParseKey(os.Getenv("GOMARKET_MASTER_KEY"))
	if err != nil {
		return fmt.Errorf("GOMARKET_MASTER_KEY: %w", err)
	}
	store, err := Open(OpenOptions{Path: path, EncryptionKey: encKey})
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SetString(storeKeyName, strings.TrimSpace(privateKeyHex))
}

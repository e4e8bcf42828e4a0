// Package proxy inspects the user's contract-controlled proxy account:
// whether it is deployed and whether its backing implementation matches the
// current target. Upgrading is an explicit action submitted as its own
// single-call batch; no workflow triggers it implicitly.
package proxy

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	pkgerrors "github.com/pkg/errors"

	"github.com/predictfi/gomarket/internal/txn"
)

// ChainReader is the read surface needed for status checks. *ethclient.Client
// satisfies it.
type ChainReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

const changeMasterCopyJSON = `[{"inputs":[{"name":"_masterCopy","type":"address"}],"name":"changeMasterCopy","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

var changeMasterCopyABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(changeMasterCopyJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Account identifies one proxy and the implementation it should run.
// Status may change out-of-band (protocol upgrade), so every check reads the
// chain fresh; nothing here is cached.
type Account struct {
	Address              common.Address
	TargetImplementation common.Address
	reader               ChainReader
}

func NewAccount(reader ChainReader, address, targetImplementation common.Address) *Account {
	return &Account{
		Address:              address,
		TargetImplementation: targetImplementation,
		reader:               reader,
	}
}

// IsDeployed reports whether contract code exists at the proxy address.
// Deployment itself happens implicitly on first use and is a collaborator
// concern, not something this package performs.
func (a *Account) IsDeployed(ctx context.Context) (bool, error) {
	code, err := a.reader.CodeAt(ctx, a.Address, nil)
	if err != nil {
		return false, pkgerrors.Wrap(err, "read proxy code")
	}
	return len(code) > 0, nil
}

// Implementation reads the backing implementation address. Proxies of this
// family keep the master copy in storage slot 0.
func (a *Account) Implementation(ctx context.Context) (common.Address, error) {
	raw, err := a.reader.StorageAt(ctx, a.Address, common.Hash{}, nil)
	if err != nil {
		return common.Address{}, pkgerrors.Wrap(err, "read proxy implementation slot")
	}
	return common.BytesToAddress(raw), nil
}

// IsUpToDate is false when the proxy is undeployed or its implementation does
// not match the target (compared case-insensitively).
func (a *Account) IsUpToDate(ctx context.Context) (bool, error) {
	deployed, err := a.IsDeployed(ctx)
	if err != nil {
		return false, err
	}
	if !deployed {
		return false, nil
	}
	impl, err := a.Implementation(ctx)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(impl.Hex(), a.TargetImplementation.Hex()), nil
}

// UpgradeCall builds the changeMasterCopy call pointing the proxy at the
// target implementation. Callers submit it as a single-call batch.
func (a *Account) UpgradeCall() (txn.Call, error) {
	data, err := changeMasterCopyABI.Pack("changeMasterCopy", a.TargetImplementation)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: a.Address, Data: data, Value: big.NewInt(0)}, nil
}

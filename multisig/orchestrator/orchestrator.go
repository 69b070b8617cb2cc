// Package orchestrator drives multisig transactions through their lifecycle: it builds and signs
// new proposals, co-signs and submits ready ones through the multisig, and executes scheduled
// timelock operations once they are ready.
//
// The orchestrator persists nothing. Callers store proposals and status updates through the
// persistence API themselves.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feedispatch/multisig-ops/chain/evm"
	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/multisig/calldata"
	"github.com/feedispatch/multisig-ops/multisig/digest"
	"github.com/feedispatch/multisig-ops/multisig/sigcodec"
	"github.com/feedispatch/multisig-ops/multisig/timelock"
	"github.com/feedispatch/multisig-ops/pkg/logger"
)

// Wallet is the connected account. It signs messages for proposals and transactions for
// submissions.
type Wallet interface {
	sigcodec.MessageSigner

	// TransactOpts returns options sending transactions from Address.
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// MultisigContract is the multisig executor surface used by the orchestrator.
// contracts.MultiSignContract implements it.
type MultisigContract interface {
	GetNonce(opts *bind.CallOpts) (*big.Int, error)
	GetOwners(opts *bind.CallOpts) ([]common.Address, error)
	ExecTransaction(
		opts *bind.TransactOpts, to common.Address, value *big.Int, data []byte, signatures []byte,
	) (*types.Transaction, error)
}

// TimelockContract is the timelock surface used by the orchestrator.
// contracts.TimelockContract implements it.
type TimelockContract interface {
	timelock.Reader

	Execute(
		opts *bind.TransactOpts, target common.Address, value *big.Int, payload []byte, predecessor, salt common.Hash,
	) (*types.Transaction, error)
}

// Config holds the dependencies of an Orchestrator.
type Config struct {
	// ChainID is the chain the contracts are deployed on. Required.
	ChainID *big.Int
	// Addresses of the multisig, the timelock and the fee dispatcher. Required.
	Addresses calldata.Addresses

	Wallet   Wallet
	Multisig MultisigContract
	Timelock TimelockContract
	// Confirm waits for a submitted transaction to be mined.
	Confirm evm.ConfirmFunc

	// Optional: defaults to a no-op logger.
	Logger logger.Logger
	// Optional: submission counters are not recorded when nil.
	Metrics *Metrics
}

func (c Config) validate() error {
	var errs []error
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		errs = append(errs, errors.New("chain id is required"))
	}
	if c.Addresses.Multisig == (common.Address{}) {
		errs = append(errs, errors.New("multisig address is required"))
	}
	if c.Addresses.Timelock == (common.Address{}) {
		errs = append(errs, errors.New("timelock address is required"))
	}
	if c.Addresses.FeeDispatcher == (common.Address{}) {
		errs = append(errs, errors.New("fee dispatcher address is required"))
	}
	if c.Wallet == nil {
		errs = append(errs, errors.New("wallet is required"))
	}
	if c.Multisig == nil {
		errs = append(errs, errors.New("multisig contract is required"))
	}
	if c.Timelock == nil {
		errs = append(errs, errors.New("timelock contract is required"))
	}
	if c.Confirm == nil {
		errs = append(errs, errors.New("confirm function is required"))
	}

	return errors.Join(errs...)
}

// Orchestrator composes the calldata codec, the digest engine, the signature codec and the
// timelock permission oracle around one connected wallet.
type Orchestrator struct {
	addrs    calldata.Addresses
	codec    *calldata.Codec
	digests  digest.Engine
	oracle   *timelock.Oracle
	wallet   Wallet
	multisig MultisigContract
	timelock TimelockContract
	confirm  evm.ConfirmFunc
	lggr     logger.Logger
	metrics  *Metrics
}

// New returns an Orchestrator for cfg.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	lggr := cfg.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Orchestrator{
		addrs:    cfg.Addresses,
		codec:    calldata.NewCodec(cfg.Addresses, cfg.ChainID),
		digests:  digest.Engine{ChainID: cfg.ChainID, Multisig: cfg.Addresses.Multisig},
		oracle:   timelock.NewOracle(cfg.Timelock),
		wallet:   cfg.Wallet,
		multisig: cfg.Multisig,
		timelock: cfg.Timelock,
		confirm:  cfg.Confirm,
		lggr:     lggr.Named("orchestrator"),
		metrics:  cfg.Metrics,
	}, nil
}

// Address returns the connected account.
func (o *Orchestrator) Address() common.Address {
	return o.wallet.Address()
}

// Addresses returns the contract addresses the orchestrator works with.
func (o *Orchestrator) Addresses() calldata.Addresses {
	return o.addrs
}

// Decode decodes persisted calldata for review.
func (o *Orchestrator) Decode(data []byte, hint calldata.Hint) (*multisig.DecodedCall, error) {
	return o.codec.Decode(data, hint)
}

// Owners returns the current multisig owners in contract order.
func (o *Orchestrator) Owners(ctx context.Context) ([]common.Address, error) {
	owners, err := o.multisig.GetOwners(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", multisig.ErrContractCallFailed, err)
	}

	return owners, nil
}

// CanExecute reports whether the connected account may execute the timelock operation id now.
func (o *Orchestrator) CanExecute(ctx context.Context, id common.Hash) (timelock.Permission, error) {
	return o.oracle.CanExecute(ctx, id, o.wallet.Address())
}

// Nonce returns the live multisig nonce.
func (o *Orchestrator) Nonce(ctx context.Context) (uint64, error) {
	n, err := o.multisig.GetNonce(&bind.CallOpts{Context: ctx})
	if err != nil {
		return 0, fmt.Errorf("%w: getNonce: %w", multisig.ErrContractCallFailed, err)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: nonce %s overflows uint64", multisig.ErrContractCallFailed, n)
	}

	return n.Uint64(), nil
}

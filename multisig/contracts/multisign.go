package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MultiSignContract is a binding to a deployed multisig executor.
type MultiSignContract struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewMultiSignContract binds the multisig executor deployed at address.
func NewMultiSignContract(address common.Address, backend bind.ContractBackend) *MultiSignContract {
	return &MultiSignContract{
		address:  address,
		contract: bind.NewBoundContract(address, MultiSign, backend, backend, backend),
	}
}

// Address returns the contract address.
func (c *MultiSignContract) Address() common.Address {
	return c.address
}

// GetNonce returns the current transaction nonce.
func (c *MultiSignContract) GetNonce(opts *bind.CallOpts) (*big.Int, error) {
	out, err := call(c.contract, opts, "getNonce")
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetOwners returns the owners in the order of the contract's linked list.
func (c *MultiSignContract) GetOwners(opts *bind.CallOpts) ([]common.Address, error) {
	out, err := call(c.contract, opts, "getOwners")
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// GetThreshold returns the number of signatures required to execute a transaction.
func (c *MultiSignContract) GetThreshold(opts *bind.CallOpts) (*big.Int, error) {
	out, err := call(c.contract, opts, "getThreshold")
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// IsOwner reports whether owner is one of the multisig owners.
func (c *MultiSignContract) IsOwner(opts *bind.CallOpts, owner common.Address) (bool, error) {
	out, err := call(c.contract, opts, "isOwner", owner)
	if err != nil {
		return false, err
	}

	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// GetTransactionHash returns the digest the contract expects owners to sign.
func (c *MultiSignContract) GetTransactionHash(
	opts *bind.CallOpts, to common.Address, value *big.Int, data []byte, nonce *big.Int,
) (common.Hash, error) {
	out, err := call(c.contract, opts, "getTransactionHash", to, value, data, nonce)
	if err != nil {
		return common.Hash{}, err
	}

	return common.Hash(*abi.ConvertType(out[0], new([32]byte)).(*[32]byte)), nil
}

// ExecTransaction submits a transaction together with the packed owner signatures.
func (c *MultiSignContract) ExecTransaction(
	opts *bind.TransactOpts, to common.Address, value *big.Int, data []byte, signatures []byte,
) (*types.Transaction, error) {
	return c.contract.Transact(opts, "execTransaction", to, value, data, signatures)
}

// ApproveHash records an on-chain approval of hash by the sender.
func (c *MultiSignContract) ApproveHash(opts *bind.TransactOpts, hash common.Hash) (*types.Transaction, error) {
	return c.contract.Transact(opts, "approveHash", hash)
}

func call(contract *bind.BoundContract, opts *bind.CallOpts, method string, params ...any) ([]any, error) {
	var out []any
	if err := contract.Call(opts, &out, method, params...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}

	return out, nil
}

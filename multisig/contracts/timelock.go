package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TimelockContract is a binding to a deployed timelock controller.
type TimelockContract struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewTimelockContract binds the timelock controller deployed at address.
func NewTimelockContract(address common.Address, backend bind.ContractBackend) *TimelockContract {
	return &TimelockContract{
		address:  address,
		contract: bind.NewBoundContract(address, Timelock, backend, backend, backend),
	}
}

// Address returns the contract address.
func (c *TimelockContract) Address() common.Address {
	return c.address
}

// GetMinDelay returns the minimum delay in seconds for scheduled operations.
func (c *TimelockContract) GetMinDelay(opts *bind.CallOpts) (*big.Int, error) {
	out, err := call(c.contract, opts, "getMinDelay")
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// HasRole reports whether account has been granted role.
func (c *TimelockContract) HasRole(opts *bind.CallOpts, role common.Hash, account common.Address) (bool, error) {
	out, err := call(c.contract, opts, "hasRole", role, account)
	if err != nil {
		return false, err
	}

	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// GetTimestamp returns the unix time at which the operation becomes ready, 0 when unset and 1
// when done.
func (c *TimelockContract) GetTimestamp(opts *bind.CallOpts, id common.Hash) (*big.Int, error) {
	out, err := call(c.contract, opts, "getTimestamp", id)
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetOperationState returns the raw operation state (0 unset, 1 waiting, 2 ready, 3 done).
func (c *TimelockContract) GetOperationState(opts *bind.CallOpts, id common.Hash) (uint8, error) {
	out, err := call(c.contract, opts, "getOperationState", id)
	if err != nil {
		return 0, err
	}

	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// HashOperation asks the contract for the id of an operation.
func (c *TimelockContract) HashOperation(
	opts *bind.CallOpts, target common.Address, value *big.Int, data []byte, predecessor, salt common.Hash,
) (common.Hash, error) {
	out, err := call(c.contract, opts, "hashOperation", target, value, data, predecessor, salt)
	if err != nil {
		return common.Hash{}, err
	}

	return common.Hash(*abi.ConvertType(out[0], new([32]byte)).(*[32]byte)), nil
}

// Execute runs a ready operation. opts.Value must carry the operation value.
func (c *TimelockContract) Execute(
	opts *bind.TransactOpts, target common.Address, value *big.Int, payload []byte, predecessor, salt common.Hash,
) (*types.Transaction, error) {
	return c.contract.Transact(opts, "execute", target, value, payload, predecessor, salt)
}

package calldata

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/feedispatch/multisig-ops/multisig/contracts"
)

// Selector is the 4-byte function selector at the start of calldata.
type Selector [4]byte

// String returns the lower case 0x-prefixed hex form, e.g. "0x0d582f13".
func (s Selector) String() string {
	return hexutil.Encode(s[:])
}

// SelectorOf returns the selector of data. It reports false when data is shorter than 4 bytes.
func SelectorOf(data []byte) (Selector, bool) {
	var s Selector
	if len(data) < len(s) {
		return s, false
	}
	copy(s[:], data)

	return s, true
}

// Contract identifies which of the three workflow contracts a call belongs to.
type Contract uint8

const (
	ContractUnknown Contract = iota
	ContractMultisig
	ContractTimelock
	ContractFeeDispatcher
)

func (c Contract) String() string {
	switch c {
	case ContractMultisig:
		return "multisig"
	case ContractTimelock:
		return "timelock"
	case ContractFeeDispatcher:
		return "fee-dispatcher"
	default:
		return "unknown"
	}
}

// Selectors of every call the codec understands.
var (
	SelectorAddOwner       = mustSelector(contracts.MultiSign, "addOwnerWithThreshold")
	SelectorRemoveOwner    = mustSelector(contracts.MultiSign, "removeOwner")
	SelectorSwapOwner      = mustSelector(contracts.MultiSign, "swapOwner")
	SelectorSchedule       = mustSelector(contracts.Timelock, "schedule")
	SelectorAddReceiver    = mustSelector(contracts.FeeDispatcher, "addReceiver")
	SelectorRemoveReceiver = mustSelector(contracts.FeeDispatcher, "removeReceiver")
)

func mustSelector(a abi.ABI, method string) Selector {
	m, ok := a.Methods[method]
	if !ok {
		panic(fmt.Sprintf("calldata: method %s missing from ABI", method))
	}
	s, _ := SelectorOf(m.ID)

	return s
}

// Addresses are the deployed contract addresses of one workflow instance.
type Addresses struct {
	Multisig      common.Address `json:"multisig"`
	Timelock      common.Address `json:"timelock"`
	FeeDispatcher common.Address `json:"feeDispatcher"`
}

// Of returns the address of contract c, or the zero address for ContractUnknown.
func (a Addresses) Of(c Contract) common.Address {
	switch c {
	case ContractMultisig:
		return a.Multisig
	case ContractTimelock:
		return a.Timelock
	case ContractFeeDispatcher:
		return a.FeeDispatcher
	default:
		return common.Address{}
	}
}

// ContractAt returns which contract is deployed at addr. Addresses compare on their 20 byte form.
func (a Addresses) ContractAt(addr common.Address) Contract {
	if addr == (common.Address{}) {
		return ContractUnknown
	}
	switch addr {
	case a.Multisig:
		return ContractMultisig
	case a.Timelock:
		return ContractTimelock
	case a.FeeDispatcher:
		return ContractFeeDispatcher
	default:
		return ContractUnknown
	}
}

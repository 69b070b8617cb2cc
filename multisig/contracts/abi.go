// Package contracts provides the ABIs and go-ethereum bindings of the three contracts driven by
// the multisig workflow: the multisig executor, the timelock controller and the fee dispatcher.
package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MultiSignABI is the ABI of the multisig executor.
const MultiSignABI = `[
	{"type":"function","name":"getNonce","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getTransactionHash","stateMutability":"view","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"_nonce","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"execTransaction","stateMutability":"payable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"signatures","type":"bytes"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isOwner","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getOwners","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"getThreshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"addOwnerWithThreshold","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"},{"name":"_threshold","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"removeOwner","stateMutability":"nonpayable","inputs":[{"name":"prevOwner","type":"address"},{"name":"owner","type":"address"},{"name":"_threshold","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"swapOwner","stateMutability":"nonpayable","inputs":[{"name":"prevOwner","type":"address"},{"name":"oldOwner","type":"address"},{"name":"newOwner","type":"address"}],"outputs":[]},
	{"type":"function","name":"approveHash","stateMutability":"nonpayable","inputs":[{"name":"hashToApprove","type":"bytes32"}],"outputs":[]},
	{"type":"event","name":"ExecutionSuccess","anonymous":false,"inputs":[{"name":"txHash","type":"bytes32","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

// TimelockABI is the ABI of the OpenZeppelin style timelock controller.
const TimelockABI = `[
	{"type":"function","name":"schedule","stateMutability":"nonpayable","inputs":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"predecessor","type":"bytes32"},{"name":"salt","type":"bytes32"},{"name":"delay","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"execute","stateMutability":"payable","inputs":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"payload","type":"bytes"},{"name":"predecessor","type":"bytes32"},{"name":"salt","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"getMinDelay","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"hasRole","stateMutability":"view","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getTimestamp","stateMutability":"view","inputs":[{"name":"id","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getOperationState","stateMutability":"view","inputs":[{"name":"id","type":"bytes32"}],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"hashOperation","stateMutability":"pure","inputs":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"predecessor","type":"bytes32"},{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"event","name":"CallScheduled","anonymous":false,"inputs":[{"name":"id","type":"bytes32","indexed":true},{"name":"index","type":"uint256","indexed":true},{"name":"target","type":"address","indexed":false},{"name":"value","type":"uint256","indexed":false},{"name":"data","type":"bytes","indexed":false},{"name":"predecessor","type":"bytes32","indexed":false},{"name":"delay","type":"uint256","indexed":false}]},
	{"type":"event","name":"CallExecuted","anonymous":false,"inputs":[{"name":"id","type":"bytes32","indexed":true},{"name":"index","type":"uint256","indexed":true},{"name":"target","type":"address","indexed":false},{"name":"value","type":"uint256","indexed":false},{"name":"payload","type":"bytes","indexed":false}]}
]`

// FeeDispatcherABI is the ABI subset of the fee dispatcher that is changed through the timelock.
const FeeDispatcherABI = `[
	{"type":"function","name":"addReceiver","stateMutability":"nonpayable","inputs":[{"name":"receiver","type":"address"}],"outputs":[]},
	{"type":"function","name":"removeReceiver","stateMutability":"nonpayable","inputs":[{"name":"receiver","type":"address"}],"outputs":[]}
]`

// Parsed ABIs, ready for packing and unpacking.
var (
	MultiSign     = mustParseABI("MultiSign", MultiSignABI)
	Timelock      = mustParseABI("Timelock", TimelockABI)
	FeeDispatcher = mustParseABI("FeeDispatcher", FeeDispatcherABI)
)

func mustParseABI(name, def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("contracts: invalid %s ABI: %v", name, err))
	}

	return parsed
}

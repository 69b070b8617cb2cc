// Package multisig holds the data model shared by the multisig transaction workflow: the typed
// operations carried in contract calldata, the persisted transaction record and its lifecycle
// status, and the error kinds returned by every component.
package multisig

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Operation is one of the typed contract calls the workflow knows how to build and decode.
//
// The set of implementations is closed: OwnerAdd, OwnerRemove, OwnerSwap, TimelockSchedule and
// FeeDispatcherOp.
type Operation interface {
	// Method returns the contract method name the operation encodes to.
	Method() string

	isOperation()
}

var (
	_ Operation = OwnerAdd{}
	_ Operation = OwnerRemove{}
	_ Operation = OwnerSwap{}
	_ Operation = TimelockSchedule{}
	_ Operation = FeeDispatcherOp{}
)

// OwnerAdd adds an owner to the multisig and sets the new threshold.
type OwnerAdd struct {
	Owner     common.Address `json:"owner"`
	Threshold uint32         `json:"threshold"`
}

func (OwnerAdd) Method() string { return "addOwnerWithThreshold" }
func (OwnerAdd) isOperation()   {}

// OwnerRemove removes Owner from the multisig owner list. PrevOwner is the owner pointing to Owner
// in the contract's linked list.
type OwnerRemove struct {
	PrevOwner common.Address `json:"prevOwner"`
	Owner     common.Address `json:"owner"`
	Threshold uint32         `json:"threshold"`
}

func (OwnerRemove) Method() string { return "removeOwner" }
func (OwnerRemove) isOperation()   {}

// OwnerSwap replaces OldOwner with NewOwner.
type OwnerSwap struct {
	PrevOwner common.Address `json:"prevOwner"`
	OldOwner  common.Address `json:"oldOwner"`
	NewOwner  common.Address `json:"newOwner"`
}

func (OwnerSwap) Method() string { return "swapOwner" }
func (OwnerSwap) isOperation()   {}

// TimelockSchedule is a call to the timelock's schedule function. ID is the timelock operation id
// derived from the other fields and is filled in by the codec.
type TimelockSchedule struct {
	Target      common.Address `json:"target"`
	Value       *big.Int       `json:"value"`
	Data        []byte         `json:"data"`
	Predecessor common.Hash    `json:"predecessor"`
	Salt        common.Hash    `json:"salt"`
	Delay       *big.Int       `json:"delay"`
	ID          common.Hash    `json:"id"`
}

func (TimelockSchedule) Method() string { return "schedule" }
func (TimelockSchedule) isOperation()   {}

// ReceiverKind identifies a fee dispatcher receiver change.
type ReceiverKind uint8

const (
	AddReceiver ReceiverKind = iota + 1
	RemoveReceiver
)

// String returns the fee dispatcher method name for the kind.
func (k ReceiverKind) String() string {
	switch k {
	case AddReceiver:
		return "addReceiver"
	case RemoveReceiver:
		return "removeReceiver"
	default:
		return "unknown"
	}
}

// FeeDispatcherOp adds or removes a payout receiver on the fee dispatcher.
type FeeDispatcherOp struct {
	Kind     ReceiverKind   `json:"kind"`
	Receiver common.Address `json:"receiver"`
}

func (o FeeDispatcherOp) Method() string { return o.Kind.String() }
func (FeeDispatcherOp) isOperation()     {}

// DecodedCall is the result of decoding raw calldata.
type DecodedCall struct {
	// Operation is the decoded top level call.
	Operation Operation
	// FeeDispatcher is set when Operation is a TimelockSchedule whose inner call targets the fee
	// dispatcher.
	FeeDispatcher *FeeDispatcherOp
	// TxHash is the multisig transaction digest, present when the destination and nonce were known.
	TxHash *common.Hash
}

// Timelock returns the scheduled timelock call, if the decoded call is one.
func (d *DecodedCall) Timelock() (TimelockSchedule, bool) {
	if d == nil {
		return TimelockSchedule{}, false
	}
	ts, ok := d.Operation.(TimelockSchedule)

	return ts, ok
}

// Package calldata converts between typed multisig operations and the raw calldata stored by the
// persistence backend.
//
// Encoding uses the ABI of the contract owning each operation. Decoding is self describing: the
// 4-byte selector alone identifies the target contract, so records that only carry raw calldata
// can still be recovered.
package calldata

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/multisig/contracts"
	"github.com/feedispatch/multisig-ops/multisig/digest"
)

// Encode ABI-encodes op as a call to the contract that owns it.
func Encode(op multisig.Operation) ([]byte, error) {
	switch o := op.(type) {
	case multisig.OwnerAdd:
		if o.Threshold < 1 {
			return nil, multisig.ErrInvalidThreshold
		}

		return pack(contracts.MultiSign, o.Method(), o.Owner, new(big.Int).SetUint64(uint64(o.Threshold)))
	case multisig.OwnerRemove:
		if o.Threshold < 1 {
			return nil, multisig.ErrInvalidThreshold
		}

		return pack(contracts.MultiSign, o.Method(), o.PrevOwner, o.Owner, new(big.Int).SetUint64(uint64(o.Threshold)))
	case multisig.OwnerSwap:
		return pack(contracts.MultiSign, o.Method(), o.PrevOwner, o.OldOwner, o.NewOwner)
	case multisig.TimelockSchedule:
		return pack(contracts.Timelock, o.Method(),
			o.Target, orZero(o.Value), nonNil(o.Data), o.Predecessor, o.Salt, orZero(o.Delay),
		)
	case multisig.FeeDispatcherOp:
		if o.Kind != multisig.AddReceiver && o.Kind != multisig.RemoveReceiver {
			return nil, fmt.Errorf("unknown receiver change kind %d", o.Kind)
		}

		return pack(contracts.FeeDispatcher, o.Method(), o.Receiver)
	case nil:
		return nil, errors.New("cannot encode nil operation")
	default:
		return nil, fmt.Errorf("unsupported operation %T", op)
	}
}

// ScheduleReceiverChange wraps a fee dispatcher receiver change into a timelock schedule call with
// zero value, zero predecessor and zero salt. Receiver changes are only accepted from the
// timelock, so this is the form in which they are proposed to the multisig.
func ScheduleReceiverChange(
	feeDispatcher common.Address, op multisig.FeeDispatcherOp, delay *big.Int,
) (multisig.TimelockSchedule, []byte, error) {
	inner, err := Encode(op)
	if err != nil {
		return multisig.TimelockSchedule{}, nil, err
	}

	schedule := NewSchedule(feeDispatcher, big.NewInt(0), inner, common.Hash{}, common.Hash{}, delay)
	data, err := Encode(schedule)
	if err != nil {
		return multisig.TimelockSchedule{}, nil, err
	}

	return schedule, data, nil
}

// NewSchedule builds a TimelockSchedule with its operation id filled in.
func NewSchedule(
	target common.Address, value *big.Int, data []byte, predecessor, salt common.Hash, delay *big.Int,
) multisig.TimelockSchedule {
	return multisig.TimelockSchedule{
		Target:      target,
		Value:       orZero(value),
		Data:        nonNil(data),
		Predecessor: predecessor,
		Salt:        salt,
		Delay:       orZero(delay),
		ID:          digest.TimelockOperationID(target, value, data, predecessor, salt),
	}
}

func pack(a abi.ABI, method string, args ...any) ([]byte, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	return data, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return v
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}

	return b
}

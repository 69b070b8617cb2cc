package calldata

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/multisig/contracts"
	"github.com/feedispatch/multisig-ops/multisig/digest"
)

// decodeFunc turns the unpacked ABI arguments of one method into its typed operation.
type decodeFunc func(args []any) (multisig.Operation, error)

type decoder struct {
	contract Contract
	method   abi.Method
	decode   decodeFunc
}

// registry maps every known selector to the contract owning it and its typed decoder.
var registry = map[Selector]decoder{
	SelectorAddOwner: {
		contract: ContractMultisig,
		method:   contracts.MultiSign.Methods["addOwnerWithThreshold"],
		decode: func(args []any) (multisig.Operation, error) {
			threshold, err := toThreshold(args[1])
			if err != nil {
				return nil, err
			}

			return multisig.OwnerAdd{Owner: args[0].(common.Address), Threshold: threshold}, nil
		},
	},
	SelectorRemoveOwner: {
		contract: ContractMultisig,
		method:   contracts.MultiSign.Methods["removeOwner"],
		decode: func(args []any) (multisig.Operation, error) {
			threshold, err := toThreshold(args[2])
			if err != nil {
				return nil, err
			}

			return multisig.OwnerRemove{
				PrevOwner: args[0].(common.Address),
				Owner:     args[1].(common.Address),
				Threshold: threshold,
			}, nil
		},
	},
	SelectorSwapOwner: {
		contract: ContractMultisig,
		method:   contracts.MultiSign.Methods["swapOwner"],
		decode: func(args []any) (multisig.Operation, error) {
			return multisig.OwnerSwap{
				PrevOwner: args[0].(common.Address),
				OldOwner:  args[1].(common.Address),
				NewOwner:  args[2].(common.Address),
			}, nil
		},
	},
	SelectorSchedule: {
		contract: ContractTimelock,
		method:   contracts.Timelock.Methods["schedule"],
		decode: func(args []any) (multisig.Operation, error) {
			return NewSchedule(
				args[0].(common.Address),
				args[1].(*big.Int),
				args[2].([]byte),
				common.Hash(args[3].([32]byte)),
				common.Hash(args[4].([32]byte)),
				args[5].(*big.Int),
			), nil
		},
	},
	SelectorAddReceiver: {
		contract: ContractFeeDispatcher,
		method:   contracts.FeeDispatcher.Methods["addReceiver"],
		decode: func(args []any) (multisig.Operation, error) {
			return multisig.FeeDispatcherOp{Kind: multisig.AddReceiver, Receiver: args[0].(common.Address)}, nil
		},
	},
	SelectorRemoveReceiver: {
		contract: ContractFeeDispatcher,
		method:   contracts.FeeDispatcher.Methods["removeReceiver"],
		decode: func(args []any) (multisig.Operation, error) {
			return multisig.FeeDispatcherOp{Kind: multisig.RemoveReceiver, Receiver: args[0].(common.Address)}, nil
		},
	},
}

// Hint carries what the caller knows about the call besides its bytes.
type Hint struct {
	// To is the destination of the call. When nil the destination is resolved from the selector.
	To *common.Address
	// Nonce is the multisig nonce of the transaction. When set together with a resolvable
	// destination, the decoded call carries the multisig transaction digest.
	Nonce *uint64
}

// Codec decodes calldata for one deployment of the workflow contracts.
type Codec struct {
	Addresses Addresses
	// ChainID is used for the transaction digest. Digests are skipped when nil.
	ChainID *big.Int
}

// NewCodec returns a Codec for the deployment at addrs on chainID.
func NewCodec(addrs Addresses, chainID *big.Int) *Codec {
	return &Codec{Addresses: addrs, ChainID: chainID}
}

// Decode parses data into a typed call. Unknown selectors, calls that do not belong to the hinted
// destination and malformed argument encodings fail with multisig.ErrDecodeFailed.
func (c *Codec) Decode(data []byte, hint Hint) (*multisig.DecodedCall, error) {
	sel, ok := SelectorOf(data)
	if !ok {
		return nil, fmt.Errorf("%w: calldata is %d bytes, need at least 4", multisig.ErrDecodeFailed, len(data))
	}
	dec, ok := registry[sel]
	if !ok {
		return nil, fmt.Errorf("%w: unknown selector %s", multisig.ErrDecodeFailed, sel)
	}

	dest := c.Addresses.Of(dec.contract)
	if hint.To != nil {
		dest = *hint.To
		if at := c.Addresses.ContractAt(dest); at != ContractUnknown && at != dec.contract {
			return nil, fmt.Errorf("%w: selector %s belongs to the %s, not the %s at %s",
				multisig.ErrDecodeFailed, sel, dec.contract, at, dest.Hex())
		}
	}

	op, err := decodeWith(dec, data)
	if err != nil {
		return nil, err
	}

	call := &multisig.DecodedCall{Operation: op}
	if ts, ok := op.(multisig.TimelockSchedule); ok {
		inner, err := c.decodeScheduled(ts, hint.To != nil)
		if err != nil {
			return nil, err
		}
		call.FeeDispatcher = inner
	}

	if hint.Nonce != nil && c.ChainID != nil && dest != (common.Address{}) {
		h := digest.TxDigest(dest, big.NewInt(0), data, *hint.Nonce, c.ChainID, c.Addresses.Multisig)
		call.TxHash = &h
	}

	return call, nil
}

// decodeScheduled decodes the call wrapped by a schedule when it is a fee dispatcher receiver
// change. Other scheduled calls are left opaque. When the destination was given by the caller the
// scheduled target must also be the fee dispatcher.
func (c *Codec) decodeScheduled(ts multisig.TimelockSchedule, checkTarget bool) (*multisig.FeeDispatcherOp, error) {
	sel, ok := SelectorOf(ts.Data)
	if !ok || (sel != SelectorAddReceiver && sel != SelectorRemoveReceiver) {
		return nil, nil
	}
	if checkTarget && ts.Target != c.Addresses.FeeDispatcher {
		return nil, nil
	}
	op, err := decodeWith(registry[sel], ts.Data)
	if err != nil {
		return nil, fmt.Errorf("scheduled call: %w", err)
	}
	fd := op.(multisig.FeeDispatcherOp)

	return &fd, nil
}

func decodeWith(dec decoder, data []byte) (multisig.Operation, error) {
	payload := data[4:]
	if want, static := staticSize(dec.method.Inputs); static && len(payload) != want {
		return nil, fmt.Errorf("%w: %s arguments are %d bytes, want %d",
			multisig.ErrDecodeFailed, dec.method.Name, len(payload), want)
	}

	args, err := dec.method.Inputs.Unpack(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", multisig.ErrDecodeFailed, dec.method.Name, err)
	}
	if len(args) != len(dec.method.Inputs) {
		return nil, fmt.Errorf("%w: %s: got %d arguments, want %d",
			multisig.ErrDecodeFailed, dec.method.Name, len(args), len(dec.method.Inputs))
	}

	op, err := dec.decode(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", multisig.ErrDecodeFailed, dec.method.Name, err)
	}

	return op, nil
}

// staticSize returns the encoded size of args when none of them is dynamic.
func staticSize(args abi.Arguments) (int, bool) {
	size := 0
	for _, a := range args {
		switch a.Type.T {
		case abi.StringTy, abi.BytesTy, abi.SliceTy:
			return 0, false
		}
		size += 32
	}

	return size, true
}

func toThreshold(v any) (uint32, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("threshold has type %T", v)
	}
	if n.Sign() <= 0 || !n.IsUint64() || n.Uint64() > math.MaxUint32 {
		return 0, fmt.Errorf("threshold %s out of range", n)
	}

	return uint32(n.Uint64()), nil
}

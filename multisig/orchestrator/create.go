package orchestrator

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/multisig/calldata"
	"github.com/feedispatch/multisig-ops/multisig/sigcodec"
)

// TxType is the kind of change a proposal makes.
type TxType int

const (
	TxAddReceiver TxType = iota + 1
	TxRemoveReceiver
	TxAddOwner
	TxRemoveOwner
	TxSwapOwner
)

var txTypeNames = map[TxType]string{
	TxAddReceiver:    "add-receiver",
	TxRemoveReceiver: "remove-receiver",
	TxAddOwner:       "add-owner",
	TxRemoveOwner:    "remove-owner",
	TxSwapOwner:      "swap-owner",
}

func (t TxType) String() string {
	if n, ok := txTypeNames[t]; ok {
		return n
	}

	return fmt.Sprintf("TxType(%d)", int(t))
}

// ParseTxType accepts the numeric type or its name, e.g. "3" or "add-owner".
func ParseTxType(s string) (TxType, error) {
	for t, n := range txTypeNames {
		if strings.EqualFold(n, s) || fmt.Sprint(int(t)) == s {
			return t, nil
		}
	}

	return 0, fmt.Errorf("unknown transaction type %q", s)
}

// sentinelOwner heads the multisig owner linked list.
var sentinelOwner = common.HexToAddress("0x0000000000000000000000000000000000000001")

// CreateRequest is an unvalidated proposal request as entered by a user.
type CreateRequest struct {
	Type TxType `json:"type"`
	// Address is the receiver for receiver changes and the owner for owner add/remove.
	Address    string `json:"address,omitempty"`
	OldAddress string `json:"oldAddress,omitempty"`
	NewAddress string `json:"newAddress,omitempty"`
	Threshold  int64  `json:"threshold,omitempty"`
}

// CreateParams are proposal parameters with parsed addresses. Threshold is validated by
// CreateTransaction.
type CreateParams struct {
	Type       TxType
	Address    common.Address
	OldAddress common.Address
	NewAddress common.Address
	Threshold  int64
}

// ParseCreateParams checks the addresses required by req.Type and converts them.
func ParseCreateParams(req CreateRequest) (CreateParams, error) {
	p := CreateParams{Type: req.Type, Threshold: req.Threshold}

	var err error
	switch req.Type {
	case TxAddReceiver, TxRemoveReceiver, TxAddOwner, TxRemoveOwner:
		p.Address, err = parseAddress("address", req.Address)
	case TxSwapOwner:
		if p.OldAddress, err = parseAddress("old address", req.OldAddress); err == nil {
			p.NewAddress, err = parseAddress("new address", req.NewAddress)
		}
	default:
		return p, fmt.Errorf("unknown transaction type %d", int(req.Type))
	}

	return p, err
}

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s %q", multisig.ErrInvalidAddress, field, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s is the zero address", multisig.ErrInvalidAddress, field)
	}

	return addr, nil
}

// Proposal is a signed, not yet persisted multisig transaction.
type Proposal struct {
	To        common.Address `json:"to"`
	Data      []byte         `json:"data"`
	Value     *big.Int       `json:"value"`
	Nonce     uint64         `json:"nonce"`
	Signature []byte         `json:"signature"`
}

// CreateTransaction builds the call for p, signs it at the live multisig nonce and returns the
// proposal. Receiver changes are scheduled through the timelock with its minimum delay.
func (o *Orchestrator) CreateTransaction(ctx context.Context, p CreateParams) (*Proposal, error) {
	to, data, err := o.buildCall(ctx, p)
	if err != nil {
		return nil, err
	}

	nonce, err := o.Nonce(ctx)
	if err != nil {
		return nil, err
	}
	value := big.NewInt(0)
	txDigest := o.digests.TxDigest(to, value, data, nonce)

	o.lggr.Infow("Requesting proposal signature",
		"type", p.Type.String(), "to", to.Hex(), "nonce", nonce, "digest", txDigest.Hex())

	sig, err := sigcodec.SignDigest(ctx, o.wallet, txDigest)
	if err != nil {
		if multisig.IsUserRejected(err) {
			o.metrics.observe(opCreate, outcomeRejected)
		}

		return nil, err
	}
	o.metrics.observe(opCreate, outcomeSigned)

	return &Proposal{To: to, Data: data, Value: value, Nonce: nonce, Signature: sig.Bytes()}, nil
}

func (o *Orchestrator) buildCall(ctx context.Context, p CreateParams) (common.Address, []byte, error) {
	switch p.Type {
	case TxAddReceiver, TxRemoveReceiver:
		if err := requireAddress("receiver", p.Address); err != nil {
			return common.Address{}, nil, err
		}
		kind := multisig.AddReceiver
		if p.Type == TxRemoveReceiver {
			kind = multisig.RemoveReceiver
		}
		delay, err := o.timelock.GetMinDelay(&bind.CallOpts{Context: ctx})
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("%w: getMinDelay: %w", multisig.ErrContractCallFailed, err)
		}
		op := multisig.FeeDispatcherOp{Kind: kind, Receiver: p.Address}
		_, data, err := calldata.ScheduleReceiverChange(o.addrs.FeeDispatcher, op, delay)
		if err != nil {
			return common.Address{}, nil, err
		}

		return o.addrs.Timelock, data, nil

	case TxAddOwner:
		threshold, err := checkThreshold(p.Threshold)
		if err != nil {
			return common.Address{}, nil, err
		}
		if err = requireAddress("owner", p.Address); err != nil {
			return common.Address{}, nil, err
		}
		data, err := calldata.Encode(multisig.OwnerAdd{Owner: p.Address, Threshold: threshold})

		return o.addrs.Multisig, data, err

	case TxRemoveOwner:
		threshold, err := checkThreshold(p.Threshold)
		if err != nil {
			return common.Address{}, nil, err
		}
		if err = requireAddress("owner", p.Address); err != nil {
			return common.Address{}, nil, err
		}
		prev, err := o.prevOwner(ctx, p.Address)
		if err != nil {
			return common.Address{}, nil, err
		}
		data, err := calldata.Encode(multisig.OwnerRemove{PrevOwner: prev, Owner: p.Address, Threshold: threshold})

		return o.addrs.Multisig, data, err

	case TxSwapOwner:
		if err := requireAddress("old owner", p.OldAddress); err != nil {
			return common.Address{}, nil, err
		}
		if err := requireAddress("new owner", p.NewAddress); err != nil {
			return common.Address{}, nil, err
		}
		prev, err := o.prevOwner(ctx, p.OldAddress)
		if err != nil {
			return common.Address{}, nil, err
		}
		data, err := calldata.Encode(multisig.OwnerSwap{PrevOwner: prev, OldOwner: p.OldAddress, NewOwner: p.NewAddress})

		return o.addrs.Multisig, data, err

	default:
		return common.Address{}, nil, fmt.Errorf("unknown transaction type %d", int(p.Type))
	}
}

// prevOwner returns the owner preceding owner in the contract's linked list.
func (o *Orchestrator) prevOwner(ctx context.Context, owner common.Address) (common.Address, error) {
	owners, err := o.Owners(ctx)
	if err != nil {
		return common.Address{}, err
	}
	for i, a := range owners {
		if a != owner {
			continue
		}
		if i == 0 {
			return sentinelOwner, nil
		}

		return owners[i-1], nil
	}

	return common.Address{}, fmt.Errorf("%w: %s", multisig.ErrNotOwner, owner.Hex())
}

func checkThreshold(t int64) (uint32, error) {
	if t < 1 {
		return 0, fmt.Errorf("%w: got %d", multisig.ErrInvalidThreshold, t)
	}
	if t > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d is too large", multisig.ErrInvalidThreshold, t)
	}

	return uint32(t), nil
}

func requireAddress(field string, a common.Address) error {
	if a == (common.Address{}) {
		return fmt.Errorf("%w: %s is the zero address", multisig.ErrInvalidAddress, field)
	}

	return nil
}

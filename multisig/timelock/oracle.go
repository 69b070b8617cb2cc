// Package timelock decides whether a scheduled timelock operation can be executed by an account.
package timelock

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sourcegraph/conc/pool"

	"github.com/feedispatch/multisig-ops/multisig"
)

// ExecutorRole is keccak256("EXECUTOR_ROLE"). Granting it to the zero address opens execution to
// every account.
var ExecutorRole = crypto.Keccak256Hash([]byte("EXECUTOR_ROLE"))

// OperationState mirrors the timelock's getOperationState result.
type OperationState uint8

const (
	OperationUnset OperationState = iota
	OperationWaiting
	OperationReady
	OperationDone
)

func (s OperationState) String() string {
	switch s {
	case OperationUnset:
		return "Unset"
	case OperationWaiting:
		return "Waiting"
	case OperationReady:
		return "Ready"
	case OperationDone:
		return "Done"
	default:
		return fmt.Sprintf("OperationState(%d)", uint8(s))
	}
}

// Reader is the read-only timelock surface the oracle needs. contracts.TimelockContract
// implements it.
type Reader interface {
	GetMinDelay(opts *bind.CallOpts) (*big.Int, error)
	HasRole(opts *bind.CallOpts, role common.Hash, account common.Address) (bool, error)
	GetTimestamp(opts *bind.CallOpts, id common.Hash) (*big.Int, error)
	GetOperationState(opts *bind.CallOpts, id common.Hash) (uint8, error)
}

// Details are the raw reads a decision was based on.
type Details struct {
	MinDelay       *big.Int
	AnyoneCanExec  bool
	AccountCanExec bool
	Timestamp      *big.Int
	State          OperationState
	// Remaining is how long until the operation becomes ready. Zero when it is not waiting.
	Remaining time.Duration
}

// Permission is the outcome of CanExecute.
type Permission struct {
	Allowed bool
	Reason  string
	Details Details
}

// Oracle answers execution permission questions from on-chain state. It never writes.
type Oracle struct {
	reader Reader
	now    func() time.Time
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithClock replaces time.Now, which is used to compute the remaining wait of a waiting operation.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

// NewOracle returns an Oracle reading from r.
func NewOracle(r Reader, opts ...Option) *Oracle {
	o := &Oracle{reader: r, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// CanExecute reports whether account may execute the operation with id right now.
//
// The decision is taken in order: an unset operation is denied, a done operation is denied, an
// operation that is not ready is denied, and a ready one is allowed when the executor role is held
// by the zero address or by account. A failed read yields an ErrContractCallFailed error and a
// denied permission.
func (o *Oracle) CanExecute(ctx context.Context, id common.Hash, account common.Address) (Permission, error) {
	var (
		d     Details
		state uint8
		opts  = &bind.CallOpts{Context: ctx}
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) (err error) {
		d.MinDelay, err = o.reader.GetMinDelay(withContext(opts, ctx))
		return wrapRead("getMinDelay", err)
	})
	p.Go(func(ctx context.Context) (err error) {
		d.AnyoneCanExec, err = o.reader.HasRole(withContext(opts, ctx), ExecutorRole, common.Address{})
		return wrapRead("hasRole(zero address)", err)
	})
	p.Go(func(ctx context.Context) (err error) {
		d.AccountCanExec, err = o.reader.HasRole(withContext(opts, ctx), ExecutorRole, account)
		return wrapRead("hasRole(account)", err)
	})
	p.Go(func(ctx context.Context) (err error) {
		d.Timestamp, err = o.reader.GetTimestamp(withContext(opts, ctx), id)
		return wrapRead("getTimestamp", err)
	})
	p.Go(func(ctx context.Context) (err error) {
		state, err = o.reader.GetOperationState(withContext(opts, ctx), id)
		return wrapRead("getOperationState", err)
	})
	if err := p.Wait(); err != nil {
		return Permission{Reason: fmt.Sprintf("permission check failed: %v", err)}, err
	}
	d.State = OperationState(state)

	return decide(d, account, o.now()), nil
}

func decide(d Details, account common.Address, now time.Time) Permission {
	perm := Permission{Details: d}

	switch {
	case d.State == OperationUnset:
		perm.Reason = "operation not scheduled"
	case d.State == OperationDone:
		perm.Reason = "operation already executed"
	case d.State != OperationReady:
		if d.State != OperationWaiting {
			perm.Reason = fmt.Sprintf("operation is not ready (state %s)", d.State)
			break
		}
		if d.Timestamp == nil || !d.Timestamp.IsInt64() || d.Timestamp.Int64() <= 1 {
			perm.Reason = "operation is Waiting, remaining time unknown"
			break
		}
		remaining := time.Unix(d.Timestamp.Int64(), 0).Sub(now).Truncate(time.Second)
		if remaining < 0 {
			remaining = 0
		}
		perm.Details.Remaining = remaining
		perm.Reason = fmt.Sprintf("operation is Waiting, %d seconds remaining", int64(remaining/time.Second))
	case d.AnyoneCanExec:
		perm.Allowed = true
		perm.Reason = "executor role is open to anyone"
	case d.AccountCanExec:
		perm.Allowed = true
		perm.Reason = fmt.Sprintf("%s holds the executor role", account.Hex())
	default:
		perm.Reason = fmt.Sprintf("no executor role: %s cannot execute timelock operations", account.Hex())
	}

	return perm
}

func withContext(opts *bind.CallOpts, ctx context.Context) *bind.CallOpts {
	cp := *opts
	cp.Context = ctx

	return &cp
}

func wrapRead(method string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: timelock %s: %w", multisig.ErrContractCallFailed, method, err)
}

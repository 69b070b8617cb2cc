package orchestrator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/multisig/calldata"
	"github.com/feedispatch/multisig-ops/multisig/sigcodec"
)

// Result is the outcome of a confirmed submission.
type Result struct {
	TxID   string          `json:"txid"`
	Status multisig.Status `json:"status"`
}

// CoSign adds the connected account's approval to a ready transaction and submits it through the
// multisig. It returns nil without error when there is nothing to do: the transaction is not
// Ready, or the account already signed it. A ready transaction without the proposer's signature
// is rejected before anything is submitted.
//
// The nonce comparison happens before submission only. Another owner may still submit at the same
// nonce in between, in which case the multisig reverts and the error is returned as is.
func (o *Orchestrator) CoSign(ctx context.Context, tx multisig.PendingTransaction) (*Result, error) {
	me := o.wallet.Address()
	lggr := o.lggr.With("id", tx.ID, "nonce", tx.Nonce, "account", me.Hex())

	if tx.Status != multisig.StatusReady {
		lggr.Debugw("Skipping co-sign, transaction is not ready", "status", tx.Status.String())
		o.metrics.observe(opCoSign, outcomeNoop)

		return nil, nil
	}

	value := tx.ValueOrZero()
	txDigest := o.digests.TxDigest(tx.To, value, tx.Data, tx.Nonce)

	existing, err := sigcodec.Split(tx.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", multisig.ErrSignatureVerificationFailed, err)
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("%w: transaction %s carries no proposer signature", multisig.ErrSignatureVerificationFailed, tx.ID)
	}
	signed, err := sigcodec.ContainsSigner(txDigest, tx.Signature, me)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", multisig.ErrSignatureVerificationFailed, err)
	}
	if signed {
		lggr.Infow("Skipping co-sign, account already signed")
		o.metrics.observe(opCoSign, outcomeNoop)

		return nil, nil
	}

	live, err := o.Nonce(ctx)
	if err != nil {
		return nil, err
	}
	if live != tx.Nonce {
		lggr.Warnw("Nonce mismatch, not submitting", "liveNonce", live)
		o.metrics.observe(opCoSign, outcomeNonceMismatch)

		return nil, fmt.Errorf("%w: transaction nonce %d, contract nonce %d", multisig.ErrNonceMismatch, tx.Nonce, live)
	}

	packed, err := sigcodec.Pack(txDigest, append(existing, sigcodec.ApprovalSignature(me))...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", multisig.ErrSignatureVerificationFailed, err)
	}

	opts, err := o.wallet.TransactOpts(ctx)
	if err != nil {
		return nil, o.submitError(opCoSign, err)
	}
	opts.Value = value

	lggr.Infow("Submitting execTransaction", "to", tx.To.Hex(), "signatures", len(packed)/sigcodec.Length)
	sent, err := o.multisig.ExecTransaction(opts, tx.To, value, tx.Data, packed)
	if err != nil {
		return nil, o.submitError(opCoSign, err)
	}

	status := multisig.StatusExecuted
	if tx.To == o.addrs.Timelock {
		status = multisig.StatusProposed
	}

	return o.awaitConfirmation(opCoSign, sent, status)
}

// Execute runs the timelock operation scheduled by tx once the permission oracle allows the
// connected account to. It returns nil without error when tx is already terminal or its calldata
// is not a timelock schedule.
func (o *Orchestrator) Execute(ctx context.Context, tx multisig.PendingTransaction) (*Result, error) {
	me := o.wallet.Address()
	lggr := o.lggr.With("id", tx.ID, "nonce", tx.Nonce, "account", me.Hex())

	if tx.Status.IsTerminal() {
		lggr.Debugw("Skipping execute, transaction is terminal", "status", tx.Status.String())
		o.metrics.observe(opExecute, outcomeNoop)

		return nil, nil
	}

	to, nonce := tx.To, tx.Nonce
	decoded, err := o.codec.Decode(tx.Data, calldata.Hint{To: &to, Nonce: &nonce})
	if err != nil {
		return nil, err
	}
	op, ok := decoded.Timelock()
	if !ok {
		lggr.Debugw("Skipping execute, not a timelock schedule", "method", decoded.Operation.Method())
		o.metrics.observe(opExecute, outcomeNoop)

		return nil, nil
	}

	perm, err := o.oracle.CanExecute(ctx, op.ID, me)
	if err != nil {
		return nil, err
	}
	if !perm.Allowed {
		lggr.Infow("Timelock operation not executable", "operationId", op.ID.Hex(), "reason", perm.Reason)
		o.metrics.observe(opExecute, outcomeDenied)

		return nil, fmt.Errorf("%w: %s", multisig.ErrPermissionDenied, perm.Reason)
	}

	opts, err := o.wallet.TransactOpts(ctx)
	if err != nil {
		return nil, o.submitError(opExecute, err)
	}
	value := op.Value
	if value == nil {
		value = new(big.Int)
	}
	opts.Value = value

	lggr.Infow("Submitting timelock execute", "operationId", op.ID.Hex(), "target", op.Target.Hex())
	sent, err := o.timelock.Execute(opts, op.Target, value, op.Data, op.Predecessor, op.Salt)
	if err != nil {
		return nil, o.submitError(opExecute, err)
	}

	return o.awaitConfirmation(opExecute, sent, multisig.StatusExecuted)
}

func (o *Orchestrator) awaitConfirmation(operation string, sent *types.Transaction, status multisig.Status) (*Result, error) {
	o.metrics.observe(operation, outcomeSubmitted)
	o.lggr.Infow("Waiting for confirmation", "operation", operation, "txid", sent.Hash().Hex())

	block, err := o.confirm(sent)
	if err != nil {
		o.metrics.observe(operation, outcomeFailed)

		return nil, fmt.Errorf("%w: transaction %s: %w", multisig.ErrContractCallFailed, sent.Hash().Hex(), err)
	}
	o.metrics.observe(operation, outcomeConfirmed)
	o.lggr.Infow("Transaction confirmed",
		"operation", operation, "txid", sent.Hash().Hex(), "block", block, "status", status.String())

	return &Result{TxID: sent.Hash().Hex(), Status: status}, nil
}

func (o *Orchestrator) submitError(operation string, err error) error {
	if multisig.IsUserRejected(err) {
		o.metrics.observe(operation, outcomeRejected)

		return fmt.Errorf("%w: %w", multisig.ErrUserRejected, err)
	}
	o.metrics.observe(operation, outcomeFailed)

	return fmt.Errorf("%w: %w", multisig.ErrContractCallFailed, err)
}

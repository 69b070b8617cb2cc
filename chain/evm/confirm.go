package evm

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ConfirmFunctor creates the confirmation function for transactions sent from one account.
type ConfirmFunctor interface {
	// Generate returns a function that confirms transactions sent by from through client.
	Generate(ctx context.Context, client OnchainClient, from common.Address) (ConfirmFunc, error)
}

// ConfirmFuncGeth returns a ConfirmFunctor that polls the client for receipts. A reverted
// transaction is replayed with eth_call at its block to recover the revert reason.
func ConfirmFuncGeth(waitMinedTimeout time.Duration, opts ...func(*confirmFuncGeth)) ConfirmFunctor {
	cf := &confirmFuncGeth{
		tickInterval:     1 * time.Second, // the same value we have in bind.WaitMined hardcoded in "go-ethereum"
		waitMinedTimeout: waitMinedTimeout,
	}
	for _, o := range opts {
		o(cf)
	}

	return cf
}

func WithTickInterval(interval time.Duration) func(*confirmFuncGeth) {
	return func(o *confirmFuncGeth) {
		o.tickInterval = interval
	}
}

type confirmFuncGeth struct {
	tickInterval     time.Duration
	waitMinedTimeout time.Duration
}

func (g *confirmFuncGeth) Generate(
	ctx context.Context, client OnchainClient, from common.Address,
) (ConfirmFunc, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required to confirm transactions of %s", from.Hex())
	}

	return func(tx *types.Transaction) (uint64, error) {
		if tx == nil {
			return 0, fmt.Errorf("tx was nil, nothing to confirm for %s", from.Hex())
		}

		ctxTimeout, cancel := context.WithTimeout(ctx, g.waitMinedTimeout)
		defer cancel()

		receipt, err := WaitMinedWithInterval(ctxTimeout, g.tickInterval, client, tx.Hash())
		if err != nil {
			return 0, fmt.Errorf("tx %s failed to confirm: %w", tx.Hash().Hex(), err)
		}
		if receipt == nil {
			return 0, fmt.Errorf("receipt was nil for tx %s", tx.Hash().Hex())
		}

		blockNum := receipt.BlockNumber.Uint64()

		if receipt.Status == types.ReceiptStatusFailed {
			reason, err := getErrorReasonFromTx(ctxTimeout, client, from, tx, receipt)
			if err == nil && reason != "" {
				return blockNum, fmt.Errorf("tx %s reverted: %s", tx.Hash().Hex(), reason)
			}

			return blockNum, fmt.Errorf("tx %s reverted, could not decode error reason", tx.Hash().Hex())
		}

		return blockNum, nil
	}, nil
}

// WaitMinedWithInterval polls for the receipt of txHash every tick until it is found or ctx is
// done.
func WaitMinedWithInterval(ctx context.Context, tick time.Duration, b bind.DeployBackend, txHash common.Hash) (*types.Receipt, error) {
	queryTicker := time.NewTicker(tick)
	defer queryTicker.Stop()
	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-queryTicker.C:
		}
	}
}

// Package evm connects the multisig workflow to EVM nodes: a failover JSON-RPC client and the
// confirmation of submitted transactions.
package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ConfirmFunc is a function that takes a transaction, waits for the transaction to be confirmed,
// and returns the block number and an error.
type ConfirmFunc func(tx *types.Transaction) (uint64, error)

// OnchainClient is an EVM chain client.
type OnchainClient interface {
	bind.ContractBackend
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/feedispatch/multisig-ops/multisig"
)

// RPCWallet delegates signing to a wallet reachable over JSON-RPC, e.g. a browser extension
// bridge or a remote signer. Requests block until the holder answers; a refusal is reported as
// multisig.ErrUserRejected.
type RPCWallet struct {
	client  *rpc.Client
	address common.Address
	chainID *big.Int
}

// DialRPCWallet connects to the wallet at url and requests its accounts.
func DialRPCWallet(ctx context.Context, url string, chainID *big.Int) (*RPCWallet, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet: %w", err)
	}
	w, err := NewRPCWallet(ctx, client, chainID)
	if err != nil {
		client.Close()
		return nil, err
	}

	return w, nil
}

// NewRPCWallet requests the accounts of the wallet behind client and uses the first one.
func NewRPCWallet(ctx context.Context, client *rpc.Client, chainID *big.Int) (*RPCWallet, error) {
	if chainID == nil {
		return nil, errors.New("chainID is required")
	}

	var accounts []common.Address
	if err := client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, walletError("eth_requestAccounts", err)
	}
	if len(accounts) == 0 {
		return nil, errors.New("wallet returned no accounts")
	}

	return &RPCWallet{client: client, address: accounts[0], chainID: chainID}, nil
}

func (w *RPCWallet) Address() common.Address { return w.address }

// SignMessage asks the wallet for a personal_sign signature over msg.
func (w *RPCWallet) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	var sig hexutil.Bytes
	if err := w.client.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(msg), w.address); err != nil {
		return nil, walletError("personal_sign", err)
	}

	return sig, nil
}

// SignTypedData asks the wallet for an eth_signTypedData_v4 signature over data.
func (w *RPCWallet) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode typed data: %w", err)
	}

	var sig hexutil.Bytes
	if err := w.client.CallContext(ctx, &sig, "eth_signTypedData_v4", w.address, string(payload)); err != nil {
		return nil, walletError("eth_signTypedData_v4", err)
	}

	return sig, nil
}

// TransactOpts returns options whose signer asks the wallet to sign with eth_signTransaction.
func (w *RPCWallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{
		From:    w.address,
		Context: ctx,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != w.address {
				return nil, bind.ErrNotAuthorized
			}

			return w.signTransaction(ctx, tx)
		},
	}, nil
}

// Close releases the connection to the wallet.
func (w *RPCWallet) Close() {
	w.client.Close()
}

type sendTxArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Data                 hexutil.Bytes   `json:"data"`
	ChainID              *hexutil.Big    `json:"chainId"`
}

type signTxResult struct {
	Raw hexutil.Bytes `json:"raw"`
}

func (w *RPCWallet) signTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	args := sendTxArgs{
		From:    w.address,
		To:      tx.To(),
		Gas:     hexutil.Uint64(tx.Gas()),
		Value:   (*hexutil.Big)(tx.Value()),
		Nonce:   hexutil.Uint64(tx.Nonce()),
		Data:    tx.Data(),
		ChainID: (*hexutil.Big)(w.chainID),
	}
	if tx.Type() == types.DynamicFeeTxType {
		args.MaxFeePerGas = (*hexutil.Big)(tx.GasFeeCap())
		args.MaxPriorityFeePerGas = (*hexutil.Big)(tx.GasTipCap())
	} else {
		args.GasPrice = (*hexutil.Big)(tx.GasPrice())
	}

	var res signTxResult
	if err := w.client.CallContext(ctx, &res, "eth_signTransaction", args); err != nil {
		return nil, walletError("eth_signTransaction", err)
	}

	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(res.Raw); err != nil {
		return nil, fmt.Errorf("wallet returned an invalid transaction: %w", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(w.chainID), signed)
	if err != nil {
		return nil, fmt.Errorf("wallet returned an invalid signature: %w", err)
	}
	if sender != w.address {
		return nil, fmt.Errorf("wallet signed with %s, want %s", sender.Hex(), w.address.Hex())
	}

	return signed, nil
}

func walletError(method string, err error) error {
	if multisig.IsUserRejected(err) {
		return fmt.Errorf("%w: %s: %w", multisig.ErrUserRejected, method, err)
	}

	return fmt.Errorf("%s failed: %w", method, err)
}

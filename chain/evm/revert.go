package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractCaller is the subset of the client needed to replay a transaction.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// getErrorReasonFromTx replays tx with eth_call at the block of its receipt and extracts the
// revert reason from the returned error.
func getErrorReasonFromTx(
	ctx context.Context,
	caller ContractCaller,
	from common.Address,
	tx *types.Transaction,
	receipt *types.Receipt,
) (string, error) {
	call := ethereum.CallMsg{
		From:     from,
		To:       tx.To(),
		Data:     tx.Data(),
		Value:    tx.Value(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
	}

	if _, err := caller.CallContract(ctx, call, receipt.BlockNumber); err != nil {
		reason, perr := getJSONErrorData(err)
		if perr == nil {
			return reason, nil
		}

		// Not a JSON-RPC error, the message itself is the best we have.
		if reason == "" {
			return err.Error(), nil
		}
	}

	return "", fmt.Errorf("tx %s reverted with no reason", tx.Hash().Hex())
}

// getJSONErrorData extracts the error data of a JSON-RPC error. Data holding an Error(string)
// revert payload is decoded to its message.
func getJSONErrorData(err error) (string, error) {
	if err == nil {
		return "", errors.New("cannot parse nil error")
	}

	// go-ethereum keeps its JSON error type private.
	type jsonError interface {
		Error() string
		ErrorCode() int
		ErrorData() any
	}

	var jerr jsonError
	if !errors.As(err, &jerr) {
		return "", fmt.Errorf("error must be of type jsonError: %w", err)
	}

	data := fmt.Sprintf("%s", jerr.ErrorData())
	if jerr.ErrorData() == nil {
		data = ""
	}
	if data == "" && strings.Contains(jerr.Error(), "missing trie node") {
		return "", errors.New("missing trie node, likely due to not using an archive node")
	}
	if data == "" {
		return jerr.Error(), nil
	}

	return decodeRevert(data), nil
}

// decodeRevert returns the message of an Error(string) payload given as hex, or data unchanged.
func decodeRevert(data string) string {
	raw, err := hexutil.Decode(data)
	if err != nil {
		return data
	}
	if msg, err := abi.UnpackRevert(raw); err == nil {
		return msg
	}

	return data
}

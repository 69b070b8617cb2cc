// Package wallet provides the accounts the multisig workflow signs with: a raw private key, an
// AWS KMS key and a JSON-RPC wallet such as a browser extension bridge. Each one signs
// personal_sign style messages for proposals and transactions for submissions. Logins are signed
// as EIP-712 typed data.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// legacyV is added to the 0/1 recovery id of raw secp256k1 signatures, matching what wallets
// return from personal_sign.
const legacyV = 27

// KeyWallet signs with an in-memory private key.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewKeyWallet returns a wallet for the hex encoded private key on chainID. A 0x prefix is
// accepted.
func NewKeyWallet(hexKey string, chainID *big.Int) (*KeyWallet, error) {
	if chainID == nil {
		return nil, errors.New("chainID is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return newKeyWallet(key, chainID), nil
}

// NewRandomKeyWallet returns a wallet with a freshly generated key.
func NewRandomKeyWallet(chainID *big.Int) (*KeyWallet, error) {
	if chainID == nil {
		return nil, errors.New("chainID is required")
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	return newKeyWallet(key, chainID), nil
}

func newKeyWallet(key *ecdsa.PrivateKey, chainID *big.Int) *KeyWallet {
	return &KeyWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey), chainID: chainID}
}

func (w *KeyWallet) Address() common.Address { return w.address }

// SignMessage signs the EIP-191 hash of msg.
func (w *KeyWallet) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += legacyV

	return sig, nil
}

// SignTypedData signs the EIP-712 hash of data.
func (w *KeyWallet) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += legacyV

	return sig, nil
}

func (w *KeyWallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	return opts, nil
}

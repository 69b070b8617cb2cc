package wallet

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	kmslib "github.com/aws/aws-sdk-go/service/kms"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/feedispatch/multisig-ops/internal/kms"
)

// KMSWallet signs with an asymmetric secp256k1 key held by AWS KMS. The key never leaves KMS:
// every message and transaction hash is sent to the KMS Sign API and the DER signature is
// converted to the 65 byte Ethereum form.
type KMSWallet struct {
	client  kms.Client
	keyID   string
	chainID *big.Int

	mu     sync.Mutex
	pubKey *ecdsa.PublicKey
}

// NewKMSWallet returns a wallet for the KMS key of cfg on chainID. The public key is fetched
// once to derive the address.
func NewKMSWallet(cfg kms.ClientConfig, chainID *big.Int) (*KMSWallet, error) {
	client, err := kms.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KMS Client: %w", err)
	}

	return newKMSWallet(client, cfg.KeyID, chainID)
}

func newKMSWallet(client kms.Client, keyID string, chainID *big.Int) (*KMSWallet, error) {
	if chainID == nil {
		return nil, errors.New("chainID is required")
	}
	w := &KMSWallet{client: client, keyID: keyID, chainID: chainID}
	if _, err := w.publicKey(); err != nil {
		return nil, err
	}

	return w, nil
}

// publicKey returns the ECDSA public key of the KMS key, fetching it on first use.
func (w *KMSWallet) publicKey() (*ecdsa.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pubKey != nil {
		return w.pubKey, nil
	}

	out, err := w.client.GetPublicKey(&kmslib.GetPublicKeyInput{
		KeyId: aws.String(w.keyID),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot get public key from KMS for KeyId=%s: %w", w.keyID, err)
	}

	var spki kms.SPKI
	if _, err = asn1.Unmarshal(out.PublicKey, &spki); err != nil {
		return nil, fmt.Errorf("cannot parse asn1 public key for KeyId=%s: %w", w.keyID, err)
	}

	pubKey, err := crypto.UnmarshalPubkey(spki.SubjectPublicKey.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cannot unmarshal public key bytes: %w", err)
	}
	w.pubKey = pubKey

	return pubKey, nil
}

// Address returns the address of the KMS key. It is resolved when the wallet is created.
func (w *KMSWallet) Address() common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()

	return crypto.PubkeyToAddress(*w.pubKey)
}

// SignMessage signs the EIP-191 hash of msg with the KMS key.
func (w *KMSWallet) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	sig, err := w.signHash(accounts.TextHash(msg))
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += legacyV

	return sig, nil
}

// SignTypedData signs the EIP-712 hash of data with the KMS key.
func (w *KMSWallet) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	sig, err := w.signHash(hash)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += legacyV

	return sig, nil
}

func (w *KMSWallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	pubKey, err := w.publicKey()
	if err != nil {
		return nil, err
	}
	from := crypto.PubkeyToAddress(*pubKey)
	signer := types.LatestSignerForChainID(w.chainID)

	return &bind.TransactOpts{
		From:    from,
		Context: ctx,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != from {
				return nil, bind.ErrNotAuthorized
			}
			sig, err := w.signHash(signer.Hash(tx).Bytes())
			if err != nil {
				return nil, err
			}

			return tx.WithSignature(signer, sig)
		},
	}, nil
}

// signHash signs a 32 byte hash with KMS and returns the signature with a 0/1 recovery id.
func (w *KMSWallet) signHash(hash []byte) ([]byte, error) {
	pubKey, err := w.publicKey()
	if err != nil {
		return nil, err
	}

	out, err := w.client.Sign(&kmslib.SignInput{
		KeyId:            aws.String(w.keyID),
		SigningAlgorithm: aws.String(kmslib.SigningAlgorithmSpecEcdsaSha256),
		MessageType:      aws.String(kmslib.MessageTypeDigest),
		Message:          hash,
	})
	if err != nil {
		return nil, fmt.Errorf("call to kms.Sign() failed: %w", err)
	}

	sig, err := kmsToEVMSig(out.Signature, crypto.FromECDSAPub(pubKey), hash)
	if err != nil {
		return nil, fmt.Errorf("failed to convert KMS signature to Ethereum signature: %w", err)
	}

	return sig, nil
}

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Div(secp256k1N, big.NewInt(2))
)

// kmsToEVMSig converts a DER KMS signature into r || s || v. s is moved to the lower half of the
// curve order as EIP-2 requires, and v is found by recovering the public key.
func kmsToEVMSig(kmsSig, pubKeyBytes, hash []byte) ([]byte, error) {
	var ecdsaSig kms.ECDSASig
	if _, err := asn1.Unmarshal(kmsSig, &ecdsaSig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal KMS signature: %w", err)
	}

	sBytes := ecdsaSig.S.Bytes
	if s := new(big.Int).SetBytes(sBytes); s.Cmp(secp256k1HalfN) > 0 {
		sBytes = new(big.Int).Sub(secp256k1N, s).Bytes()
	}

	rs := append(padTo32Bytes(ecdsaSig.R.Bytes), padTo32Bytes(sBytes)...)
	for _, v := range []byte{0, 1} {
		sig := append(bytes.Clone(rs), v)
		recovered, err := crypto.Ecrecover(hash, sig)
		if err != nil {
			return nil, fmt.Errorf("failed to recover signature with v=%d: %w", v, err)
		}
		if bytes.Equal(recovered, pubKeyBytes) {
			return sig, nil
		}
	}

	return nil, errors.New("cannot reconstruct public key from sig")
}

// padTo32Bytes left pads buffer with zeros to 32 bytes after trimming the sign padding DER adds.
func padTo32Bytes(buffer []byte) []byte {
	buffer = bytes.TrimLeft(buffer, "\x00")
	if len(buffer) >= 32 {
		return buffer
	}

	return append(make([]byte, 32-len(buffer)), buffer...)
}

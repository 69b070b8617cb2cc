package sigcodec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/feedispatch/multisig-ops/multisig"
)

// ethSignOffset is added to the recovery byte of eth_sign style signatures.
const ethSignOffset = 4

// MessageSigner signs arbitrary messages the way personal_sign does: the signature covers the
// EIP-191 hash of the message.
type MessageSigner interface {
	Address() common.Address
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// SignDigest asks signer for a message signature over digest and re-encodes it into the eth_sign
// scheme. The result is recovered and compared with the signer before it is returned.
func SignDigest(ctx context.Context, signer MessageSigner, digest common.Hash) (Signature, error) {
	raw, err := signer.SignMessage(ctx, digest.Bytes())
	if err != nil {
		if multisig.IsUserRejected(err) && !errors.Is(err, multisig.ErrUserRejected) {
			return Signature{}, fmt.Errorf("%w: %w", multisig.ErrUserRejected, err)
		}

		return Signature{}, fmt.Errorf("failed to sign digest %s: %w", digest.Hex(), err)
	}

	sig, err := ParseSignature(raw)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %w", multisig.ErrSignatureVerificationFailed, err)
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return Signature{}, fmt.Errorf("%w: unexpected recovery byte %d", multisig.ErrSignatureVerificationFailed, sig[64])
	}
	sig[64] = v + ethSignOffset

	got, err := RecoverSigner(digest, sig)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %w", multisig.ErrSignatureVerificationFailed, err)
	}
	if got != signer.Address() {
		return Signature{}, fmt.Errorf("%w: recovered %s, want %s",
			multisig.ErrSignatureVerificationFailed, got.Hex(), signer.Address().Hex())
	}

	return sig, nil
}

// RecoverSigner returns the owner that produced sig over digest.
func RecoverSigner(digest common.Hash, sig Signature) (common.Address, error) {
	switch sig.Scheme() {
	case SchemeApproval:
		return common.BytesToAddress(sig[12:32]), nil
	case SchemeEthSign:
		return ecrecover(accounts.TextHash(digest.Bytes()), sig, sig[64]-ethSignOffset-27)
	case SchemeStandard:
		v := sig[64]
		if v < 27 {
			v += 27
		}

		return ecrecover(digest.Bytes(), sig, v-27)
	default:
		return common.Address{}, fmt.Errorf("unsupported signature recovery byte %d", sig[64])
	}
}

func ecrecover(hash []byte, sig Signature, recID byte) (common.Address, error) {
	if recID > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", recID)
	}
	rsv := make([]byte, Length)
	copy(rsv, sig[:64])
	rsv[64] = recID

	pub, err := crypto.SigToPub(hash, rsv)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

type signed struct {
	signer common.Address
	sig    Signature
}

// Pack orders sigs by ascending signer address and concatenates them, which is the order the
// multisig checks them in. The input order does not matter. Two signatures from the same signer
// are rejected.
func Pack(digest common.Hash, sigs ...Signature) ([]byte, error) {
	entries := make([]signed, 0, len(sigs))
	for i, sig := range sigs {
		addr, err := RecoverSigner(digest, sig)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		entries = append(entries, signed{signer: addr, sig: sig})
	}

	slices.SortFunc(entries, func(a, b signed) int {
		return bytes.Compare(a.signer.Bytes(), b.signer.Bytes())
	})

	out := make([]byte, 0, len(entries)*Length)
	for i, e := range entries {
		if i > 0 && entries[i-1].signer == e.signer {
			return nil, fmt.Errorf("duplicate signature from %s", e.signer.Hex())
		}
		out = append(out, e.sig[:]...)
	}

	return out, nil
}

// Signers recovers every signer in a packed blob, in blob order.
func Signers(digest common.Hash, blob []byte) ([]common.Address, error) {
	sigs, err := Split(blob)
	if err != nil {
		return nil, err
	}
	addrs := make([]common.Address, 0, len(sigs))
	for i, sig := range sigs {
		addr, err := RecoverSigner(digest, sig)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		addrs = append(addrs, addr)
	}

	return addrs, nil
}

// ContainsSigner reports whether any signature in blob was produced by addr.
func ContainsSigner(digest common.Hash, blob []byte, addr common.Address) (bool, error) {
	signers, err := Signers(digest, blob)
	if err != nil {
		return false, err
	}

	return slices.Contains(signers, addr), nil
}

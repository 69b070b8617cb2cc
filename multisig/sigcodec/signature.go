// Package sigcodec produces, parses and packs the 65 byte owner signatures accepted by the
// multisig executor.
//
// Three encodings share the r‖s‖v layout and are told apart by v alone, see Scheme.
package sigcodec

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Length is the size of one encoded signature.
const Length = 65

// Scheme is the signature encoding selected by the v byte.
type Scheme uint8

const (
	SchemeUnknown Scheme = iota
	// SchemeApproval is the pseudo-signature with v = 1. r holds the approving owner left padded to
	// 32 bytes and s carries nothing. The multisig accepts it when the owner is the submitter or has
	// approved the hash on chain.
	SchemeApproval
	// SchemeStandard is a secp256k1 signature over the raw digest with v in {27, 28}. v = 0 is
	// read as 27.
	SchemeStandard
	// SchemeEthSign is a secp256k1 signature over the EIP-191 prefixed digest, with v shifted by 4
	// into {31..34}.
	SchemeEthSign
)

func (s Scheme) String() string {
	switch s {
	case SchemeApproval:
		return "approval"
	case SchemeStandard:
		return "standard"
	case SchemeEthSign:
		return "eth_sign"
	default:
		return "unknown"
	}
}

// SchemeOf selects the scheme for a v byte.
func SchemeOf(v byte) Scheme {
	switch {
	case v == 1:
		return SchemeApproval
	case v == 0, v == 27, v == 28:
		return SchemeStandard
	case v >= 31 && v <= 34:
		return SchemeEthSign
	default:
		return SchemeUnknown
	}
}

// Signature is one encoded owner signature: r (32 bytes) ‖ s (32 bytes) ‖ v (1 byte).
type Signature [Length]byte

// ParseSignature copies b into a Signature. b must be exactly 65 bytes.
func ParseSignature(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != Length {
		return sig, fmt.Errorf("signature must be %d bytes, got %d", Length, len(b))
	}
	copy(sig[:], b)

	return sig, nil
}

// Split cuts a packed signature blob into its signatures.
func Split(blob []byte) ([]Signature, error) {
	if len(blob)%Length != 0 {
		return nil, fmt.Errorf("packed signatures must be a multiple of %d bytes, got %d", Length, len(blob))
	}
	sigs := make([]Signature, 0, len(blob)/Length)
	for off := 0; off < len(blob); off += Length {
		var sig Signature
		copy(sig[:], blob[off:off+Length])
		sigs = append(sigs, sig)
	}

	return sigs, nil
}

func (s Signature) R() common.Hash { return common.BytesToHash(s[:32]) }
func (s Signature) S() common.Hash { return common.BytesToHash(s[32:64]) }
func (s Signature) V() byte        { return s[64] }
func (s Signature) Scheme() Scheme { return SchemeOf(s[64]) }
func (s Signature) Bytes() []byte  { return append([]byte(nil), s[:]...) }
func (s Signature) String() string { return hexutil.Encode(s[:]) }

// ApprovalSignature returns the pseudo-signature {r = leftPad(owner, 32), s = 0, v = 1}.
func ApprovalSignature(owner common.Address) Signature {
	var sig Signature
	copy(sig[12:32], owner.Bytes())
	sig[64] = 1

	return sig
}

// Package auth signs and verifies the EIP-712 login message exchanged for a session token of the
// persistence backend.
package auth

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/feedispatch/multisig-ops/multisig"
)

const (
	DomainName    = "Login"
	DomainVersion = "1"

	// TimeLayout is the ISO 8601 form with milliseconds used for login_at.
	TimeLayout = "2006-01-02T15:04:05.000Z"
)

// DefaultVerifyingContract is the placeholder verifying contract of the login domain. No contract
// is deployed there.
var DefaultVerifyingContract = common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC")

var loginTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Login": {
		{Name: "address", Type: "address"},
		{Name: "login_at", Type: "string"},
	},
}

// Signer signs EIP-712 typed data. The wallets of package chain/evm/wallet implement it.
type Signer interface {
	Address() common.Address
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// Domain is the part of the login domain that varies between deployments.
type Domain struct {
	ChainID *big.Int
	// VerifyingContract defaults to DefaultVerifyingContract when zero.
	VerifyingContract common.Address
}

// Login is the signed message.
type Login struct {
	Address common.Address
	LoginAt string
}

// NewLogin returns the login message of address at t.
func NewLogin(address common.Address, t time.Time) Login {
	return Login{Address: address, LoginAt: t.UTC().Format(TimeLayout)}
}

// TypedData returns the EIP-712 document of l under d.
func TypedData(d Domain, l Login) apitypes.TypedData {
	verifying := d.VerifyingContract
	if verifying == (common.Address{}) {
		verifying = DefaultVerifyingContract
	}
	chainID := d.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}

	return apitypes.TypedData{
		Types:       loginTypes,
		PrimaryType: "Login",
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: verifying.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"address":  l.Address.Hex(),
			"login_at": l.LoginAt,
		},
	}
}

// Hash returns the EIP-712 hash of l under d.
func Hash(d Domain, l Login) (common.Hash, error) {
	hash, _, err := apitypes.TypedDataAndHash(TypedData(d, l))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash login: %w", err)
	}

	return common.BytesToHash(hash), nil
}

// SignedLogin is a login message with its signature.
type SignedLogin struct {
	Login
	Signature []byte
}

// SignatureHex returns the 0x-prefixed signature as the backend expects it.
func (s SignedLogin) SignatureHex() string {
	return hexutil.Encode(s.Signature)
}

// SignLogin signs the login message of s at time at and checks the signature before returning
// it.
func SignLogin(ctx context.Context, s Signer, d Domain, at time.Time) (*SignedLogin, error) {
	l := NewLogin(s.Address(), at)

	sig, err := s.SignTypedData(ctx, TypedData(d, l))
	if err != nil {
		return nil, err
	}
	if err := VerifyLogin(d, l, sig); err != nil {
		return nil, err
	}

	return &SignedLogin{Login: l, Signature: sig}, nil
}

// Recover returns the account that signed l under d.
func Recover(d Domain, l Login, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature is %d bytes, want %d", len(sig), crypto.SignatureLength)
	}
	hash, err := Hash(d, l)
	if err != nil {
		return common.Address{}, err
	}

	rsv := make([]byte, len(sig))
	copy(rsv, sig)
	if v := rsv[crypto.RecoveryIDOffset]; v >= 27 {
		rsv[crypto.RecoveryIDOffset] = v - 27
	}
	pub, err := crypto.SigToPub(hash.Bytes(), rsv)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover login signer: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyLogin checks that sig is l.Address's signature of l under d.
func VerifyLogin(d Domain, l Login, sig []byte) error {
	signer, err := Recover(d, l, sig)
	if err != nil {
		return fmt.Errorf("%w: %w", multisig.ErrSignatureVerificationFailed, err)
	}
	if signer != l.Address {
		return fmt.Errorf("%w: login of %s signed by %s", multisig.ErrSignatureVerificationFailed, l.Address.Hex(), signer.Hex())
	}

	return nil
}

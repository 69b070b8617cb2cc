// Package digest computes the hashes the multisig and timelock contracts derive on chain: the
// EIP-712 domain separator and transaction digest of the multisig executor, and the timelock
// operation id.
package digest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// DomainName and DomainVersion are the EIP-712 domain fields of the multisig executor.
	DomainName    = "MultiSign"
	DomainVersion = "1.0.0"

	domainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	txType     = "MultiSignTx(address to,uint256 value,bytes32 data,uint256 nonce)"
)

var (
	// DomainTypeHash is keccak256 of the EIP-712 domain type string
	// (0x8b73c3c69bb8fe3d512ecc4cf759cc79239f7b179b0ffacaa9a75d522b39400f).
	DomainTypeHash = crypto.Keccak256Hash([]byte(domainType))
	// TxTypeHash is keccak256 of the multisig transaction type string
	// (0x90f2abebc0ebf10eda0133cafe01e69b86c3048e61f94df8484576452f9be4e0).
	TxTypeHash = crypto.Keccak256Hash([]byte(txType))

	nameHash    = crypto.Keccak256Hash([]byte(DomainName))
	versionHash = crypto.Keccak256Hash([]byte(DomainVersion))

	domainArgs    = mustArgs("bytes32", "bytes32", "bytes32", "uint256", "address")
	txStructArgs  = mustArgs("bytes32", "address", "uint256", "bytes32", "uint256")
	operationArgs = mustArgs("address", "uint256", "bytes", "bytes32", "bytes32")
)

// DomainSeparator returns the EIP-712 domain separator of the multisig deployed at contract on
// chainID.
func DomainSeparator(chainID *big.Int, contract common.Address) common.Hash {
	return crypto.Keccak256Hash(mustPack(domainArgs, DomainTypeHash, nameHash, versionHash, orZero(chainID), contract))
}

// TxDigest returns the digest owners sign to authorize the multisig at contract to call to with
// value and data at nonce.
func TxDigest(
	to common.Address, value *big.Int, data []byte, nonce uint64, chainID *big.Int, contract common.Address,
) common.Hash {
	structHash := crypto.Keccak256Hash(mustPack(txStructArgs,
		TxTypeHash, to, orZero(value), crypto.Keccak256Hash(data), new(big.Int).SetUint64(nonce),
	))
	domain := DomainSeparator(chainID, contract)

	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domain.Bytes(), structHash.Bytes())
}

// TimelockOperationID returns the id under which the timelock stores a scheduled call.
func TimelockOperationID(
	target common.Address, value *big.Int, data []byte, predecessor, salt common.Hash,
) common.Hash {
	return crypto.Keccak256Hash(mustPack(operationArgs, target, orZero(value), data, predecessor, salt))
}

// Engine binds the chain id and multisig address shared by every digest of a deployment.
type Engine struct {
	ChainID  *big.Int
	Multisig common.Address
}

// DomainSeparator returns the domain separator of the bound multisig.
func (e Engine) DomainSeparator() common.Hash {
	return DomainSeparator(e.ChainID, e.Multisig)
}

// TxDigest returns the digest of a multisig transaction for the bound deployment.
func (e Engine) TxDigest(to common.Address, value *big.Int, data []byte, nonce uint64) common.Hash {
	return TxDigest(to, value, data, nonce, e.ChainID, e.Multisig)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return v
}

func mustArgs(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}

	return args
}

// mustPack packs statically typed values whose types are fixed by the callers above, so a
// failure is a programming error.
func mustPack(args abi.Arguments, values ...any) []byte {
	b, err := args.Pack(values...)
	if err != nil {
		panic(err)
	}

	return b
}

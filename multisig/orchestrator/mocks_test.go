package orchestrator

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMultisig struct {
	mock.Mock
}

func newMockMultisig(t *testing.T) *mockMultisig {
	t.Helper()

	m := &mockMultisig{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockMultisig) GetNonce(opts *bind.CallOpts) (*big.Int, error) {
	args := m.Called(opts)
	n, _ := args.Get(0).(*big.Int)

	return n, args.Error(1)
}

func (m *mockMultisig) GetOwners(opts *bind.CallOpts) ([]common.Address, error) {
	args := m.Called(opts)
	owners, _ := args.Get(0).([]common.Address)

	return owners, args.Error(1)
}

func (m *mockMultisig) ExecTransaction(
	opts *bind.TransactOpts, to common.Address, value *big.Int, data []byte, signatures []byte,
) (*types.Transaction, error) {
	args := m.Called(opts, to, value, data, signatures)
	tx, _ := args.Get(0).(*types.Transaction)

	return tx, args.Error(1)
}

type mockTimelock struct {
	mock.Mock
}

func newMockTimelock(t *testing.T) *mockTimelock {
	t.Helper()

	m := &mockTimelock{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockTimelock) GetMinDelay(opts *bind.CallOpts) (*big.Int, error) {
	args := m.Called(opts)
	n, _ := args.Get(0).(*big.Int)

	return n, args.Error(1)
}

func (m *mockTimelock) HasRole(opts *bind.CallOpts, role common.Hash, account common.Address) (bool, error) {
	args := m.Called(opts, role, account)

	return args.Bool(0), args.Error(1)
}

func (m *mockTimelock) GetTimestamp(opts *bind.CallOpts, id common.Hash) (*big.Int, error) {
	args := m.Called(opts, id)
	n, _ := args.Get(0).(*big.Int)

	return n, args.Error(1)
}

func (m *mockTimelock) GetOperationState(opts *bind.CallOpts, id common.Hash) (uint8, error) {
	args := m.Called(opts, id)

	return args.Get(0).(uint8), args.Error(1)
}

func (m *mockTimelock) Execute(
	opts *bind.TransactOpts, target common.Address, value *big.Int, payload []byte, predecessor, salt common.Hash,
) (*types.Transaction, error) {
	args := m.Called(opts, target, value, payload, predecessor, salt)
	tx, _ := args.Get(0).(*types.Transaction)

	return tx, args.Error(1)
}

// keyWallet is a Wallet backed by an in-memory key.
type keyWallet struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
	signErr error
	signs   atomic.Int32
}

func newKeyWallet(t *testing.T) *keyWallet {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &keyWallet{key: key, chainID: testChainID}
}

func (w *keyWallet) Address() common.Address {
	return crypto.PubkeyToAddress(w.key.PublicKey)
}

func (w *keyWallet) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	w.signs.Add(1)
	if w.signErr != nil {
		return nil, w.signErr
	}

	return crypto.Sign(accounts.TextHash(msg), w.key)
}

func (w *keyWallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	return opts, nil
}

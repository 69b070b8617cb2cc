package workflow

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/multisig/orchestrator"
	"github.com/feedispatch/multisig-ops/multisig/timelock"
	"github.com/feedispatch/multisig-ops/txstore"
)

var (
	_ Orchestrator = (*mockOrchestrator)(nil)
	_ Store        = (*mockStore)(nil)
)

type mockOrchestrator struct {
	mock.Mock
}

func newMockOrchestrator(t *testing.T) *mockOrchestrator {
	t.Helper()

	m := &mockOrchestrator{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockOrchestrator) Address() common.Address {
	args := m.Called()
	addr, _ := args.Get(0).(common.Address)

	return addr
}

func (m *mockOrchestrator) CreateTransaction(ctx context.Context, p orchestrator.CreateParams) (*orchestrator.Proposal, error) {
	args := m.Called(ctx, p)
	proposal, _ := args.Get(0).(*orchestrator.Proposal)

	return proposal, args.Error(1)
}

func (m *mockOrchestrator) CoSign(ctx context.Context, tx multisig.PendingTransaction) (*orchestrator.Result, error) {
	args := m.Called(ctx, tx)
	res, _ := args.Get(0).(*orchestrator.Result)

	return res, args.Error(1)
}

func (m *mockOrchestrator) Execute(ctx context.Context, tx multisig.PendingTransaction) (*orchestrator.Result, error) {
	args := m.Called(ctx, tx)
	res, _ := args.Get(0).(*orchestrator.Result)

	return res, args.Error(1)
}

func (m *mockOrchestrator) Owners(ctx context.Context) ([]common.Address, error) {
	args := m.Called(ctx)
	owners, _ := args.Get(0).([]common.Address)

	return owners, args.Error(1)
}

func (m *mockOrchestrator) Nonce(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	n, _ := args.Get(0).(uint64)

	return n, args.Error(1)
}

func (m *mockOrchestrator) CanExecute(ctx context.Context, id common.Hash) (timelock.Permission, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(timelock.Permission)

	return p, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func newMockStore(t *testing.T) *mockStore {
	t.Helper()

	m := &mockStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockStore) Login(ctx context.Context, req txstore.LoginRequest) (string, error) {
	args := m.Called(ctx, req)

	return args.String(0), args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, tx txstore.NewTransaction) (string, error) {
	args := m.Called(ctx, tx)

	return args.String(0), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, q txstore.Query) (*txstore.Page, error) {
	args := m.Called(ctx, q)
	page, _ := args.Get(0).(*txstore.Page)

	return page, args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (*multisig.PendingTransaction, error) {
	args := m.Called(ctx, id)
	tx, _ := args.Get(0).(*multisig.PendingTransaction)

	return tx, args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id string, status multisig.Status, txid string) error {
	return m.Called(ctx, id, status, txid).Error(0)
}

func (m *mockStore) Close(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

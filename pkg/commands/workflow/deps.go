package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feedispatch/multisig-ops/auth"
	"github.com/feedispatch/multisig-ops/chain/evm"
	"github.com/feedispatch/multisig-ops/chain/evm/wallet"
	"github.com/feedispatch/multisig-ops/internal/kms"
	"github.com/feedispatch/multisig-ops/config"
	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/multisig/calldata"
	"github.com/feedispatch/multisig-ops/multisig/contracts"
	"github.com/feedispatch/multisig-ops/multisig/orchestrator"
	"github.com/feedispatch/multisig-ops/multisig/timelock"
	"github.com/feedispatch/multisig-ops/pkg/logger"
	"github.com/feedispatch/multisig-ops/txstore"
)

// Wallet is the connected account: it signs proposals, transactions and logins.
type Wallet interface {
	orchestrator.Wallet
	auth.Signer
}

// Orchestrator is the part of *orchestrator.Orchestrator the commands use.
type Orchestrator interface {
	Address() common.Address
	CreateTransaction(ctx context.Context, p orchestrator.CreateParams) (*orchestrator.Proposal, error)
	CoSign(ctx context.Context, tx multisig.PendingTransaction) (*orchestrator.Result, error)
	Execute(ctx context.Context, tx multisig.PendingTransaction) (*orchestrator.Result, error)
	Owners(ctx context.Context) ([]common.Address, error)
	Nonce(ctx context.Context) (uint64, error)
	CanExecute(ctx context.Context, id common.Hash) (timelock.Permission, error)
}

// Store is the part of *txstore.Client the commands use.
type Store interface {
	Login(ctx context.Context, req txstore.LoginRequest) (string, error)
	Create(ctx context.Context, tx txstore.NewTransaction) (string, error)
	List(ctx context.Context, q txstore.Query) (*txstore.Page, error)
	Get(ctx context.Context, id string) (*multisig.PendingTransaction, error)
	Update(ctx context.Context, id string, status multisig.Status, txid string) error
	Close(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// ConfigLoaderFunc loads the configuration from path, falling back to the environment.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// WalletLoaderFunc connects the configured signer.
type WalletLoaderFunc func(ctx context.Context, cfg *config.Config) (Wallet, error)

// ConnectFunc dials the chain and binds the contracts for w. The orchestrator counts its outcomes
// in m.
type ConnectFunc func(ctx context.Context, cfg *config.Config, w Wallet, m *orchestrator.Metrics, lggr logger.Logger) (Orchestrator, error)

// StoreFactoryFunc creates the persistence client.
type StoreFactoryFunc func(cfg *config.Config, lggr logger.Logger) (Store, error)

// Deps holds the injectable dependencies of the workflow commands.
// All fields are optional; nil values use production defaults.
type Deps struct {
	// LoadConfig loads the configuration.
	// Default: config.Load
	LoadConfig ConfigLoaderFunc

	// LoadWallet connects the signer selected by the configuration.
	// Default: a KeyWallet, KMSWallet or RPCWallet
	LoadWallet WalletLoaderFunc

	// Connect builds the orchestrator.
	// Default: a MultiClient over the configured RPCs and the contract bindings
	Connect ConnectFunc

	// NewStore creates the persistence client.
	// Default: txstore.NewClient
	NewStore StoreFactoryFunc

	// Now returns the current time, used for login messages.
	// Default: time.Now
	Now func() time.Time
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.LoadConfig == nil {
		d.LoadConfig = config.Load
	}
	if d.LoadWallet == nil {
		d.LoadWallet = defaultWalletLoader
	}
	if d.Connect == nil {
		d.Connect = defaultConnect
	}
	if d.NewStore == nil {
		d.NewStore = defaultStoreFactory
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// defaultWalletLoader connects the one signer the configuration names.
func defaultWalletLoader(ctx context.Context, cfg *config.Config) (Wallet, error) {
	kind, err := cfg.SignerKind()
	if err != nil {
		return nil, err
	}

	var (
		w   Wallet
		werr error
	)
	switch kind {
	case "private_key":
		w, werr = wallet.NewKeyWallet(cfg.Signer.PrivateKey, cfg.ChainIDBig())
	case "kms":
		w, werr = wallet.NewKMSWallet(kms.ClientConfig{
			KeyID:      cfg.Signer.KMS.KeyID,
			KeyRegion:  cfg.Signer.KMS.KeyRegion,
			AWSProfile: cfg.Signer.KMS.AWSProfile,
		}, cfg.ChainIDBig())
	case "wallet":
		w, werr = wallet.DialRPCWallet(ctx, cfg.Signer.WalletURL, cfg.ChainIDBig())
	default:
		return nil, fmt.Errorf("unsupported signer %q", kind)
	}
	if werr != nil {
		return nil, fmt.Errorf("%s signer: %w", kind, werr)
	}

	return w, nil
}

// defaultConnect dials the configured nodes and binds the three contracts to w.
func defaultConnect(
	ctx context.Context, cfg *config.Config, w Wallet, m *orchestrator.Metrics, lggr logger.Logger,
) (Orchestrator, error) {
	addrs, err := cfg.Addresses()
	if err != nil {
		return nil, err
	}
	rpcs, err := cfg.EVMRPCConfig()
	if err != nil {
		return nil, err
	}

	client, err := evm.NewMultiClient(lggr, rpcs)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain %s: %w", evm.ChainName(cfg.Chain.ChainID), err)
	}

	confirm, err := evm.ConfirmFuncGeth(cfg.Confirm.Timeout).Generate(ctx, client, w.Address())
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		ChainID:   cfg.ChainIDBig(),
		Addresses: addrs,
		Wallet:    w,
		Multisig:  contracts.NewMultiSignContract(addrs.Multisig, client),
		Timelock:  contracts.NewTimelockContract(addrs.Timelock, client),
		Confirm:   confirm,
		Logger:    lggr,
		Metrics:   m,
	})
	if err != nil {
		return nil, err
	}

	return orch, nil
}

func defaultStoreFactory(cfg *config.Config, lggr logger.Logger) (Store, error) {
	client, err := txstore.NewClient(cfg.API.BaseURL,
		txstore.WithTimeout(cfg.API.Timeout),
		txstore.WithToken(cfg.API.Token),
		txstore.WithLogger(lggr),
	)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// codecFor returns a calldata codec for the configured deployment. It needs neither the chain
// nor a wallet.
func codecFor(cfg *config.Config) (*calldata.Codec, error) {
	addrs, err := cfg.Addresses()
	if err != nil {
		return nil, err
	}

	return calldata.NewCodec(addrs, cfg.ChainIDBig()), nil
}

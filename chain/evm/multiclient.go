package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"

	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/feedispatch/multisig-ops/pkg/logger"
)

const (
	// Default retry configuration for RPC reads
	RPCDefaultRetryAttempts = 1
	RPCDefaultRetryDelay    = 1000 * time.Millisecond
	RPCDefaultRetryTimeout  = 10 * time.Second

	// Default retry configuration for dialing RPC endpoints
	RPCDefaultDialRetryAttempts = 1
	RPCDefaultDialRetryDelay    = 1000 * time.Millisecond
	RPCDefaultDialTimeout       = 10 * time.Second

	// Default timeout for health checks
	RPCDefaultHealthCheckTimeout = 2 * time.Second
)

type RetryConfig struct {
	Attempts     uint
	Delay        time.Duration
	Timeout      time.Duration
	DialAttempts uint
	DialDelay    time.Duration
	DialTimeout  time.Duration
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     RPCDefaultRetryAttempts,
		Delay:        RPCDefaultRetryDelay,
		Timeout:      RPCDefaultRetryTimeout,
		DialAttempts: RPCDefaultDialRetryAttempts,
		DialDelay:    RPCDefaultDialRetryDelay,
		DialTimeout:  RPCDefaultDialTimeout,
	}
}

// WithRetryConfig overrides the default retry configuration.
func WithRetryConfig(cfg RetryConfig) func(*MultiClient) {
	return func(mc *MultiClient) {
		mc.RetryConfig = cfg
	}
}

// ChainName returns the chain-selectors name of an EVM chain id, or "evm-<id>" for chains the
// registry does not know, e.g. local devnets.
func ChainName(chainID uint64) string {
	details, err := chainsel.GetChainDetailsByChainIDAndFamily(strconv.FormatUint(chainID, 10), chainsel.FamilyEVM)
	if err != nil || details.ChainName == "" {
		return "evm-" + strconv.FormatUint(chainID, 10)
	}

	return details.ChainName
}

// MultiClient should comply with the OnchainClient interface
var _ OnchainClient = &MultiClient{}

// MultiClient is an ethclient with failover. Reads are retried on the primary node and then on
// each backup in turn. Transaction submission is sent once to the primary node and never retried,
// so a failed submission is reported to the caller as is.
type MultiClient struct {
	*ethclient.Client
	Backups     []*ethclient.Client
	RetryConfig RetryConfig
	lggr        logger.Logger
	chainID     uint64
	chainName   string
	mu          sync.RWMutex
}

// NewMultiClient dials every RPC of rpcsCfg. Nodes that cannot be dialed, fail the health check
// or serve another chain are skipped; at least one must remain.
func NewMultiClient(lggr logger.Logger, rpcsCfg RPCConfig, opts ...func(client *MultiClient)) (*MultiClient, error) {
	if len(rpcsCfg.RPCs) == 0 {
		return nil, errors.New("no RPCs provided, need at least one")
	}
	if rpcsCfg.ChainID == 0 {
		return nil, errors.New("chain id is required")
	}
	mc := MultiClient{
		lggr:        lggr.Named("multiclient"),
		chainID:     rpcsCfg.ChainID,
		chainName:   ChainName(rpcsCfg.ChainID),
		RetryConfig: defaultRetryConfig(),
	}

	for _, opt := range opts {
		opt(&mc)
	}

	clients := make([]*ethclient.Client, 0, len(rpcsCfg.RPCs))
	for i, rpc := range rpcsCfg.RPCs {
		client, err := mc.dialWithRetry(rpc)
		if err != nil {
			mc.lggr.Warnf("failed to dial client %d for RPC '%s' - %s (%d), trying with the next one: %v", i, rpc.Name, mc.chainName, mc.chainID, err)

			continue
		}
		if err := mc.rpcHealthCheck(context.Background(), client); err != nil {
			mc.lggr.Warnf("health check failed for client %d for RPC '%s' - %s (%d), trying with the next one: %v", i, rpc.Name, mc.chainName, mc.chainID, err)
			client.Close()

			continue
		}
		clients = append(clients, client)
	}

	if len(clients) == 0 {
		return nil, errors.New("no valid RPC clients created")
	}

	mc.Client = clients[0]
	mc.Backups = clients[1:]

	return &mc, nil
}

// rpcHealthCheck calls eth_chainId and checks the node serves the configured chain.
func (mc *MultiClient) rpcHealthCheck(ctx context.Context, client *ethclient.Client) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, RPCDefaultHealthCheckTimeout)
	defer cancel()

	id, err := client.ChainID(timeoutCtx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if !id.IsUint64() || id.Uint64() != mc.chainID {
		return fmt.Errorf("health check failed: node serves chain %s, want %d", id, mc.chainID)
	}

	return nil
}

// ChainName returns the name of the chain the client is connected to.
func (mc *MultiClient) ChainName() string {
	return mc.chainName
}

// SendTransaction submits tx to the primary node once.
func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	mc.mu.RLock()
	client := mc.Client
	mc.mu.RUnlock()

	if err := client.SendTransaction(ctx, tx); err != nil {
		mc.lggr.Errorw("SendTransaction failed", "chain", mc.chainName, "txHash", tx.Hash().Hex(), "err", maybeDataErr(err))

		return err
	}

	return nil
}

func (mc *MultiClient) ChainID(ctx context.Context) (*big.Int, error) {
	return readWithBackups(ctx, mc, "ChainID", func(ct context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.ChainID(ct)
	})
}

func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return readWithBackups(ctx, mc, "CallContract", func(ct context.Context, client *ethclient.Client) ([]byte, error) {
		return client.CallContract(ct, msg, blockNumber)
	})
}

func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return readWithBackups(ctx, mc, "CodeAt", func(ct context.Context, client *ethclient.Client) ([]byte, error) {
		return client.CodeAt(ct, account, blockNumber)
	})
}

func (mc *MultiClient) NonceAt(ctx context.Context, account common.Address, block *big.Int) (uint64, error) {
	return readWithBackups(ctx, mc, "NonceAt", func(ct context.Context, client *ethclient.Client) (uint64, error) {
		return client.NonceAt(ct, account, block)
	})
}

func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return readWithBackups(ctx, mc, "HeaderByNumber", func(ct context.Context, client *ethclient.Client) (*types.Header, error) {
		return client.HeaderByNumber(ct, number)
	})
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return readWithBackups(ctx, mc, "SuggestGasPrice", func(ct context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.SuggestGasPrice(ct)
	})
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return readWithBackups(ctx, mc, "SuggestGasTipCap", func(ct context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.SuggestGasTipCap(ct)
	})
}

func (mc *MultiClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return readWithBackups(ctx, mc, "PendingCodeAt", func(ct context.Context, client *ethclient.Client) ([]byte, error) {
		return client.PendingCodeAt(ct, account)
	})
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return readWithBackups(ctx, mc, "PendingNonceAt", func(ct context.Context, client *ethclient.Client) (uint64, error) {
		return client.PendingNonceAt(ct, account)
	})
}

func (mc *MultiClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return readWithBackups(ctx, mc, "EstimateGas", func(ct context.Context, client *ethclient.Client) (uint64, error) {
		return client.EstimateGas(ct, call)
	})
}

func (mc *MultiClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return readWithBackups(ctx, mc, "BalanceAt", func(ct context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.BalanceAt(ct, account, blockNumber)
	})
}

func (mc *MultiClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return readWithBackups(ctx, mc, "FilterLogs", func(ct context.Context, client *ethclient.Client) ([]types.Log, error) {
		return client.FilterLogs(ct, q)
	})
}

func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return readWithBackups(ctx, mc, "TransactionReceipt", func(ct context.Context, client *ethclient.Client) (*types.Receipt, error) {
		return client.TransactionReceipt(ct, txHash)
	})
}

// WaitMined waits for a transaction to be mined and returns the receipt. Every node is polled
// and the first receipt wins.
// Note: retryConfig timeout settings are not used for this operation, a timeout can be set in the context.
func (mc *MultiClient) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	mc.lggr.Debugf("Waiting for tx %s to be mined for chain %s", tx.Hash().Hex(), mc.chainName)
	resultCh := make(chan *types.Receipt)
	doneCh := make(chan struct{})

	waitMined := func(client *ethclient.Client, tx *types.Transaction) {
		receipt, err := bind.WaitMined(ctx, client, tx)
		if err != nil {
			mc.lggr.Warnf("WaitMined error %v with chain %s", err, mc.chainName)
			return
		}
		select {
		case resultCh <- receipt:
		case <-doneCh:
			return
		}
	}

	for _, client := range mc.clients() {
		go waitMined(client, tx)
	}
	select {
	case receipt := <-resultCh:
		close(doneCh)
		mc.lggr.Debugf("Tx %s mined with chain %s", tx.Hash().Hex(), mc.chainName)

		return receipt, nil
	case <-ctx.Done():
		mc.lggr.Warnf("WaitMined context done %v", ctx.Err())
		close(doneCh)

		return nil, ctx.Err()
	}
}

// readWithBackups runs op against each node in turn, retrying it per RetryConfig, and returns the
// first successful result.
func readWithBackups[T any](
	ctx context.Context, mc *MultiClient, opName string, op func(context.Context, *ethclient.Client) (T, error),
) (T, error) {
	var result T
	err := mc.retryWithBackups(ctx, opName, func(ct context.Context, client *ethclient.Client) error {
		var err error
		result, err = op(ct, client)

		return err
	})

	return result, err
}

func (mc *MultiClient) retryWithBackups(ctx context.Context, opName string, op func(context.Context, *ethclient.Client) error) error {
	var err error
	traceID := uuid.New()

	for rpcIndex, client := range mc.clients() {
		retryCount := 0
		err2 := retry.Do(func() error {
			timeoutCtx, cancel := ensureTimeout(ctx, mc.RetryConfig.Timeout)
			defer cancel()

			err = op(timeoutCtx, client)
			if err != nil {
				mc.lggr.Warnf("traceID %q: chain %q: op: %q: client index %d: failed execution - retryable error '%s'", traceID.String(), mc.chainName, opName, rpcIndex, maybeDataErr(err))
				return err
			}

			mc.reorderRPCs(rpcIndex)

			return nil
		}, retry.Attempts(mc.RetryConfig.Attempts), retry.Delay(mc.RetryConfig.Delay), retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) { retryCount++ }))
		if err2 == nil {
			if retryCount > 0 {
				mc.lggr.Infof("traceID %q: chain %q: op: %q: client index %d: successfully executed after %d retry", traceID.String(), mc.chainName, opName, rpcIndex, retryCount)
			}

			return nil
		}
		if ctx.Err() != nil {
			break
		}
		mc.lggr.Infof("traceID %q: chain %q: op: %q: client index %d: failed, trying next client", traceID.String(), mc.chainName, opName, rpcIndex)
	}

	return errors.Join(err, fmt.Errorf("all backup clients failed for chain %q", mc.chainName))
}

func (mc *MultiClient) dialWithRetry(rpc RPC) (*ethclient.Client, error) {
	endpoint, err := rpc.ToEndpoint()
	if err != nil {
		return nil, err
	}

	traceID := uuid.New()
	var client *ethclient.Client
	retryCount := 0
	err = retry.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), mc.RetryConfig.DialTimeout)
		defer cancel()

		var err2 error
		mc.lggr.Debugf("traceID %q: chain %q: rpc: %q: dialing endpoint '%s'", traceID.String(), mc.chainName, rpc.Name, endpoint)
		client, err2 = ethclient.DialContext(ctx, endpoint)
		if err2 != nil {
			mc.lggr.Warnf("traceID %q: chain %q: rpc: %q: dialing failed - retryable error: %s: %v", traceID.String(), mc.chainName, rpc.Name, endpoint, err2)
			return err2
		}

		return nil
	}, retry.Attempts(mc.RetryConfig.DialAttempts), retry.Delay(mc.RetryConfig.DialDelay),
		retry.OnRetry(func(n uint, err error) { retryCount++ }))

	if err != nil {
		return nil, errors.Join(err, fmt.Errorf("failed to dial endpoint '%s' for RPC %s for chain %s after retries", endpoint, rpc.Name, mc.chainName))
	}
	if retryCount > 0 {
		mc.lggr.Infof("traceID %q: chain %q: rpc: %q: successfully dialed endpoint '%s' after %d retries", traceID.String(), mc.chainName, rpc.Name, endpoint, retryCount)
	}

	return client, nil
}

// ensureTimeout keeps the parent deadline when there is one and otherwise applies timeout.
func ensureTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := parent.Deadline(); hasDeadline {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, timeout)
}

// reorderRPCs promotes the node at rpcIndex to primary after it served a call. The nodes that
// failed before it move to the end of the backup list, followed by the former primary.
func (mc *MultiClient) reorderRPCs(rpcIndex int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if rpcIndex < 1 || len(mc.Backups) == 0 {
		return
	}

	newDefaultRPCIndex := rpcIndex - 1
	newDefaultRPC := mc.Backups[newDefaultRPCIndex]

	reordered := make([]*ethclient.Client, 0, len(mc.Backups))
	reordered = append(reordered, mc.Backups[newDefaultRPCIndex+1:]...)
	reordered = append(reordered, mc.Backups[:newDefaultRPCIndex]...)
	reordered = append(reordered, mc.Client)

	mc.Backups = reordered
	mc.Client = newDefaultRPC
}

func (mc *MultiClient) clients() []*ethclient.Client {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return append([]*ethclient.Client{mc.Client}, mc.Backups...)
}

func maybeDataErr(err error) error {
	var d rpc.DataError
	if errors.As(err, &d) {
		return fmt.Errorf("%s: %v", d.Error(), d.ErrorData())
	}

	return err
}

package evm

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/feedispatch/multisig-ops/pkg/logger"
)

const testChainID uint64 = 1 // served by the fake nodes as "0x1"

var fastRetries = RetryConfig{
	Attempts:     2,
	Delay:        10 * time.Millisecond,
	Timeout:      time.Second,
	DialAttempts: 1,
	DialDelay:    10 * time.Millisecond,
	DialTimeout:  time.Second,
}

func httpRPC(name, url string) RPC {
	return RPC{Name: name, HTTPURL: url, PreferredURLScheme: URLSchemePreferenceHTTP}
}

func TestMultiClient(t *testing.T) {
	t.Parallel()

	node := newFakeNode(t, "0x1")
	lggr := logger.Test(t)

	// Expect defaults to be set if not provided.
	mc, err := NewMultiClient(lggr, RPCConfig{ChainID: testChainID, RPCs: []RPC{httpRPC("test-rpc", node.URL)}})
	require.NoError(t, err)
	require.NotNil(t, mc)

	assert.Equal(t, "ethereum-mainnet", mc.ChainName())
	assert.Equal(t, uint(RPCDefaultRetryAttempts), mc.RetryConfig.Attempts)
	assert.Equal(t, RPCDefaultRetryDelay, mc.RetryConfig.Delay)
	assert.Equal(t, uint(RPCDefaultDialRetryAttempts), mc.RetryConfig.DialAttempts)
	assert.Equal(t, RPCDefaultDialRetryDelay, mc.RetryConfig.DialDelay)

	_, err = NewMultiClient(lggr, RPCConfig{ChainID: testChainID, RPCs: []RPC{}})
	require.ErrorContains(t, err, "no RPCs provided")

	_, err = NewMultiClient(lggr, RPCConfig{RPCs: []RPC{httpRPC("test-rpc", node.URL)}})
	require.ErrorContains(t, err, "chain id is required")

	// Expect second client to be set as backup.
	mc, err = NewMultiClient(lggr, RPCConfig{ChainID: testChainID, RPCs: []RPC{
		httpRPC("preferred", node.URL),
		httpRPC("backup", node.URL),
	}}, WithRetryConfig(fastRetries))
	require.NoError(t, err)
	require.Len(t, mc.Backups, 1)
	assert.Equal(t, fastRetries, mc.RetryConfig)
}

func TestMultiClient_healthCheckSkipsBadRPC(t *testing.T) {
	t.Parallel()

	var (
		failing   = newFakeNode(t, "0x1").handle("eth_chainId", func(json.RawMessage) (any, string) { return nil, "internal error" })
		otherNet  = newFakeNode(t, "0x5")
		good      = newFakeNode(t, "0x1").handle("eth_blockNumber", func(json.RawMessage) (any, string) { return "0x2a", "" })
		lggr, obs = logger.TestObserved(t, zapcore.WarnLevel)
	)

	mc, err := NewMultiClient(lggr, RPCConfig{ChainID: testChainID, RPCs: []RPC{
		httpRPC("failing", failing.URL),
		httpRPC("other-network", otherNet.URL),
		httpRPC("good", good.URL),
	}})
	require.NoError(t, err)

	// Only the good RPC remains as primary.
	require.NotNil(t, mc.Client)
	require.Empty(t, mc.Backups)
	assert.Equal(t, 2, obs.FilterMessageSnippet("health check failed").Len())

	blockNum, err := mc.BlockNumber(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), blockNum)
}

func TestMultiClient_noHealthyRPC(t *testing.T) {
	t.Parallel()

	otherNet := newFakeNode(t, "0x5")

	_, err := NewMultiClient(logger.Test(t), RPCConfig{ChainID: testChainID, RPCs: []RPC{
		httpRPC("other-network", otherNet.URL),
		{Name: "no-url"},
	}})
	require.ErrorContains(t, err, "no valid RPC clients created")
}

func TestMultiClient_readFailsOver(t *testing.T) {
	t.Parallel()

	var (
		primary = newFakeNode(t, "0x1").handle("eth_call", func(json.RawMessage) (any, string) { return nil, "upstream unavailable" })
		backup  = newFakeNode(t, "0x1").handle("eth_call", func(json.RawMessage) (any, string) { return "0xcafe", "" })
		to      = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	)

	mc, err := NewMultiClient(logger.Test(t), RPCConfig{ChainID: testChainID, RPCs: []RPC{
		httpRPC("primary", primary.URL),
		httpRPC("backup", backup.URL),
	}}, WithRetryConfig(fastRetries))
	require.NoError(t, err)
	failedPrimary := mc.Client

	got, err := mc.CallContract(t.Context(), ethereum.CallMsg{To: &to}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, got)

	assert.Equal(t, int(fastRetries.Attempts), primary.count("eth_call"))
	assert.Equal(t, 1, backup.count("eth_call"))

	// The backup that answered is promoted.
	require.Len(t, mc.Backups, 1)
	assert.Same(t, failedPrimary, mc.Backups[0])
}

func TestMultiClient_SendTransactionIsNotRetried(t *testing.T) {
	t.Parallel()

	var (
		primary = newFakeNode(t, "0x1").handle("eth_sendRawTransaction", func(json.RawMessage) (any, string) {
			return nil, "nonce too low"
		})
		backup = newFakeNode(t, "0x1")
	)

	mc, err := NewMultiClient(logger.Test(t), RPCConfig{ChainID: testChainID, RPCs: []RPC{
		httpRPC("primary", primary.URL),
		httpRPC("backup", backup.URL),
	}}, WithRetryConfig(fastRetries))
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx, err := types.SignTx(
		types.NewTransaction(0, common.Address{0x01}, big.NewInt(1), 21000, big.NewInt(1), nil),
		types.NewEIP155Signer(big.NewInt(1)), key,
	)
	require.NoError(t, err)

	err = mc.SendTransaction(t.Context(), tx)
	require.ErrorContains(t, err, "nonce too low")

	assert.Equal(t, 1, primary.count("eth_sendRawTransaction"))
	assert.Equal(t, 0, backup.count("eth_sendRawTransaction"))
}

func TestMultiClient_dialWithRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    RPC
		wantErr string
	}{
		{
			name:    "malformed URL",
			give:    RPC{Name: "test-rpc", WSURL: "wxz://malformed/test", PreferredURLScheme: URLSchemePreferenceWS},
			wantErr: "no known transport for URL scheme \"wxz\"",
		},
		{
			name:    "no endpoint",
			give:    RPC{Name: "test-rpc"},
			wantErr: "rpc has no http or ws url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mc := MultiClient{
				chainName:   "ethereum-mainnet",
				RetryConfig: fastRetries,
				lggr:        logger.Test(t),
			}

			_, err := mc.dialWithRetry(tt.give)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMultiClient_retryWithBackups(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		call    func(ctx context.Context, client *ethclient.Client) error
		wantErr string
	}{
		{
			name: "all attempts fail",
			call: func(ctx context.Context, client *ethclient.Client) error {
				return errors.New("operation failed")
			},
			wantErr: "operation failed",
		},
		{
			name: "all attempts time out",
			call: func(ctx context.Context, client *ethclient.Client) error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(5 * time.Second):
					return errors.New("operation failed")
				}
			},
			wantErr: "context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mc := MultiClient{
				Client:    ethclient.NewClient(nil),
				chainName: "ethereum-mainnet",
				RetryConfig: RetryConfig{
					Attempts: 2,
					Delay:    10 * time.Millisecond,
					Timeout:  50 * time.Millisecond,
				},
				lggr: logger.Test(t),
			}

			err := mc.retryWithBackups(t.Context(), "test-operation", tt.call)
			require.ErrorContains(t, err, tt.wantErr)
			require.ErrorContains(t, err, "all backup clients failed")
		})
	}
}

func TestEnsureTimeout(t *testing.T) {
	t.Parallel()

	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tests := []struct {
		name          string
		parentContext context.Context //nolint:containedctx
		timeout       time.Duration
	}{
		{
			name:          "parent context with deadline",
			parentContext: ctxWithTimeout,
			timeout:       time.Minute,
		},
		{
			name:          "parent context without deadline",
			parentContext: context.Background(),
			timeout:       time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancelFunc := ensureTimeout(tt.parentContext, tt.timeout)
			defer cancelFunc()

			deadline, hasDeadline := ctx.Deadline()
			require.True(t, hasDeadline)

			if parentDeadline, ok := tt.parentContext.Deadline(); ok {
				require.WithinDuration(t, parentDeadline, deadline, 0)
			} else {
				require.WithinDuration(t, time.Now().Add(tt.timeout), deadline, 50*time.Millisecond)
			}
		})
	}
}

func TestMultiClient_reorderRPCs(t *testing.T) {
	t.Parallel()

	client0 := ethclient.NewClient(nil) // primary
	client1 := ethclient.NewClient(nil)
	client2 := ethclient.NewClient(nil)
	client3 := ethclient.NewClient(nil)

	backups := []*ethclient.Client{client1, client2, client3}

	tests := []struct {
		name            string
		backups         []*ethclient.Client
		giveIndex       int
		expectedClient  *ethclient.Client
		expectedBackups []*ethclient.Client
	}{
		{
			name:            "move first backup to primary",
			backups:         backups,
			giveIndex:       1,
			expectedClient:  client1,
			expectedBackups: []*ethclient.Client{client2, client3, client0},
		},
		{
			name:            "move middle backup to primary",
			backups:         backups,
			giveIndex:       2,
			expectedClient:  client2,
			expectedBackups: []*ethclient.Client{client3, client1, client0},
		},
		{
			name:            "move last backup to primary",
			backups:         backups,
			giveIndex:       3,
			expectedClient:  client3,
			expectedBackups: []*ethclient.Client{client1, client2, client0},
		},
		{
			name:            "keep primary unchanged",
			backups:         backups,
			giveIndex:       0,
			expectedClient:  client0,
			expectedBackups: []*ethclient.Client{client1, client2, client3},
		},
		{
			name:            "keep primary unchanged when no backups",
			backups:         []*ethclient.Client{},
			giveIndex:       1,
			expectedClient:  client0,
			expectedBackups: []*ethclient.Client{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mc := &MultiClient{
				Client:  client0,
				Backups: tt.backups,
				lggr:    logger.Test(t),
			}

			mc.reorderRPCs(tt.giveIndex)

			assert.Same(t, tt.expectedClient, mc.Client)
			require.Len(t, mc.Backups, len(tt.expectedBackups))
			for i, expected := range tt.expectedBackups {
				assert.Same(t, expected, mc.Backups[i], "backup at position %d", i)
			}
		})
	}
}

func TestChainName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ethereum-mainnet", ChainName(1))
	assert.Equal(t, "evm-987654321987", ChainName(987654321987))
}

// Package config loads the multisig-ops configuration from a YAML file and the environment.
//
// Every setting has a preferred environment variable and, where the dApp used one, its legacy
// VITE_* name. Environment values override the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/feedispatch/multisig-ops/chain/evm"
	"github.com/feedispatch/multisig-ops/multisig/calldata"
)

// RPCConfig is one JSON-RPC node of the chain.
type RPCConfig struct {
	Name               string `mapstructure:"name" yaml:"name"`
	HTTPURL            string `mapstructure:"http_url" yaml:"http_url"`
	WSURL              string `mapstructure:"ws_url" yaml:"ws_url,omitempty"`
	PreferredURLScheme string `mapstructure:"preferred_url_scheme" yaml:"preferred_url_scheme,omitempty"` // "http" or "ws"
}

// ChainConfig is the chain the contracts are deployed on.
type ChainConfig struct {
	ChainID uint64      `mapstructure:"chain_id" yaml:"chain_id"`
	RPCURL  string      `mapstructure:"rpc_url" yaml:"rpc_url,omitempty"` // Single node, used when RPCs is empty
	RPCs    []RPCConfig `mapstructure:"rpcs" yaml:"rpcs,omitempty"`
}

// ContractsConfig holds the hex addresses of the workflow contracts.
type ContractsConfig struct {
	MultiSign     string `mapstructure:"multisign" yaml:"multisign"`
	Timelock      string `mapstructure:"timelock" yaml:"timelock"`
	FeeDispatcher string `mapstructure:"fee_dispatcher" yaml:"fee_dispatcher"`
}

// APIConfig locates the persistence backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Token   string        `mapstructure:"token" yaml:"token,omitempty"` // Secret: session token printed by the login command
}

// KMSConfig is the configuration for the AWS KMS.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type KMSConfig struct {
	KeyID      string `mapstructure:"key_id" yaml:"key_id"`                     // Secret: AWS KMS Key ID
	KeyRegion  string `mapstructure:"key_region" yaml:"key_region"`             // Secret: AWS KMS Key Region (e.g. us-west-1)
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile,omitempty"` // Optional AWS shared profile
}

// SignerConfig selects the connected account. Exactly one of the fields must be set.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type SignerConfig struct {
	PrivateKey string     `mapstructure:"private_key" yaml:"private_key,omitempty"` // Secret: hex private key, for development
	KMS        *KMSConfig `mapstructure:"kms" yaml:"kms,omitempty"`
	WalletURL  string     `mapstructure:"wallet_url" yaml:"wallet_url,omitempty"` // JSON-RPC wallet endpoint
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development,omitempty"`
}

type ConfirmConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Config wraps the entire multisig-ops configuration.
type Config struct {
	Chain     ChainConfig     `mapstructure:"chain" yaml:"chain"`
	Contracts ContractsConfig `mapstructure:"contracts" yaml:"contracts"`
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Signer    SignerConfig    `mapstructure:"signer" yaml:"signer"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Confirm   ConfirmConfig   `mapstructure:"confirm" yaml:"confirm"`
}

// Defaults applied to unset values.
const (
	DefaultAPITimeout     = 30 * time.Second
	DefaultConfirmTimeout = 5 * time.Minute
	DefaultLogLevel       = "info"
)

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := newViper()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// LoadFile loads the config from a file.
func LoadFile(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("api.timeout", DefaultAPITimeout)
	v.SetDefault("confirm.timeout", DefaultConfirmTimeout)
	v.SetDefault("log.level", DefaultLogLevel)

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// envBindings maps each config key to its environment variables. The first name is the preferred
// one, the second (if present) the legacy name of the web dApp. Viper uses the first one set.
var envBindings = map[string][]string{
	"chain.chain_id":           {"MULTISIG_CHAIN_ID", "VITE_CONFIG_CHAIN_ID"},
	"chain.rpc_url":            {"MULTISIG_RPC_URL", "VITE_CONFIG_RPC_URL"},
	"contracts.multisign":      {"MULTISIG_CONTRACTS_MULTISIGN", "VITE_CONFIG_MULTISIGN"},
	"contracts.timelock":       {"MULTISIG_CONTRACTS_TIMELOCK", "VITE_CONFIG_TIME_LOCK"},
	"contracts.fee_dispatcher": {"MULTISIG_CONTRACTS_FEE_DISPATCHER", "VITE_CONFIG_FEE_DISPATCHER"},
	"api.base_url":             {"MULTISIG_API_BASE_URL", "VITE_API_BASE"},
	"api.timeout":              {"MULTISIG_API_TIMEOUT"},
	"api.token":                {"MULTISIG_API_TOKEN"},
	"signer.private_key":       {"MULTISIG_SIGNER_PRIVATE_KEY"},
	"signer.wallet_url":        {"MULTISIG_SIGNER_WALLET_URL"},
	"signer.kms.key_id":        {"MULTISIG_SIGNER_KMS_KEY_ID", "KMS_DEPLOYER_KEY_ID"},
	"signer.kms.key_region":    {"MULTISIG_SIGNER_KMS_KEY_REGION", "KMS_DEPLOYER_KEY_REGION"},
	"signer.kms.aws_profile":   {"MULTISIG_SIGNER_KMS_AWS_PROFILE"},
	"log.level":                {"MULTISIG_LOG_LEVEL"},
	"confirm.timeout":          {"MULTISIG_CONFIRM_TIMEOUT"},
}

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks the settings every command needs: the chain and the contract addresses.
func (c *Config) Validate() error {
	var errs []error
	if c.Chain.ChainID == 0 {
		errs = append(errs, errors.New("chain.chain_id is required"))
	}
	if _, err := c.EVMRPCConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Addresses(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ChainIDBig returns the chain id as a big.Int.
func (c *Config) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.Chain.ChainID)
}

// Addresses parses the contract addresses.
func (c *Config) Addresses() (calldata.Addresses, error) {
	var (
		addrs calldata.Addresses
		errs  []error
	)
	for _, f := range []struct {
		key string
		val string
		dst *common.Address
	}{
		{"contracts.multisign", c.Contracts.MultiSign, &addrs.Multisig},
		{"contracts.timelock", c.Contracts.Timelock, &addrs.Timelock},
		{"contracts.fee_dispatcher", c.Contracts.FeeDispatcher, &addrs.FeeDispatcher},
	} {
		if !common.IsHexAddress(f.val) {
			errs = append(errs, fmt.Errorf("%s: invalid address %q", f.key, f.val))
			continue
		}
		*f.dst = common.HexToAddress(f.val)
		if *f.dst == (common.Address{}) {
			errs = append(errs, fmt.Errorf("%s: zero address", f.key))
		}
	}

	return addrs, errors.Join(errs...)
}

// EVMRPCConfig returns the nodes of the chain for evm.NewMultiClient. The rpc_url shorthand is
// used when no rpcs are listed.
func (c *Config) EVMRPCConfig() (evm.RPCConfig, error) {
	out := evm.RPCConfig{ChainID: c.Chain.ChainID}

	rpcs := c.Chain.RPCs
	if len(rpcs) == 0 && c.Chain.RPCURL != "" {
		rpcs = []RPCConfig{{Name: "default", HTTPURL: c.Chain.RPCURL}}
	}
	if len(rpcs) == 0 {
		return out, errors.New("chain: at least one rpc is required")
	}

	for i, r := range rpcs {
		pref, err := evm.ParseURLSchemePreference(r.PreferredURLScheme)
		if err != nil {
			return out, fmt.Errorf("chain.rpcs[%d]: %w", i, err)
		}
		if r.HTTPURL == "" && r.WSURL == "" {
			return out, fmt.Errorf("chain.rpcs[%d]: http_url or ws_url is required", i)
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rpc-%d", i)
		}
		out.RPCs = append(out.RPCs, evm.RPC{Name: name, HTTPURL: r.HTTPURL, WSURL: r.WSURL, PreferredURLScheme: pref})
	}

	return out, nil
}

// SignerKind names the configured signer: "private_key", "kms" or "wallet".
func (c *Config) SignerKind() (string, error) {
	var kinds []string
	if c.Signer.PrivateKey != "" {
		kinds = append(kinds, "private_key")
	}
	if c.Signer.KMS != nil && (c.Signer.KMS.KeyID != "" || c.Signer.KMS.KeyRegion != "") {
		kinds = append(kinds, "kms")
	}
	if c.Signer.WalletURL != "" {
		kinds = append(kinds, "wallet")
	}

	switch len(kinds) {
	case 0:
		return "", errors.New("signer: one of private_key, kms or wallet_url is required")
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("signer: only one signer may be configured, got %v", kinds)
	}
}

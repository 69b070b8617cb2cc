// Package workflow provides the CLI commands driving multisig transactions: proposing, listing,
// co-signing, executing, reviewing and closing them, plus the login and owner queries they need.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/feedispatch/multisig-ops/config"
	"github.com/feedispatch/multisig-ops/multisig/orchestrator"
	"github.com/feedispatch/multisig-ops/pkg/commands/flags"
	"github.com/feedispatch/multisig-ops/pkg/logger"
)

// Config holds the configuration for the workflow commands.
type Config struct {
	// Logger is the logger to use for command output. Required.
	Logger logger.Logger

	// Deps holds optional dependencies that can be overridden.
	// If fields are nil, production defaults are used.
	Deps Deps
}

// Validate checks that all required configuration fields are set.
func (c Config) Validate() error {
	var missing []string

	if c.Logger == nil {
		missing = append(missing, "Logger")
	}

	if len(missing) > 0 {
		return errors.New("workflow.Config: missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommands creates the workflow commands. They are meant to be added to the root command
// directly.
func NewCommands(cfg Config) ([]*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmds := []*cobra.Command{
		newCreateCmd(cfg),
		newListCmd(cfg),
		newCoSignCmd(cfg),
		newExecuteCmd(cfg),
		newDecodeCmd(cfg),
		newPermissionCmd(cfg),
		newCloseCmd(cfg),
		newDeleteCmd(cfg),
		newLoginCmd(cfg),
		newOwnersCmd(cfg),
	}
	for _, cmd := range cmds {
		flags.Config(cmd)
	}

	return cmds, nil
}

// runtime holds what one command invocation connects to. Everything except the configuration is
// created on first use, so commands that never touch the chain need no RPC or signer.
type runtime struct {
	lggr logger.Logger
	deps *Deps
	conf *config.Config

	registry    *prometheus.Registry
	metrics     *orchestrator.Metrics
	metricsFile string

	wallet *orchestrator.Session[Wallet]
	orch   *orchestrator.Session[Orchestrator]
	store  Store
}

func newRuntime(cmd *cobra.Command, cfg Config) (*runtime, error) {
	deps := cfg.deps()
	path := flags.MustString(cmd.Flags().GetString("config"))

	conf, err := deps.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics, err := orchestrator.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	r := &runtime{
		lggr:        cfg.Logger,
		deps:        deps,
		conf:        conf,
		registry:    reg,
		metrics:     metrics,
		metricsFile: flags.GetMetricsFile(cmd),
	}
	r.wallet = orchestrator.NewSession(r.connectWallet)
	r.orch = orchestrator.NewSession(r.connectOrchestrator)

	return r, nil
}

// Wallet connects the configured signer.
func (r *runtime) Wallet(ctx context.Context) (Wallet, error) {
	return r.wallet.Get(ctx)
}

func (r *runtime) connectWallet(ctx context.Context) (Wallet, error) {
	w, err := r.deps.LoadWallet(ctx, r.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	r.lggr.Debugw("Wallet connected", "address", w.Address().Hex())

	return w, nil
}

// Orchestrator connects the wallet and the chain.
func (r *runtime) Orchestrator(ctx context.Context) (Orchestrator, error) {
	return r.orch.Get(ctx)
}

func (r *runtime) connectOrchestrator(ctx context.Context) (Orchestrator, error) {
	if err := r.conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	w, err := r.Wallet(ctx)
	if err != nil {
		return nil, err
	}

	orch, err := r.deps.Connect(ctx, r.conf, w, r.metrics, r.lggr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return orch, nil
}

// Store creates the persistence client.
func (r *runtime) Store() (Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	s, err := r.deps.NewStore(r.conf, r.lggr)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}
	r.store = s

	return s, nil
}

// WriteMetrics writes the orchestrator counters to the --metrics-file textfile, if one was given.
func (r *runtime) WriteMetrics() error {
	if r.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.metricsFile, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	r.lggr.Debugw("Metrics written", "file", r.metricsFile)

	return nil
}

// Close releases the wallet connection, if any.
func (r *runtime) Close() {
	w, ok := r.wallet.Cached()
	if !ok {
		return
	}
	if c, ok := w.(interface{ Close() }); ok {
		c.Close()
	}
}

// withRuntime runs fn with a runtime for cmd, then writes the metrics and closes the runtime.
// Metrics are written for failed runs too.
func withRuntime(cmd *cobra.Command, cfg Config, fn func(r *runtime) error) error {
	r, err := newRuntime(cmd, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	return errors.Join(fn(r), r.WriteMetrics())
}

// Command multisigctl proposes, co-signs and executes fee dispatcher and owner changes through the
// multisig and timelock contracts.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/feedispatch/multisig-ops/config"
	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/pkg/commands"
	"github.com/feedispatch/multisig-ops/pkg/commands/flags"
	"github.com/feedispatch/multisig-ops/pkg/commands/workflow"
	"github.com/feedispatch/multisig-ops/pkg/logger"
)

// exitCanceled is the exit code of a run the user declined in the wallet.
const exitCanceled = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()

	if code := report(os.Stderr, err); code != 0 {
		os.Exit(code)
	}
}

// report prints the outcome of a failed run to w and returns the exit code. A wallet cancellation
// is an expected outcome: it prints only the rejection message.
func report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	if multisig.IsUserRejected(err) {
		fmt.Fprintln(w, multisig.ErrorMessage(err))
		return exitCanceled
	}

	fmt.Fprintf(w, "error: %v\n", err)
	if msg := multisig.ErrorMessage(err); msg != "unknown error" {
		fmt.Fprintln(w, msg)
	}

	return 1
}

func run(ctx context.Context, args []string) error {
	// The configuration is loaded once. Commands report a load error when they run, so --help
	// works without a config.
	conf, confErr := config.Load(configPath(args))

	lggr, err := newLogger(conf)
	if err != nil {
		return err
	}
	defer func() { _ = lggr.Sync() }()

	cmds, err := commands.New(lggr).Workflow(workflow.Deps{
		LoadConfig: func(string) (*config.Config, error) { return conf, confErr },
	})
	if err != nil {
		return err
	}

	root := &cobra.Command{
		Use:           "multisigctl",
		Short:         "Multisig transaction workflow for the fee dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(cmds...)
	root.SetArgs(args)

	return root.ExecuteContext(ctx)
}

// configPath returns the --config value among args, or the default path.
func configPath(args []string) string {
	fs := pflag.NewFlagSet("multisigctl", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	path := fs.StringP("config", "c", flags.DefaultConfigPath, "")
	fs.BoolP("help", "h", false, "")
	_ = fs.Parse(args)

	return *path
}

// newLogger builds the runtime logger from the log section of conf. A nil conf uses the defaults.
func newLogger(conf *config.Config) (logger.Logger, error) {
	if conf == nil {
		return logger.New()
	}

	lvl, err := logger.ParseLevel(conf.Log.Level)
	if err != nil {
		return nil, err
	}
	lc := logger.Config{Level: lvl, Development: conf.Log.Development}

	return lc.New()
}

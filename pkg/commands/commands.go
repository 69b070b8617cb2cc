// Package commands provides the CLI command packages of multisigctl.
//
// There are two ways to use commands from this package:
//
// 1. Via the Commands factory (recommended for most use cases):
//
//	cmds, err := commands.New(lggr).Workflow(workflow.Deps{})
//	if err != nil {
//	    return err
//	}
//	app.AddCommand(cmds...)
//
// 2. Via direct package imports (for advanced DI/testing):
//
//	import "github.com/feedispatch/multisig-ops/pkg/commands/workflow"
//
//	cmds, err := workflow.NewCommands(workflow.Config{
//	    Logger: lggr,
//	    Deps:   workflow.Deps{...},  // inject mocks for testing
//	})
package commands

import (
	"github.com/spf13/cobra"

	"github.com/feedispatch/multisig-ops/pkg/commands/workflow"
	"github.com/feedispatch/multisig-ops/pkg/logger"
)

// Commands provides a factory for creating CLI commands with shared configuration.
// This allows setting the logger once and reusing it across all commands.
type Commands struct {
	lggr logger.Logger
}

// New creates a new Commands factory with the given logger.
// The logger will be shared across all commands created by this factory.
func New(lggr logger.Logger) *Commands {
	return &Commands{lggr: lggr}
}

// Workflow creates the multisig transaction commands: create, list, cosign, execute, decode,
// permission, close, delete, login and owners. Nil fields of deps use production defaults.
//
// Usage:
//
//	cmds, err := commands.New(lggr).Workflow(workflow.Deps{})
//	if err != nil {
//	    return err
//	}
//	rootCmd.AddCommand(cmds...)
func (c *Commands) Workflow(deps workflow.Deps) ([]*cobra.Command, error) {
	return workflow.NewCommands(workflow.Config{
		Logger: c.lggr,
		Deps:   deps,
	})
}

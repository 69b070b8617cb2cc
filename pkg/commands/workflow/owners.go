package workflow

import (
	"github.com/spf13/cobra"

	"github.com/feedispatch/multisig-ops/pkg/commands/flags"
	"github.com/feedispatch/multisig-ops/pkg/commands/text"
)

var (
	ownersShort = "Show the multisig owners"

	ownersLong = text.LongDesc(`
		Reads the owners and the current nonce of the multisig. The configured signer is marked
		when it is an owner.
	`)
)

// newOwnersCmd creates the "owners" command.
func newOwnersCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owners",
		Short: ownersShort,
		Long:  ownersLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			format := flags.GetFormat(cmd)

			return withRuntime(cmd, cfg, func(r *runtime) error {
				orch, err := r.Orchestrator(ctx)
				if err != nil {
					return err
				}
				owners, err := orch.Owners(ctx)
				if err != nil {
					return err
				}
				nonce, err := orch.Nonce(ctx)
				if err != nil {
					return err
				}

				return printOwners(cmd.OutOrStdout(), format, owners, nonce, orch.Address())
			})
		},
	}

	flags.Output(cmd)

	return cmd
}

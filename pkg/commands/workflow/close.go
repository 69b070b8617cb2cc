package workflow

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/pkg/commands/text"
)

var (
	closeShort = "Close a stored transaction"

	closeLong = text.LongDesc(`
		Marks a stored transaction CLOSED so it is no longer offered for co-signing or execution.
		Executed and closed transactions cannot be closed. Nothing is sent to the chain.
	`)

	closeExample = text.Examples(`
		# Abandon transaction 42
		multisigctl close 42
	`)

	deleteShort = "Delete a stored transaction"

	deleteLong = text.LongDesc(`
		Removes a stored transaction from the persistence API. The backend only lets its creator
		delete it. Nothing is sent to the chain.
	`)

	deleteExample = text.Examples(`
		# Delete transaction 42
		multisigctl delete 42
	`)
)

// newCloseCmd creates the "close" command.
func newCloseCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:     "close <id>",
		Short:   closeShort,
		Long:    closeLong,
		Example: closeExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClose(cmd, cfg, args[0])
		},
	}
}

// runClose executes the close command logic.
func runClose(cmd *cobra.Command, cfg Config, id string) error {
	ctx := cmd.Context()

	return withRuntime(cmd, cfg, func(r *runtime) error {
		store, err := r.Store()
		if err != nil {
			return err
		}
		tx, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !tx.Status.CanTransition(multisig.StatusClosed) {
			return fmt.Errorf("transaction %s is %s and cannot be closed", id, tx.Status)
		}

		if err := store.Close(ctx, id); err != nil {
			return err
		}
		cmd.Printf("Closed transaction %s\n", id)

		return nil
	})
}

// newDeleteCmd creates the "delete" command.
func newDeleteCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Short:   deleteShort,
		Long:    deleteLong,
		Example: deleteExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, cfg, func(r *runtime) error {
				store, err := r.Store()
				if err != nil {
					return err
				}
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				cmd.Printf("Deleted transaction %s\n", args[0])

				return nil
			})
		},
	}
}

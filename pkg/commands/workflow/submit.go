package workflow

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/multisig/orchestrator"
	"github.com/feedispatch/multisig-ops/pkg/commands/flags"
	"github.com/feedispatch/multisig-ops/pkg/commands/text"
)

var (
	cosignShort = "Co-sign and submit a ready transaction"

	cosignLong = text.LongDesc(`
		Adds the configured signer's approval to a stored transaction in the READY state and
		submits it through the multisig. The stored status and transaction hash are updated once
		the submission is mined.

		Nothing is submitted when the transaction is not READY, when the signer already signed it
		or when the multisig nonce moved past the transaction's nonce.
	`)

	cosignExample = text.Examples(`
		# Co-sign transaction 42
		multisigctl cosign 42
	`)

	executeShort = "Execute a scheduled timelock operation"

	executeLong = text.LongDesc(`
		Executes the timelock operation a stored transaction scheduled, once its delay has passed
		and the configured signer holds the executor role. The stored status becomes EXECUTED.

		Use the permission command to see why an operation cannot be executed yet.
	`)

	executeExample = text.Examples(`
		# Execute the receiver change proposed as transaction 42
		multisigctl execute 42

		# Execute and leave the outcome counters for the node exporter textfile collector
		multisigctl execute 42 --metrics-file /var/lib/node_exporter/textfile/multisig.prom
	`)
)

// submitFunc is CoSign or Execute of an Orchestrator.
type submitFunc func(o Orchestrator, ctx context.Context, tx multisig.PendingTransaction) (*orchestrator.Result, error)

// newCoSignCmd creates the "cosign" command.
func newCoSignCmd(cfg Config) *cobra.Command {
	return newSubmitCmd(cfg, &cobra.Command{
		Use:     "cosign <id>",
		Short:   cosignShort,
		Long:    cosignLong,
		Example: cosignExample,
	}, "co-sign", Orchestrator.CoSign)
}

// newExecuteCmd creates the "execute" command.
func newExecuteCmd(cfg Config) *cobra.Command {
	return newSubmitCmd(cfg, &cobra.Command{
		Use:     "execute <id>",
		Short:   executeShort,
		Long:    executeLong,
		Example: executeExample,
	}, "execute", Orchestrator.Execute)
}

func newSubmitCmd(cfg Config, cmd *cobra.Command, operation string, submit submitFunc) *cobra.Command {
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runSubmit(cmd, cfg, args[0], flags.GetFormat(cmd), operation, submit)
	}

	flags.Output(cmd)
	flags.MetricsFile(cmd)

	return cmd
}

// runSubmit loads the stored transaction, submits it and records the outcome.
func runSubmit(
	cmd *cobra.Command, cfg Config, id string, format flags.Format, operation string, submit submitFunc,
) error {
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

		orch, err := r.Orchestrator(ctx)
		if err != nil {
			return err
		}

		res, err := submit(orch, ctx, *tx)
		if err != nil {
			return fmt.Errorf("failed to %s transaction %s: %w", operation, id, err)
		}
		if res == nil {
			cmd.Printf("Nothing to %s for transaction %s (status %s)\n", operation, id, tx.Status)
			return nil
		}

		if err := store.Update(ctx, id, res.Status, res.TxID); err != nil {
			return fmt.Errorf("transaction %s confirmed in %s but the stored status was not updated: %w",
				id, res.TxID, err)
		}

		return printResult(cmd.OutOrStdout(), format, id, res)
	})
}

package workflow

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/feedispatch/multisig-ops/multisig/calldata"
	"github.com/feedispatch/multisig-ops/pkg/commands/flags"
	"github.com/feedispatch/multisig-ops/pkg/commands/text"
)

var (
	permissionShort = "Check whether a timelock operation can be executed"

	permissionLong = text.LongDesc(`
		Reads the timelock state of the operation a stored transaction scheduled and reports
		whether the configured signer may execute it now, and why not otherwise.

		An operation is executable when it is ready and either anyone or the signer holds the
		executor role. A waiting operation reports how long its delay still runs.
	`)

	permissionExample = text.Examples(`
		# Check the operation scheduled by transaction 42
		multisigctl permission 42

		# Check an operation by its id
		multisigctl permission --operation-id 0x8f3c2d6a0b7e1f4c5a9d8e7b6c5d4e3f2a1b0c9d8e7f6a5b4c3d2e1f0a9b8c7d
	`)
)

type permissionFlags struct {
	id          string
	operationID string
	format      flags.Format
}

// newPermissionCmd creates the "permission" command.
func newPermissionCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "permission [id]",
		Short:   permissionShort,
		Long:    permissionLong,
		Example: permissionExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := permissionFlags{
				operationID: flags.MustString(cmd.Flags().GetString("operation-id")),
				format:      flags.GetFormat(cmd),
			}
			if len(args) == 1 {
				f.id = args[0]
			}

			return runPermission(cmd, cfg, f)
		},
	}

	flags.Output(cmd)

	cmd.Flags().String("operation-id", "", "Timelock operation id instead of a stored transaction")

	return cmd
}

// runPermission executes the permission command logic.
func runPermission(cmd *cobra.Command, cfg Config, f permissionFlags) error {
	ctx := cmd.Context()
	if (f.id == "") == (f.operationID == "") {
		return errors.New("either a transaction id or --operation-id is required")
	}

	return withRuntime(cmd, cfg, func(r *runtime) error {
		var opID common.Hash
		if f.operationID != "" {
			b, err := hexutil.Decode(f.operationID)
			if err != nil || len(b) != common.HashLength {
				return fmt.Errorf("invalid --operation-id %q", f.operationID)
			}
			opID = common.BytesToHash(b)
		} else {
			id, err := scheduledOperation(r, cmd, f.id)
			if err != nil {
				return err
			}
			opID = id
		}

		orch, err := r.Orchestrator(ctx)
		if err != nil {
			return err
		}
		perm, err := orch.CanExecute(ctx, opID)
		if err != nil {
			return err
		}

		return printPermission(cmd.OutOrStdout(), f.format, opID, perm)
	})
}

// scheduledOperation returns the timelock operation id the stored transaction id schedules.
func scheduledOperation(r *runtime, cmd *cobra.Command, id string) (common.Hash, error) {
	codec, err := codecFor(r.conf)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid config: %w", err)
	}
	store, err := r.Store()
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := store.Get(cmd.Context(), id)
	if err != nil {
		return common.Hash{}, err
	}

	decoded, err := codec.Decode(tx.Data, calldata.Hint{To: &tx.To, Nonce: &tx.Nonce})
	if err != nil {
		return common.Hash{}, err
	}
	op, ok := decoded.Timelock()
	if !ok {
		return common.Hash{}, fmt.Errorf("transaction %s calls %s, not a timelock schedule",
			id, decoded.Operation.Method())
	}

	return op.ID, nil
}

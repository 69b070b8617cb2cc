package workflow

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feedispatch/multisig-ops/multisig/orchestrator"
	"github.com/feedispatch/multisig-ops/pkg/commands/flags"
	"github.com/feedispatch/multisig-ops/pkg/commands/text"
	"github.com/feedispatch/multisig-ops/txstore"
)

var (
	createShort = "Propose a multisig transaction"

	createLong = text.LongDesc(`
		Builds the calldata of a receiver or owner change, signs it at the current multisig nonce
		with the configured signer and stores the proposal with the persistence API.

		Receiver changes are scheduled through the timelock with its minimum delay and are
		executed with the execute command once the delay has passed. Owner changes take effect
		when enough owners have co-signed.

		Types: add-receiver, remove-receiver, add-owner, remove-owner, swap-owner.
	`)

	createExample = text.Examples(`
		# Propose adding a fee receiver
		multisigctl create --type add-receiver --address 0x70997970C51812dc3A010C7d01b50e0d17dc79C8

		# Propose a new owner and raise the threshold to 3
		multisigctl create --type add-owner --address 0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC --threshold 3

		# Propose replacing an owner
		multisigctl create --type swap-owner --old-address 0x90F79bf6EB2c4f870365E785982E1f101E93b906 \
		  --new-address 0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65
	`)
)

type createFlags struct {
	txType     string
	address    string
	oldAddress string
	newAddress string
	threshold  int64
	format     flags.Format
}

// newCreateCmd creates the "create" command proposing a new transaction.
func newCreateCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create",
		Short:   createShort,
		Long:    createLong,
		Example: createExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := createFlags{
				txType:     flags.MustString(cmd.Flags().GetString("type")),
				address:    flags.MustString(cmd.Flags().GetString("address")),
				oldAddress: flags.MustString(cmd.Flags().GetString("old-address")),
				newAddress: flags.MustString(cmd.Flags().GetString("new-address")),
				threshold:  int64(flags.MustInt(cmd.Flags().GetInt("threshold"))),
				format:     flags.GetFormat(cmd),
			}

			return runCreate(cmd, cfg, f)
		},
	}

	flags.Output(cmd)
	flags.MetricsFile(cmd)

	cmd.Flags().StringP("type", "t", "", "Transaction type (required)")
	cmd.Flags().StringP("address", "a", "", "Receiver or owner address")
	cmd.Flags().String("old-address", "", "Owner to replace (swap-owner)")
	cmd.Flags().String("new-address", "", "Replacing owner (swap-owner)")
	cmd.Flags().Int("threshold", 0, "New threshold (add-owner, remove-owner)")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

// runCreate executes the create command logic.
func runCreate(cmd *cobra.Command, cfg Config, f createFlags) error {
	ctx := cmd.Context()

	txType, err := orchestrator.ParseTxType(f.txType)
	if err != nil {
		return err
	}
	params, err := orchestrator.ParseCreateParams(orchestrator.CreateRequest{
		Type:       txType,
		Address:    f.address,
		OldAddress: f.oldAddress,
		NewAddress: f.newAddress,
		Threshold:  f.threshold,
	})
	if err != nil {
		return err
	}

	return withRuntime(cmd, cfg, func(r *runtime) error {
		// Fail on a missing API configuration before the signer is prompted.
		store, err := r.Store()
		if err != nil {
			return err
		}
		orch, err := r.Orchestrator(ctx)
		if err != nil {
			return err
		}

		proposal, err := orch.CreateTransaction(ctx, params)
		if err != nil {
			return fmt.Errorf("failed to create %s transaction: %w", txType, err)
		}

		id, err := store.Create(ctx, txstore.NewTransaction{
			To:        proposal.To,
			Value:     bigString(proposal.Value),
			Data:      proposal.Data,
			Nonce:     proposal.Nonce,
			Signature: proposal.Signature,
		})
		if err != nil {
			return err
		}
		r.lggr.Infow("Transaction proposed", "id", id, "type", txType.String(), "nonce", proposal.Nonce)

		return printProposal(cmd.OutOrStdout(), f.format, id, proposal)
	})
}

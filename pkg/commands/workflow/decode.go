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
	decodeShort = "Decode transaction calldata"

	decodeLong = text.LongDesc(`
		Decodes the calldata of a stored transaction, or of raw calldata given with --data, into
		the owner change, timelock schedule or fee dispatcher call it encodes.

		A schedule targeting the fee dispatcher is decoded down to the receiver change. When the
		destination and the nonce are known the multisig transaction hash is printed as well.
		Decoding needs neither the chain nor a signer.
	`)

	decodeExample = text.Examples(`
		# Review stored transaction 42 before co-signing it
		multisigctl decode 42

		# Decode raw calldata
		multisigctl decode --data 0x0d582f13... --to 0x5FbDB2315678afecb367f032d93F642f64180aa3 --nonce 7
	`)
)

type decodeFlags struct {
	id       string
	data     string
	to       string
	nonce    uint64
	hasNonce bool
	format   flags.Format
}

// newDecodeCmd creates the "decode" command.
func newDecodeCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decode [id]",
		Short:   decodeShort,
		Long:    decodeLong,
		Example: decodeExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nonce, _ := cmd.Flags().GetUint64("nonce")
			f := decodeFlags{
				data:     flags.MustString(cmd.Flags().GetString("data")),
				to:       flags.MustString(cmd.Flags().GetString("to")),
				nonce:    nonce,
				hasNonce: cmd.Flags().Changed("nonce"),
				format:   flags.GetFormat(cmd),
			}
			if len(args) == 1 {
				f.id = args[0]
			}

			return runDecode(cmd, cfg, f)
		},
	}

	flags.Output(cmd)

	cmd.Flags().StringP("data", "d", "", "Hex calldata to decode instead of a stored transaction")
	cmd.Flags().String("to", "", "Destination of the calldata")
	cmd.Flags().Uint64("nonce", 0, "Multisig nonce of the calldata")

	return cmd
}

// runDecode executes the decode command logic.
func runDecode(cmd *cobra.Command, cfg Config, f decodeFlags) error {
	if (f.id == "") == (f.data == "") {
		return errors.New("either a transaction id or --data is required")
	}

	return withRuntime(cmd, cfg, func(r *runtime) error {
		codec, err := codecFor(r.conf)
		if err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		var (
			data []byte
			hint calldata.Hint
		)
		if f.id != "" {
			store, serr := r.Store()
			if serr != nil {
				return serr
			}
			tx, gerr := store.Get(cmd.Context(), f.id)
			if gerr != nil {
				return gerr
			}
			data = tx.Data
			hint = calldata.Hint{To: &tx.To, Nonce: &tx.Nonce}
		} else {
			if data, err = hexutil.Decode(f.data); err != nil {
				return fmt.Errorf("invalid --data: %w", err)
			}
			if f.to != "" {
				if !common.IsHexAddress(f.to) {
					return fmt.Errorf("invalid --to address %q", f.to)
				}
				to := common.HexToAddress(f.to)
				hint.To = &to
			}
			if f.hasNonce {
				nonce := f.nonce
				hint.Nonce = &nonce
			}
		}

		decoded, err := codec.Decode(data, hint)
		if err != nil {
			return err
		}

		return printDecoded(cmd.OutOrStdout(), f.format, decoded)
	})
}

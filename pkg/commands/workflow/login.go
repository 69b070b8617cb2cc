package workflow

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feedispatch/multisig-ops/auth"
	"github.com/feedispatch/multisig-ops/pkg/commands/text"
	"github.com/feedispatch/multisig-ops/txstore"
)

var (
	loginShort = "Log in to the persistence API"

	loginLong = text.LongDesc(`
		Signs the EIP-712 login message with the configured signer and exchanges it for a session
		token of the persistence API. The token is printed on standard output.

		Export it as MULTISIG_API_TOKEN (or set api.token in the config file) for the commands
		that read or write stored transactions.
	`)

	loginExample = text.Examples(`
		# Log in and keep the token for this shell
		export MULTISIG_API_TOKEN=$(multisigctl login)
	`)
)

// newLoginCmd creates the "login" command.
func newLoginCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:     "login",
		Short:   loginShort,
		Long:    loginLong,
		Example: loginExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, cfg)
		},
	}
}

// runLogin executes the login command logic.
func runLogin(cmd *cobra.Command, cfg Config) error {
	ctx := cmd.Context()

	return withRuntime(cmd, cfg, func(r *runtime) error {
		store, err := r.Store()
		if err != nil {
			return err
		}
		w, err := r.Wallet(ctx)
		if err != nil {
			return err
		}

		signed, err := auth.SignLogin(ctx, w, auth.Domain{ChainID: r.conf.ChainIDBig()}, r.deps.Now())
		if err != nil {
			return err
		}
		token, err := store.Login(ctx, txstore.LoginRequest{
			Address:   signed.Address,
			LoginAt:   signed.LoginAt,
			Signature: signed.SignatureHex(),
		})
		if err != nil {
			return err
		}
		r.lggr.Infow("Logged in", "address", signed.Address.Hex(), "loginAt", signed.LoginAt)
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)

		return err
	})
}

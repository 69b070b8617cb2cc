package workflow

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/feedispatch/multisig-ops/pkg/commands/flags"
	"github.com/feedispatch/multisig-ops/pkg/commands/text"
	"github.com/feedispatch/multisig-ops/txstore"
)

var (
	listShort = "List stored transactions"

	listLong = text.LongDesc(`
		Lists the transactions stored with the persistence API, newest page first as the backend
		orders them. The method column is decoded locally from the calldata.
	`)

	listExample = text.Examples(`
		# List the transactions waiting for co-signatures
		multisigctl list --status ready

		# Second page of every transaction, as JSON
		multisigctl list --page 2 --page-size 20 -o json
	`)
)

type listFlags struct {
	status   int
	page     int
	pageSize int
	id       string
	format   flags.Format
}

// newListCmd creates the "list" command.
func newListCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   listShort,
		Long:    listLong,
		Example: listExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := listFlags{
				status:   flags.GetStatus(cmd),
				page:     flags.MustInt(cmd.Flags().GetInt("page")),
				pageSize: flags.MustInt(cmd.Flags().GetInt("page-size")),
				id:       flags.MustString(cmd.Flags().GetString("id")),
				format:   flags.GetFormat(cmd),
			}

			return runList(cmd, cfg, f)
		},
	}

	flags.Status(cmd)
	flags.Output(cmd)

	cmd.Flags().IntP("page", "p", 1, "Page number, starting at 1")
	cmd.Flags().Int("page-size", 10, "Rows per page")
	cmd.Flags().String("id", "", "Only the transaction with this id")

	return cmd
}

// runList executes the list command logic.
func runList(cmd *cobra.Command, cfg Config, f listFlags) error {
	if f.page < 1 || f.pageSize < 1 {
		return errors.New("page and page-size must be positive")
	}

	return withRuntime(cmd, cfg, func(r *runtime) error {
		store, err := r.Store()
		if err != nil {
			return err
		}

		page, err := store.List(cmd.Context(), txstore.Query{
			Page:     f.page,
			PageSize: f.pageSize,
			ID:       f.id,
			Status:   f.status,
		})
		if err != nil {
			return err
		}

		// Without valid contract addresses the method column stays empty.
		codec, err := codecFor(r.conf)
		if err != nil {
			r.lggr.Debugw("Not decoding calldata", "error", err)
		}

		view := listView{Total: page.Total, Rows: make([]txView, 0, len(page.Rows))}
		for _, tx := range page.Rows {
			view.Rows = append(view.Rows, newTxView(tx, codec))
		}

		return printTransactions(cmd.OutOrStdout(), f.format, view)
	})
}

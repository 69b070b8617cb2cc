package workflow

import (
	"encoding/json"
	"io"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/olekukonko/tablewriter"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/multisig/calldata"
	"github.com/feedispatch/multisig-ops/multisig/orchestrator"
	"github.com/feedispatch/multisig-ops/multisig/timelock"
	"github.com/feedispatch/multisig-ops/pkg/commands/flags"
)

// txView is the printed form of a transaction record.
type txView struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Nonce     uint64         `json:"nonce"`
	Method    string         `json:"method,omitempty"`
	To        common.Address `json:"to"`
	Value     string         `json:"value"`
	Data      hexutil.Bytes  `json:"data"`
	Creator   common.Address `json:"creator"`
	Signature hexutil.Bytes  `json:"signature"`
	TxID      string         `json:"txid,omitempty"`
}

type listView struct {
	Total int      `json:"total"`
	Rows  []txView `json:"rows"`
}

// newTxView converts tx. Method is left empty when the calldata does not decode.
func newTxView(tx multisig.PendingTransaction, codec *calldata.Codec) txView {
	v := txView{
		ID:        tx.ID,
		Status:    tx.Status.String(),
		Nonce:     tx.Nonce,
		To:        tx.To,
		Value:     tx.ValueOrZero().String(),
		Data:      tx.Data,
		Creator:   tx.Creator,
		Signature: tx.Signature,
		TxID:      tx.TxID,
	}
	if codec != nil {
		if d, err := codec.Decode(tx.Data, calldata.Hint{}); err == nil {
			v.Method = methodOf(d)
		}
	}

	return v
}

// methodOf names a decoded call, including the fee dispatcher call a schedule carries.
func methodOf(d *multisig.DecodedCall) string {
	if d.FeeDispatcher != nil {
		return d.Operation.Method() + "(" + d.FeeDispatcher.Method() + ")"
	}

	return d.Operation.Method()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}

	return v.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorders(tablewriter.Border{
		Left:   false,
		Right:  false,
		Top:    true,
		Bottom: true,
	})

	return table
}

func printTransactions(w io.Writer, format flags.Format, page listView) error {
	if format == flags.FormatJSON {
		return writeJSON(w, page)
	}

	table := newTable(w, "ID", "Status", "Nonce", "Method", "To", "Creator", "TxID")
	for _, tx := range page.Rows {
		table.Append([]string{
			tx.ID, tx.Status, strconv.FormatUint(tx.Nonce, 10), tx.Method, tx.To.Hex(), tx.Creator.Hex(), tx.TxID,
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "Total", strconv.Itoa(page.Total)})
	table.Render()

	return nil
}

// decodedView is the printed form of decoded calldata.
type decodedView struct {
	Method        string                    `json:"method"`
	Operation     multisig.Operation        `json:"operation"`
	FeeDispatcher *multisig.FeeDispatcherOp `json:"feeDispatcher,omitempty"`
	TxHash        *common.Hash              `json:"txHash,omitempty"`
}

func printDecoded(w io.Writer, format flags.Format, d *multisig.DecodedCall) error {
	v := decodedView{
		Method:        methodOf(d),
		Operation:     d.Operation,
		FeeDispatcher: d.FeeDispatcher,
		TxHash:        d.TxHash,
	}
	if format == flags.FormatJSON {
		return writeJSON(w, v)
	}

	table := newTable(w, "Field", "Value")
	table.Append([]string{"method", v.Method})
	table.AppendBulk(operationRows(d.Operation))
	if op := d.FeeDispatcher; op != nil {
		table.Append([]string{"receiver", op.Receiver.Hex()})
	}
	if d.TxHash != nil {
		table.Append([]string{"txHash", d.TxHash.Hex()})
	}
	table.Render()

	return nil
}

func operationRows(op multisig.Operation) [][]string {
	switch op := op.(type) {
	case multisig.OwnerAdd:
		return [][]string{
			{"owner", op.Owner.Hex()},
			{"threshold", strconv.FormatUint(uint64(op.Threshold), 10)},
		}
	case multisig.OwnerRemove:
		return [][]string{
			{"prevOwner", op.PrevOwner.Hex()},
			{"owner", op.Owner.Hex()},
			{"threshold", strconv.FormatUint(uint64(op.Threshold), 10)},
		}
	case multisig.OwnerSwap:
		return [][]string{
			{"prevOwner", op.PrevOwner.Hex()},
			{"oldOwner", op.OldOwner.Hex()},
			{"newOwner", op.NewOwner.Hex()},
		}
	case multisig.TimelockSchedule:
		return [][]string{
			{"target", op.Target.Hex()},
			{"value", bigString(op.Value)},
			{"data", hexutil.Encode(op.Data)},
			{"predecessor", op.Predecessor.Hex()},
			{"salt", op.Salt.Hex()},
			{"delay", bigString(op.Delay)},
			{"operationId", op.ID.Hex()},
		}
	case multisig.FeeDispatcherOp:
		return [][]string{{"receiver", op.Receiver.Hex()}}
	default:
		return nil
	}
}

// permissionView is the printed form of a permission decision.
type permissionView struct {
	OperationID    common.Hash `json:"operationId"`
	Allowed        bool        `json:"allowed"`
	Reason         string      `json:"reason,omitempty"`
	State          string      `json:"state"`
	Timestamp      string      `json:"timestamp"`
	MinDelay       string      `json:"minDelay"`
	AnyoneCanExec  bool        `json:"anyoneCanExecute"`
	AccountCanExec bool        `json:"accountCanExecute"`
	Remaining      string      `json:"remaining,omitempty"`
}

func printPermission(w io.Writer, format flags.Format, id common.Hash, p timelock.Permission) error {
	v := permissionView{
		OperationID:    id,
		Allowed:        p.Allowed,
		Reason:         p.Reason,
		State:          p.Details.State.String(),
		Timestamp:      bigString(p.Details.Timestamp),
		MinDelay:       bigString(p.Details.MinDelay),
		AnyoneCanExec:  p.Details.AnyoneCanExec,
		AccountCanExec: p.Details.AccountCanExec,
	}
	if p.Details.Remaining > 0 {
		v.Remaining = p.Details.Remaining.String()
	}
	if format == flags.FormatJSON {
		return writeJSON(w, v)
	}

	table := newTable(w, "Field", "Value")
	table.AppendBulk([][]string{
		{"operationId", v.OperationID.Hex()},
		{"allowed", strconv.FormatBool(v.Allowed)},
		{"reason", v.Reason},
		{"state", v.State},
		{"timestamp", v.Timestamp},
		{"minDelay", v.MinDelay},
		{"anyoneCanExecute", strconv.FormatBool(v.AnyoneCanExec)},
		{"accountCanExecute", strconv.FormatBool(v.AccountCanExec)},
		{"remaining", v.Remaining},
	})
	table.Render()

	return nil
}

func printOwners(w io.Writer, format flags.Format, owners []common.Address, nonce uint64, me common.Address) error {
	if format == flags.FormatJSON {
		return writeJSON(w, struct {
			Owners []common.Address `json:"owners"`
			Nonce  uint64           `json:"nonce"`
		}{owners, nonce})
	}

	table := newTable(w, "#", "Owner", "")
	for i, o := range owners {
		mark := ""
		if o == me {
			mark = "you"
		}
		table.Append([]string{strconv.Itoa(i + 1), o.Hex(), mark})
	}
	table.SetFooter([]string{"", "Nonce", strconv.FormatUint(nonce, 10)})
	table.Render()

	return nil
}

func printProposal(w io.Writer, format flags.Format, id string, p *orchestrator.Proposal) error {
	if format == flags.FormatJSON {
		return writeJSON(w, struct {
			ID        string         `json:"id"`
			To        common.Address `json:"to"`
			Value     string         `json:"value"`
			Data      hexutil.Bytes  `json:"data"`
			Nonce     uint64         `json:"nonce"`
			Signature hexutil.Bytes  `json:"signature"`
		}{id, p.To, bigString(p.Value), p.Data, p.Nonce, p.Signature})
	}

	table := newTable(w, "Field", "Value")
	table.AppendBulk([][]string{
		{"id", id},
		{"to", p.To.Hex()},
		{"value", bigString(p.Value)},
		{"data", hexutil.Encode(p.Data)},
		{"nonce", strconv.FormatUint(p.Nonce, 10)},
		{"signature", hexutil.Encode(p.Signature)},
	})
	table.Render()

	return nil
}

func printResult(w io.Writer, format flags.Format, id string, res *orchestrator.Result) error {
	if format == flags.FormatJSON {
		return writeJSON(w, struct {
			ID     string `json:"id"`
			TxID   string `json:"txid"`
			Status string `json:"status"`
		}{id, res.TxID, res.Status.String()})
	}

	table := newTable(w, "ID", "Status", "TxID")
	table.Append([]string{id, res.Status.String(), res.TxID})
	table.Render()

	return nil
}

package txstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/feedispatch/multisig-ops/multisig"
)

// flexString accepts a JSON string or number. The backend sends numeric ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())

	return nil
}

// wireTx is a transaction row as the backend stores it: hex calldata and signature, numeric
// value.
type wireTx struct {
	ID        flexString `json:"id"`
	To        string     `json:"to"`
	Value     flexString `json:"value"`
	Data      string     `json:"data"`
	Creator   string     `json:"creator"`
	Nonce     uint64     `json:"nonce"`
	Signature string     `json:"signature"`
	Status    int        `json:"status"`
	TxID      string     `json:"txid"`
}

type wireCreate struct {
	To        string `json:"to"`
	Data      string `json:"data"`
	Value     string `json:"value"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

func newWireCreate(tx NewTransaction) wireCreate {
	value := tx.Value
	if value == "" {
		value = "0"
	}

	return wireCreate{
		To:        tx.To.Hex(),
		Data:      hexutil.Encode(tx.Data),
		Value:     value,
		Nonce:     tx.Nonce,
		Signature: hexutil.Encode(tx.Signature),
	}
}

func (w wireTx) toPending() (multisig.PendingTransaction, error) {
	to, err := parseAddress("to", w.To)
	if err != nil {
		return multisig.PendingTransaction{}, err
	}
	creator, err := parseAddress("creator", w.Creator)
	if err != nil {
		return multisig.PendingTransaction{}, err
	}

	value, err := parseValue(string(w.Value))
	if err != nil {
		return multisig.PendingTransaction{}, err
	}
	data, err := parseHex("data", w.Data)
	if err != nil {
		return multisig.PendingTransaction{}, err
	}
	sig, err := parseHex("signature", w.Signature)
	if err != nil {
		return multisig.PendingTransaction{}, err
	}
	if w.Status < int(multisig.StatusInited) || w.Status > int(multisig.StatusClosed) {
		return multisig.PendingTransaction{}, fmt.Errorf("unknown status %d", w.Status)
	}

	return multisig.PendingTransaction{
		ID:        string(w.ID),
		To:        to,
		Value:     value,
		Data:      data,
		Creator:   creator,
		Nonce:     w.Nonce,
		Signature: sig,
		Status:    multisig.Status(w.Status),
		TxID:      w.TxID,
	}, nil
}

// valuePrec holds every uint256 exactly.
const valuePrec = 256

// parseValue reads a wei amount. Besides decimal integers it takes the exponent form JavaScript
// backends emit for large numbers (1e+21), as long as it denotes a whole non-negative number.
func parseValue(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	if v, ok := new(big.Int).SetString(s, 10); ok {
		if v.Sign() < 0 {
			return nil, fmt.Errorf("invalid value %q: negative", s)
		}

		return v, nil
	}

	f, _, err := big.ParseFloat(s, 10, valuePrec, big.ToNearestEven)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", s)
	}
	if f.Sign() < 0 || !f.IsInt() {
		return nil, fmt.Errorf("invalid value %q: not a whole non-negative amount", s)
	}
	v, acc := f.Int(nil)
	if acc != big.Exact {
		return nil, fmt.Errorf("invalid value %q: not exact", s)
	}

	return v, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: %w: %q", field, multisig.ErrInvalidAddress, s)
	}

	return common.HexToAddress(s), nil
}

func parseHex(field, s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}

	return b, nil
}

package multisig

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the lifecycle state of a persisted multisig transaction.
type Status uint8

const (
	StatusInited Status = iota
	StatusReady
	StatusSigned
	StatusProposed
	StatusExecuted
	StatusClosed
)

// StatusAll is the listing filter value selecting every status.
const StatusAll = -1

var statusNames = map[Status]string{
	StatusInited:   "INITED",
	StatusReady:    "READY",
	StatusSigned:   "SIGNED",
	StatusProposed: "PROPOSED",
	StatusExecuted: "EXECUTED",
	StatusClosed:   "CLOSED",
}

// String returns the upper case label used by the persistence backend.
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}

	return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusExecuted || s == StatusClosed
}

// CanTransition reports whether moving from s to next follows the lifecycle
// Inited → Ready → Signed → Proposed → Executed. Closed is reachable from any non terminal state.
// Co-signing may skip straight to Proposed or Executed once the threshold is reached.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusClosed {
		return true
	}

	return next > s && next <= StatusExecuted
}

// ParseStatus parses a numeric status or its label.
func ParseStatus(v string) (Status, error) {
	if n, err := strconv.ParseUint(v, 10, 8); err == nil {
		s := Status(n)
		if _, ok := statusNames[s]; !ok {
			return 0, fmt.Errorf("unknown status %d", n)
		}

		return s, nil
	}
	for s, name := range statusNames {
		if strings.EqualFold(name, v) {
			return s, nil
		}
	}

	return 0, fmt.Errorf("unknown status %q", v)
}

// PendingTransaction is a multisig transaction record as stored by the persistence backend.
type PendingTransaction struct {
	ID        string         `json:"id"`
	To        common.Address `json:"to"`
	Value     *big.Int       `json:"value"`
	Data      []byte         `json:"data"`
	Creator   common.Address `json:"creator"`
	Nonce     uint64         `json:"nonce"`
	Signature []byte         `json:"signature"`
	Status    Status         `json:"status"`
	TxID      string         `json:"txid,omitempty"`
}

// ValueOrZero returns the transaction value, treating nil as zero.
func (p PendingTransaction) ValueOrZero() *big.Int {
	if p.Value == nil {
		return new(big.Int)
	}

	return p.Value
}

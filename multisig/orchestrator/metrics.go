package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	opCreate  = "create"
	opCoSign  = "cosign"
	opExecute = "execute"

	outcomeSigned        = "signed"
	outcomeSubmitted     = "submitted"
	outcomeConfirmed     = "confirmed"
	outcomeFailed        = "failed"
	outcomeRejected      = "rejected"
	outcomeNoop          = "noop"
	outcomeDenied        = "denied"
	outcomeNonceMismatch = "nonce_mismatch"
)

// outcomes lists the outcomes each operation reports. Their series are created up front so they
// read 0 rather than missing.
var outcomes = map[string][]string{
	opCreate:  {outcomeSigned, outcomeRejected},
	opCoSign:  {outcomeNoop, outcomeNonceMismatch, outcomeSubmitted, outcomeConfirmed, outcomeFailed, outcomeRejected},
	opExecute: {outcomeNoop, outcomeDenied, outcomeSubmitted, outcomeConfirmed, outcomeFailed, outcomeRejected},
}

// Metrics counts orchestrator outcomes per lifecycle operation.
type Metrics struct {
	submissions *prometheus.CounterVec
}

// NewMetrics creates the orchestrator counters and registers them with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multisig",
			Subsystem: "orchestrator",
			Name:      "submissions_total",
			Help:      "Lifecycle operations by outcome.",
		}, []string{"operation", "outcome"}),
	}
	for op, outs := range outcomes {
		for _, out := range outs {
			m.submissions.WithLabelValues(op, out)
		}
	}
	if reg != nil {
		if err := reg.Register(m.submissions); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) observe(operation, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(operation, outcome).Inc()
}

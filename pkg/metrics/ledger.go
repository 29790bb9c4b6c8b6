package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics tracks the stock ledger's optimistic concurrency behaviour.
type LedgerMetrics struct {
	movements *prometheus.CounterVec
	retries   prometheus.Counter
	conflicts prometheus.Counter
	replays   prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_movements_total",
		Help: "Applied stock movements by operation type.",
	}, []string{"operation_type"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_cas_retries_total",
		Help: "Version-check retries during stock movement application.",
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_cas_conflicts_total",
		Help: "Stock movements rejected after exhausting version-check retries.",
	})
	replays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_idempotent_replays_total",
		Help: "Stock movements answered from a previously recorded entry.",
	})
	reg.MustRegister(movements, retries, conflicts, replays)
	return &LedgerMetrics{
		movements: movements,
		retries:   retries,
		conflicts: conflicts,
		replays:   replays,
	}
}

// IncMovement counts an applied movement for the given operation type.
func (l *LedgerMetrics) IncMovement(operationType string) {
	if l == nil || l.movements == nil {
		return
	}
	l.movements.WithLabelValues(normalizeLabel(operationType)).Inc()
}

// IncRetry counts a version-check retry.
func (l *LedgerMetrics) IncRetry() {
	if l == nil || l.retries == nil {
		return
	}
	l.retries.Inc()
}

// IncConflict counts a movement that lost every retry attempt.
func (l *LedgerMetrics) IncConflict() {
	if l == nil || l.conflicts == nil {
		return
	}
	l.conflicts.Inc()
}

// IncReplay counts an idempotent replay.
func (l *LedgerMetrics) IncReplay() {
	if l == nil || l.replays == nil {
		return
	}
	l.replays.Inc()
}

// TaskMetrics tracks operational task state transitions.
type TaskMetrics struct {
	transitions *prometheus.CounterVec
}

// NewTaskMetrics registers the task metrics on the provided registerer.
func NewTaskMetrics(reg prometheus.Registerer) *TaskMetrics {
	if reg == nil {
		return &TaskMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_transitions_total",
		Help: "Task status transitions by source and target status.",
	}, []string{"from", "to"})
	reg.MustRegister(transitions)
	return &TaskMetrics{transitions: transitions}
}

// IncTransition counts a task moving between the two statuses.
func (t *TaskMetrics) IncTransition(from, to string) {
	if t == nil || t.transitions == nil {
		return
	}
	t.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

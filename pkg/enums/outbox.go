package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateStockBalance   OutboxAggregateType = "stock_balance"
	AggregateLedgerEntry    OutboxAggregateType = "ledger_entry"
	AggregateOperationTask  OutboxAggregateType = "operation_task"
	AggregateRecommendation OutboxAggregateType = "ai_recommendation"
	AggregateOrder          OutboxAggregateType = "order"
	AggregateDelivery       OutboxAggregateType = "delivery"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateStockBalance,
	AggregateLedgerEntry,
	AggregateOperationTask,
	AggregateRecommendation,
	AggregateOrder,
	AggregateDelivery,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventStockMovementApplied OutboxEventType = "stock_movement_applied"
	EventTaskAssigned         OutboxEventType = "task_assigned"
	EventTaskStatusChanged    OutboxEventType = "task_status_changed"
	EventTaskValidated        OutboxEventType = "task_validated"
	EventDecisionRecorded     OutboxEventType = "decision_recorded"
	EventDecisionRevised      OutboxEventType = "decision_revised"
	EventOrderStatusChanged   OutboxEventType = "order_status_changed"
	EventDeliveryStateChanged OutboxEventType = "delivery_state_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventStockMovementApplied,
	EventTaskAssigned,
	EventTaskStatusChanged,
	EventTaskValidated,
	EventDecisionRecorded,
	EventDecisionRevised,
	EventOrderStatusChanged,
	EventDeliveryStateChanged,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

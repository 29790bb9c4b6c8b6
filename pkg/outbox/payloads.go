package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/pkg/enums"
)

// StockMovementAppliedEvent is emitted once per ledger write.
type StockMovementAppliedEvent struct {
	LedgerEntryID  uuid.UUID           `json:"ledger_entry_id"`
	SkuID          uuid.UUID           `json:"sku_id"`
	FromLocationID *uuid.UUID          `json:"from_location_id,omitempty"`
	ToLocationID   *uuid.UUID          `json:"to_location_id,omitempty"`
	QtyDelta       int                 `json:"qty_delta"`
	OperationType  enums.OperationType `json:"operation_type"`
	TaskID         *uuid.UUID          `json:"task_id,omitempty"`
	OrderID        *uuid.UUID          `json:"order_id,omitempty"`
}

// TaskAssignedEvent signals an employee took over a task.
type TaskAssignedEvent struct {
	TaskID     uuid.UUID  `json:"task_id"`
	EmployeeID uuid.UUID  `json:"employee_id"`
	ChariotID  *uuid.UUID `json:"chariot_id,omitempty"`
}

// TaskStatusChangedEvent reports a state machine transition.
type TaskStatusChangedEvent struct {
	TaskID uuid.UUID        `json:"task_id"`
	From   enums.TaskStatus `json:"from"`
	To     enums.TaskStatus `json:"to"`
	Reason string           `json:"reason,omitempty"`
}

// TaskValidatedEvent reports a supervisor validation flag change.
type TaskValidatedEvent struct {
	TaskID    uuid.UUID `json:"task_id"`
	Validated bool      `json:"validated"`
}

// DecisionRecordedEvent is emitted when a recommendation gets its verdict.
type DecisionRecordedEvent struct {
	RecommendationID   uuid.UUID                `json:"recommendation_id"`
	DecisionID         uuid.UUID                `json:"decision_id"`
	RecommendationType enums.RecommendationType `json:"recommendation_type"`
	Status             enums.OverrideStatus     `json:"status"`
	DecidedAt          time.Time                `json:"decided_at"`
}

// OrderStatusChangedEvent reports a supervisor forcing an order state.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// DeliveryStateChangedEvent reports a supervisor forcing a delivery state.
type DeliveryStateChangedEvent struct {
	DeliveryID int64                `json:"delivery_id"`
	From       enums.DeliveryStatus `json:"from"`
	To         enums.DeliveryStatus `json:"to"`
}

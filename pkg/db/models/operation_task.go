package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/pkg/enums"
)

// OperationTask is a unit of warehouse work moving through the task state
// machine. Validated flips only through an explicit supervisor action.
type OperationTask struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OperationType    enums.OperationType `gorm:"column:operation_type;type:operation_type_enum;not null"`
	Status           enums.TaskStatus    `gorm:"column:status;type:task_status_enum;not null;default:'PENDING'"`
	Validated        bool                `gorm:"column:validated;not null;default:false"`
	AssignedToUserID *uuid.UUID          `gorm:"column:assigned_to_user_id;type:uuid"`
	ChariotID        *uuid.UUID          `gorm:"column:chariot_id;type:uuid"`
	OrderID          *uuid.UUID          `gorm:"column:order_id;type:uuid"`
	DeliveryID       *int64              `gorm:"column:delivery_id"`
	PlannedRouteID   *uuid.UUID          `gorm:"column:planned_route_id;type:uuid"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt      *time.Time          `gorm:"column:completed_at"`
}

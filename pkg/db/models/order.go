package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/pkg/enums"
)

// Order is a customer order flowing through preparation.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'DRAFT'"`
	ValidatedBy *uuid.UUID        `gorm:"column:validated_by;type:uuid"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

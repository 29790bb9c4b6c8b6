package models

import (
	"time"

	"github.com/novagile/wareflow-backend/pkg/enums"
)

// Delivery is an outbound tour. Deliveries keep a sequential key because the
// dispatch hardware addresses them by number, not UUID.
type Delivery struct {
	DeliveryID int64                `gorm:"column:delivery_id;primaryKey;autoIncrement"`
	Status     enums.DeliveryStatus `gorm:"column:status;type:delivery_status_enum;not null;default:'IDLE'"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Delivery) TableName() string { return "deliveries" }

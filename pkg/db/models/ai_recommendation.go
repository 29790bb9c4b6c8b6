package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/pkg/enums"
)

// AIRecommendation is a machine-generated proposal awaiting a human decision.
// Payload is opaque to the core; its shape depends on Type.
type AIRecommendation struct {
	ID         uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type       enums.RecommendationType `gorm:"column:type;type:recommendation_type_enum;not null"`
	Payload    json.RawMessage          `gorm:"column:payload;type:jsonb;not null"`
	OrderID    *uuid.UUID               `gorm:"column:order_id;type:uuid"`
	TaskID     *uuid.UUID               `gorm:"column:task_id;type:uuid"`
	DeliveryID *int64                   `gorm:"column:delivery_id"`
	CreatedAt  time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (AIRecommendation) TableName() string { return "ai_recommendations" }

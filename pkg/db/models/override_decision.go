package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/pkg/enums"
)

// OverrideDecision is the single human verdict attached to a recommendation.
// FinalPayload is what the system acts on, whether approved or overridden.
type OverrideDecision struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecommendationID uuid.UUID            `gorm:"column:recommendation_id;type:uuid;not null;uniqueIndex:ux_override_decisions_recommendation_id"`
	Status           enums.OverrideStatus `gorm:"column:status;type:override_status_enum;not null"`
	DecidedByUserID  uuid.UUID            `gorm:"column:decided_by_user_id;type:uuid;not null"`
	Justification    string               `gorm:"column:justification;not null"`
	FinalPayload     json.RawMessage      `gorm:"column:final_payload;type:jsonb;not null"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

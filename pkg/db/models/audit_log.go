package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is an append-only trace of who did what to which entity.
// EntityID is a string so non-UUID keys (delivery sequence IDs) fit too.
type AuditLog struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Ts          time.Time       `gorm:"column:ts;autoCreateTime"`
	ActorUserID *uuid.UUID      `gorm:"column:actor_user_id;type:uuid"`
	ActionType  string          `gorm:"column:action_type;not null"`
	EntityType  string          `gorm:"column:entity_type;not null"`
	EntityID    string          `gorm:"column:entity_id;not null"`
	Details     json.RawMessage `gorm:"column:details;type:jsonb"`
}

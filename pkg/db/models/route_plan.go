package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoutePlan stores a materialized pick route. PathNodes is the ordered list
// of location IDs the route visits.
type RoutePlan struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PathNodes           json.RawMessage `gorm:"column:path_nodes;type:jsonb;not null"`
	TotalDistanceMeters decimal.Decimal `gorm:"column:total_distance_meters;type:numeric(12,3);not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
}

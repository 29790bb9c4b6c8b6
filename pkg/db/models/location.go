package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/pkg/enums"
)

// Location is a physical slot in the warehouse.
type Location struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code      string             `gorm:"column:code;not null;uniqueIndex:ux_locations_code"`
	Type      enums.LocationType `gorm:"column:type;type:location_type_enum;not null"`
	Active    bool               `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}

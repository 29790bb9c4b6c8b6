package models

import (
	"time"

	"github.com/google/uuid"
)

// Chariot is a picking cart assignable to tasks.
type Chariot struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code      string    `gorm:"column:code;not null;uniqueIndex:ux_chariots_code"`
	Capacity  *int      `gorm:"column:capacity"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/pkg/enums"
)

// User is a warehouse operator, supervisor or admin.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	Email     string         `gorm:"column:email;not null;uniqueIndex:ux_users_email"`
	Role      enums.UserRole `gorm:"column:role;type:user_role_enum;not null"`
	Active    bool           `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// SKU is a stock-keeping unit in the catalog.
type SKU struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SkuCode     string    `gorm:"column:sku_code;not null;uniqueIndex:ux_skus_sku_code"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SKU) TableName() string { return "skus" }

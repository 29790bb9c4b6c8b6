package models

import (
	"time"

	"github.com/google/uuid"
)

// StockBalance tracks the current quantity of a SKU at a location. Version
// is the optimistic-concurrency counter bumped on every write.
type StockBalance struct {
	SkuID      uuid.UUID `gorm:"column:sku_id;type:uuid;primaryKey"`
	LocationID uuid.UUID `gorm:"column:location_id;type:uuid;primaryKey"`
	Qty        int       `gorm:"column:qty;not null;default:0"`
	Version    int       `gorm:"column:version;not null;default:0"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

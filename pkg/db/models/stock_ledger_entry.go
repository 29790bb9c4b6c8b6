package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/pkg/enums"
)

// StockLedgerEntry records an immutable stock movement. Transfers carry both
// endpoints; receipts have no source and deliveries no destination.
type StockLedgerEntry struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Ts             time.Time           `gorm:"column:ts;autoCreateTime"`
	SkuID          uuid.UUID           `gorm:"column:sku_id;type:uuid;not null"`
	FromLocationID *uuid.UUID          `gorm:"column:from_location_id;type:uuid"`
	ToLocationID   *uuid.UUID          `gorm:"column:to_location_id;type:uuid"`
	QtyDelta       int                 `gorm:"column:qty_delta;not null"`
	OperationType  enums.OperationType `gorm:"column:operation_type;type:operation_type_enum;not null"`
	UserID         *uuid.UUID          `gorm:"column:user_id;type:uuid"`
	OrderID        *uuid.UUID          `gorm:"column:order_id;type:uuid"`
	TaskID         *uuid.UUID          `gorm:"column:task_id;type:uuid"`
	IdempotencyKey *string             `gorm:"column:idempotency_key;uniqueIndex:ux_stock_ledger_idempotency_key"`
}

func (StockLedgerEntry) TableName() string { return "stock_ledger" }

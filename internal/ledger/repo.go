package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	"github.com/novagile/wareflow-backend/pkg/pagination"
)

// BalanceView is a stock balance enriched with catalog data for read paths.
type BalanceView struct {
	SkuID        uuid.UUID          `json:"sku_id"`
	SkuCode      string             `json:"sku_code"`
	SkuName      string             `json:"sku_name"`
	LocationID   uuid.UUID          `json:"location_id"`
	LocationCode string             `json:"location_code"`
	LocationType enums.LocationType `json:"location_type"`
	Qty          int                `json:"qty"`
	Version      int                `json:"version"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// BalanceFilter narrows balance queries.
type BalanceFilter struct {
	SkuID        *uuid.UUID
	LocationID   *uuid.UUID
	LocationType *enums.LocationType
}

// EntryView is one ledger row joined with descriptive sku/location/user data.
type EntryView struct {
	ID               uuid.UUID           `json:"id"`
	Ts               time.Time           `json:"ts"`
	SkuID            uuid.UUID           `json:"sku_id"`
	SkuCode          string              `json:"sku_code"`
	SkuName          string              `json:"sku_name"`
	FromLocationID   *uuid.UUID          `json:"from_location_id"`
	FromLocationCode *string             `json:"from_location_code"`
	ToLocationID     *uuid.UUID          `json:"to_location_id"`
	ToLocationCode   *string             `json:"to_location_code"`
	QtyDelta         int                 `json:"qty_delta"`
	OperationType    enums.OperationType `json:"operation_type"`
	UserID           *uuid.UUID          `json:"user_id"`
	UserName         *string             `json:"user_name"`
	OrderID          *uuid.UUID          `json:"order_id"`
	TaskID           *uuid.UUID          `json:"task_id"`
}

// EntryFilter narrows ledger queries. LocationID matches either endpoint.
type EntryFilter struct {
	SkuID         *uuid.UUID
	LocationID    *uuid.UUID
	OperationType *enums.OperationType
	UserID        *uuid.UUID
	TaskID        *uuid.UUID
	OrderID       *uuid.UUID
	From          *time.Time
	To            *time.Time
}

// Repository manages persistence for stock balances and the movement ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetBalance(ctx context.Context, skuID, locationID uuid.UUID) (*models.StockBalance, error)
	CreateBalance(ctx context.Context, balance *models.StockBalance) error
	// UpdateBalanceCAS bumps qty and version only when the stored version
	// still matches expectedVersion. Returns false when another writer won.
	UpdateBalanceCAS(ctx context.Context, skuID, locationID uuid.UUID, newQty, expectedVersion int) (bool, error)

	SkuExists(ctx context.Context, skuID uuid.UUID) (bool, error)

	CreateEntry(ctx context.Context, entry *models.StockLedgerEntry) error
	GetEntryByIdempotencyKey(ctx context.Context, key string) (*models.StockLedgerEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter, params pagination.Params) ([]EntryView, int64, error)

	ListBalances(ctx context.Context, filter BalanceFilter, params pagination.Params) ([]BalanceView, int64, error)
	SkuBalances(ctx context.Context, skuID uuid.UUID) ([]BalanceView, error)
	LocationBalances(ctx context.Context, locationID uuid.UUID) ([]BalanceView, error)
	TotalStock(ctx context.Context, skuID uuid.UUID) (int, error)
	LowStockBalances(ctx context.Context, threshold int, params pagination.Params) ([]BalanceView, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetBalance(ctx context.Context, skuID, locationID uuid.UUID) (*models.StockBalance, error) {
	var balance models.StockBalance
	err := r.db.WithContext(ctx).
		First(&balance, "sku_id = ? AND location_id = ?", skuID, locationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

func (r *repository) CreateBalance(ctx context.Context, balance *models.StockBalance) error {
	return r.db.WithContext(ctx).Create(balance).Error
}

func (r *repository) UpdateBalanceCAS(ctx context.Context, skuID, locationID uuid.UUID, newQty, expectedVersion int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockBalance{}).
		Where("sku_id = ? AND location_id = ? AND version = ?", skuID, locationID, expectedVersion).
		Updates(map[string]any{
			"qty":     newQty,
			"version": expectedVersion + 1,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.StockLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) GetEntryByIdempotencyKey(ctx context.Context, key string) (*models.StockLedgerEntry, error) {
	var entry models.StockLedgerEntry
	err := r.db.WithContext(ctx).
		First(&entry, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) SkuExists(ctx context.Context, skuID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SKU{}).
		Where("id = ?", skuID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) entryViewQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("stock_ledger AS e").
		Select(`e.id, e.ts, e.sku_id, s.sku_code, s.name AS sku_name,
			e.from_location_id, lf.code AS from_location_code,
			e.to_location_id, lt.code AS to_location_code,
			e.qty_delta, e.operation_type, e.user_id, u.name AS user_name,
			e.order_id, e.task_id`).
		Joins("JOIN skus s ON s.id = e.sku_id").
		Joins("LEFT JOIN locations lf ON lf.id = e.from_location_id").
		Joins("LEFT JOIN locations lt ON lt.id = e.to_location_id").
		Joins("LEFT JOIN users u ON u.id = e.user_id")
}

func (r *repository) ListEntries(ctx context.Context, filter EntryFilter, params pagination.Params) ([]EntryView, int64, error) {
	query := r.entryViewQuery(ctx)

	if filter.SkuID != nil {
		query = query.Where("e.sku_id = ?", *filter.SkuID)
	}
	if filter.LocationID != nil {
		query = query.Where("e.from_location_id = ? OR e.to_location_id = ?", *filter.LocationID, *filter.LocationID)
	}
	if filter.OperationType != nil {
		query = query.Where("e.operation_type = ?", *filter.OperationType)
	}
	if filter.UserID != nil {
		query = query.Where("e.user_id = ?", *filter.UserID)
	}
	if filter.TaskID != nil {
		query = query.Where("e.task_id = ?", *filter.TaskID)
	}
	if filter.OrderID != nil {
		query = query.Where("e.order_id = ?", *filter.OrderID)
	}
	if filter.From != nil {
		query = query.Where("e.ts >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("e.ts <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []EntryView
	err := query.
		Order("e.ts DESC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) balanceViewQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("stock_balances AS sb").
		Select(`sb.sku_id, s.sku_code, s.name AS sku_name,
			sb.location_id, l.code AS location_code, l.type AS location_type,
			sb.qty, sb.version, sb.updated_at`).
		Joins("JOIN skus s ON s.id = sb.sku_id").
		Joins("JOIN locations l ON l.id = sb.location_id")
}

func (r *repository) ListBalances(ctx context.Context, filter BalanceFilter, params pagination.Params) ([]BalanceView, int64, error) {
	query := r.balanceViewQuery(ctx)

	if filter.SkuID != nil {
		query = query.Where("sb.sku_id = ?", *filter.SkuID)
	}
	if filter.LocationID != nil {
		query = query.Where("sb.location_id = ?", *filter.LocationID)
	}
	if filter.LocationType != nil {
		query = query.Where("l.type = ?", *filter.LocationType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []BalanceView
	err := query.
		Order("sb.qty DESC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) SkuBalances(ctx context.Context, skuID uuid.UUID) ([]BalanceView, error) {
	var rows []BalanceView
	err := r.balanceViewQuery(ctx).
		Where("sb.sku_id = ?", skuID).
		Order("sb.qty DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) LocationBalances(ctx context.Context, locationID uuid.UUID) ([]BalanceView, error) {
	var rows []BalanceView
	err := r.balanceViewQuery(ctx).
		Where("sb.location_id = ?", locationID).
		Order("sb.qty DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) TotalStock(ctx context.Context, skuID uuid.UUID) (int, error) {
	var total *int
	err := r.db.WithContext(ctx).
		Model(&models.StockBalance{}).
		Select("SUM(qty)").
		Where("sku_id = ?", skuID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) LowStockBalances(ctx context.Context, threshold int, params pagination.Params) ([]BalanceView, int64, error) {
	query := r.balanceViewQuery(ctx).
		Where("sb.qty > 0 AND sb.qty <= ?", threshold)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []BalanceView
	err := query.
		Order("sb.qty ASC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

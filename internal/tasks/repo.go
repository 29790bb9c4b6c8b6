package tasks

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

// ListFilter narrows task queries.
type ListFilter struct {
	Status           *enums.TaskStatus
	OperationType    *enums.OperationType
	AssignedToUserID *uuid.UUID
	OrderID          *uuid.UUID
	DeliveryID       *int64
	Validated        *bool
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
}

// StatusCount is one row of the status breakdown report.
type StatusCount struct {
	Status enums.TaskStatus `json:"status"`
	Count  int64            `json:"count"`
}

// TypeCount is one row of the operation-type breakdown report.
type TypeCount struct {
	OperationType enums.OperationType `json:"operation_type"`
	Count         int64               `json:"count"`
}

// Repository manages persistence for operation tasks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetByID(ctx context.Context, id uuid.UUID) (*models.OperationTask, error)
	Create(ctx context.Context, task *models.OperationTask) error
	Save(ctx context.Context, task *models.OperationTask) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.OperationTask, int64, error)
	StatusCounts(ctx context.Context) ([]StatusCount, error)
	TypeCounts(ctx context.Context) ([]TypeCount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a task repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.OperationTask, error) {
	var task models.OperationTask
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *repository) Create(ctx context.Context, task *models.OperationTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *repository) Save(ctx context.Context, task *models.OperationTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.OperationTask, int64, error) {
	params = params.Normalize()
	query := r.db.WithContext(ctx).Model(&models.OperationTask{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.OperationType != nil {
		query = query.Where("operation_type = ?", *filter.OperationType)
	}
	if filter.AssignedToUserID != nil {
		query = query.Where("assigned_to_user_id = ?", *filter.AssignedToUserID)
	}
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.DeliveryID != nil {
		query = query.Where("delivery_id = ?", *filter.DeliveryID)
	}
	if filter.Validated != nil {
		query = query.Where("validated = ?", *filter.Validated)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.OperationTask
	err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&models.OperationTask{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) TypeCounts(ctx context.Context) ([]TypeCount, error) {
	var rows []TypeCount
	err := r.db.WithContext(ctx).
		Model(&models.OperationTask{}).
		Select("operation_type, COUNT(*) AS count").
		Group("operation_type").
		Order("operation_type ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

package overrides

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	"github.com/novagile/wareflow-backend/pkg/pagination"
)

// RecommendationFilter narrows recommendation queries. HasDecision filters on
// whether a verdict has been recorded yet.
type RecommendationFilter struct {
	Type        *enums.RecommendationType
	OrderID     *uuid.UUID
	TaskID      *uuid.UUID
	HasDecision *bool
}

// StatusCount is one row of the decision-status breakdown.
type StatusCount struct {
	Status enums.OverrideStatus `json:"status"`
	Count  int64                `json:"count"`
}

// Repository manages persistence for recommendations, decisions, feedback,
// and the entities supervisors may force directly.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateRecommendation(ctx context.Context, rec *models.AIRecommendation) error
	GetRecommendation(ctx context.Context, id uuid.UUID) (*models.AIRecommendation, error)
	ListRecommendations(ctx context.Context, filter RecommendationFilter, params pagination.Params) ([]models.AIRecommendation, int64, error)

	GetDecisionByRecommendation(ctx context.Context, recommendationID uuid.UUID) (*models.OverrideDecision, error)
	CreateDecision(ctx context.Context, decision *models.OverrideDecision) error
	SaveDecision(ctx context.Context, decision *models.OverrideDecision) error
	DecisionStatusCounts(ctx context.Context) ([]StatusCount, error)
	RecentDecisions(ctx context.Context, limit int) ([]models.OverrideDecision, error)
	CountUndecided(ctx context.Context) (int64, error)

	CreateFeedback(ctx context.Context, feedback *models.RecommendationFeedback) error
	ListFeedback(ctx context.Context, recommendationID uuid.UUID, params pagination.Params) ([]models.RecommendationFeedback, int64, error)

	CreateRoutePlan(ctx context.Context, plan *models.RoutePlan) error
	GetRoutePlan(ctx context.Context, id uuid.UUID) (*models.RoutePlan, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error
	GetDelivery(ctx context.Context, id int64) (*models.Delivery, error)
	SaveDelivery(ctx context.Context, delivery *models.Delivery) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an overrides repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRecommendation(ctx context.Context, rec *models.AIRecommendation) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repository) GetRecommendation(ctx context.Context, id uuid.UUID) (*models.AIRecommendation, error) {
	var rec models.AIRecommendation
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) ListRecommendations(ctx context.Context, filter RecommendationFilter, params pagination.Params) ([]models.AIRecommendation, int64, error) {
	params = params.Normalize()
	query := r.db.WithContext(ctx).Model(&models.AIRecommendation{})

	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.TaskID != nil {
		query = query.Where("task_id = ?", *filter.TaskID)
	}
	if filter.HasDecision != nil {
		exists := "EXISTS (SELECT 1 FROM override_decisions WHERE override_decisions.recommendation_id = ai_recommendations.id)"
		if *filter.HasDecision {
			query = query.Where(exists)
		} else {
			query = query.Where("NOT " + exists)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AIRecommendation
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

func (r *repository) GetDecisionByRecommendation(ctx context.Context, recommendationID uuid.UUID) (*models.OverrideDecision, error) {
	var decision models.OverrideDecision
	err := r.db.WithContext(ctx).
		First(&decision, "recommendation_id = ?", recommendationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &decision, nil
}

func (r *repository) CreateDecision(ctx context.Context, decision *models.OverrideDecision) error {
	return r.db.WithContext(ctx).Create(decision).Error
}

func (r *repository) SaveDecision(ctx context.Context, decision *models.OverrideDecision) error {
	return r.db.WithContext(ctx).Save(decision).Error
}

func (r *repository) DecisionStatusCounts(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&models.OverrideDecision{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) RecentDecisions(ctx context.Context, limit int) ([]models.OverrideDecision, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.OverrideDecision
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountUndecided(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AIRecommendation{}).
		Where("NOT EXISTS (SELECT 1 FROM override_decisions WHERE override_decisions.recommendation_id = ai_recommendations.id)").
		Count(&count).Error
	return count, err
}

func (r *repository) CreateFeedback(ctx context.Context, feedback *models.RecommendationFeedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

func (r *repository) ListFeedback(ctx context.Context, recommendationID uuid.UUID, params pagination.Params) ([]models.RecommendationFeedback, int64, error) {
	params = params.Normalize()
	query := r.db.WithContext(ctx).
		Model(&models.RecommendationFeedback{}).
		Where("recommendation_id = ?", recommendationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.RecommendationFeedback
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

func (r *repository) CreateRoutePlan(ctx context.Context, plan *models.RoutePlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) GetRoutePlan(ctx context.Context, id uuid.UUID) (*models.RoutePlan, error) {
	var plan models.RoutePlan
	if err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) SaveOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) GetDelivery(ctx context.Context, id int64) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).First(&delivery, "delivery_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) SaveDelivery(ctx context.Context, delivery *models.Delivery) error {
	return r.db.WithContext(ctx).Save(delivery).Error
}

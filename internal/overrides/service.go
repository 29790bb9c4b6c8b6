package overrides

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/novagile/wareflow-backend/internal/audit"
	"github.com/novagile/wareflow-backend/internal/tasks"
	"github.com/novagile/wareflow-backend/internal/users"
	dbpkg "github.com/novagile/wareflow-backend/pkg/db"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	"github.com/novagile/wareflow-backend/pkg/errors"
	"github.com/novagile/wareflow-backend/pkg/logger"
	"github.com/novagile/wareflow-backend/pkg/outbox"
	"github.com/novagile/wareflow-backend/pkg/pagination"
)

const (
	decisionConstraint     = "ux_override_decisions_recommendation_id"
	approvedJustification  = "Approved as-is"
	defaultRecentDecisions = 10
)

// FeedbackInput is a reviewer reward signal. Reward must be exactly +1 or -1.
type FeedbackInput struct {
	Reward  int     `json:"reward"`
	Comment *string `json:"comment"`
}

// CreateRecommendationInput registers a machine-generated proposal.
type CreateRecommendationInput struct {
	Type       enums.RecommendationType `json:"type"`
	Payload    json.RawMessage          `json:"payload"`
	OrderID    *uuid.UUID               `json:"order_id"`
	TaskID     *uuid.UUID               `json:"task_id"`
	DeliveryID *int64                   `json:"delivery_id"`
}

// ApproveInput accepts a recommendation unchanged.
type ApproveInput struct {
	ActorUserID      uuid.UUID      `json:"actor_user_id"`
	RecommendationID uuid.UUID      `json:"recommendation_id"`
	Feedback         *FeedbackInput `json:"feedback"`
}

// OverrideInput replaces a recommendation's payload with an edited one.
type OverrideInput struct {
	ActorUserID      uuid.UUID       `json:"actor_user_id"`
	RecommendationID uuid.UUID       `json:"recommendation_id"`
	EditedPayload    json.RawMessage `json:"edited_payload"`
	Justification    string          `json:"justification"`
	Feedback         *FeedbackInput  `json:"feedback"`
}

// TaskStatusOverrideInput forces a task status outside the normal lifecycle.
type TaskStatusOverrideInput struct {
	ActorUserID   uuid.UUID        `json:"actor_user_id"`
	TaskID        uuid.UUID        `json:"task_id"`
	Status        enums.TaskStatus `json:"status"`
	Justification string           `json:"justification"`
}

// OrderStatusOverrideInput forces an order status.
type OrderStatusOverrideInput struct {
	ActorUserID   uuid.UUID         `json:"actor_user_id"`
	OrderID       uuid.UUID         `json:"order_id"`
	Status        enums.OrderStatus `json:"status"`
	Justification string            `json:"justification"`
}

// DeliveryStatusOverrideInput forces a delivery status.
type DeliveryStatusOverrideInput struct {
	ActorUserID   uuid.UUID            `json:"actor_user_id"`
	DeliveryID    int64                `json:"delivery_id"`
	Status        enums.DeliveryStatus `json:"status"`
	Justification string               `json:"justification"`
}

// RecommendationDetail pairs a recommendation with its decision, if any.
type RecommendationDetail struct {
	Recommendation models.AIRecommendation  `json:"recommendation"`
	Decision       *models.OverrideDecision `json:"decision,omitempty"`
}

// Summary reports the decision pipeline state for dashboards.
type Summary struct {
	Undecided int64         `json:"undecided"`
	ByStatus  []StatusCount `json:"by_status"`
}

// Service is the AI recommendation override pipeline. It is the only writer
// allowed to trigger ledger or task side effects on behalf of a
// recommendation.
type Service interface {
	CreateRecommendation(ctx context.Context, input CreateRecommendationInput) (*models.AIRecommendation, error)
	GetRecommendation(ctx context.Context, id uuid.UUID) (*RecommendationDetail, error)
	ListRecommendations(ctx context.Context, filter RecommendationFilter, params pagination.Params) (pagination.Page[models.AIRecommendation], error)

	Approve(ctx context.Context, input ApproveInput) (*models.OverrideDecision, error)
	Override(ctx context.Context, input OverrideInput) (*models.OverrideDecision, error)
	EditOverride(ctx context.Context, input OverrideInput) (*models.OverrideDecision, error)

	SubmitFeedback(ctx context.Context, actorUserID, recommendationID uuid.UUID, input FeedbackInput) (*models.RecommendationFeedback, error)
	FeedbackHistory(ctx context.Context, recommendationID uuid.UUID, params pagination.Params) (pagination.Page[models.RecommendationFeedback], error)
	GetSummary(ctx context.Context) (*Summary, error)
	RecentDecisions(ctx context.Context, limit int) ([]models.OverrideDecision, error)

	OverrideTaskStatus(ctx context.Context, input TaskStatusOverrideInput) (*models.OperationTask, error)
	OverrideOrderStatus(ctx context.Context, input OrderStatusOverrideInput) (*models.Order, error)
	OverrideDeliveryStatus(ctx context.Context, input DeliveryStatusOverrideInput) (*models.Delivery, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   Repository
	tasks  tasks.Repository
	tx     txRunner
	users  users.Service
	audit  audit.Service
	outbox *outbox.Service
	logg   *logger.Logger
}

// NewService wires the override pipeline with its collaborators.
func NewService(repo Repository, taskRepo tasks.Repository, tx txRunner, usersSvc users.Service, auditSvc audit.Service, outboxSvc *outbox.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("overrides repository required")
	}
	if taskRepo == nil {
		return nil, fmt.Errorf("task repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if usersSvc == nil {
		return nil, fmt.Errorf("users service required")
	}
	return &service{
		repo:   repo,
		tasks:  taskRepo,
		tx:     tx,
		users:  usersSvc,
		audit:  auditSvc,
		outbox: outboxSvc,
		logg:   logg,
	}, nil
}

func (s *service) CreateRecommendation(ctx context.Context, input CreateRecommendationInput) (*models.AIRecommendation, error) {
	if !input.Type.IsValid() {
		return nil, errors.New(errors.CodeValidation,
			fmt.Sprintf("unknown recommendation type %q", input.Type))
	}
	if _, err := decodePayload(input.Type, input.Payload); err != nil {
		return nil, err
	}

	rec := &models.AIRecommendation{
		ID:         uuid.New(),
		Type:       input.Type,
		Payload:    input.Payload,
		OrderID:    input.OrderID,
		TaskID:     input.TaskID,
		DeliveryID: input.DeliveryID,
	}
	if err := s.repo.CreateRecommendation(ctx, rec); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "creating recommendation")
	}
	return rec, nil
}

func (s *service) GetRecommendation(ctx context.Context, id uuid.UUID) (*RecommendationDetail, error) {
	rec, err := s.loadRecommendation(ctx, id)
	if err != nil {
		return nil, err
	}
	decision, err := s.repo.GetDecisionByRecommendation(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading decision")
	}
	return &RecommendationDetail{Recommendation: *rec, Decision: decision}, nil
}

func (s *service) ListRecommendations(ctx context.Context, filter RecommendationFilter, params pagination.Params) (pagination.Page[models.AIRecommendation], error) {
	rows, total, err := s.repo.ListRecommendations(ctx, filter, params)
	if err != nil {
		return pagination.Page[models.AIRecommendation]{}, errors.Wrap(errors.CodeInternal, err, "listing recommendations")
	}
	return pagination.NewPage(rows, total, params), nil
}

func (s *service) Approve(ctx context.Context, input ApproveInput) (*models.OverrideDecision, error) {
	if input.RecommendationID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "recommendation id is required")
	}
	if err := s.requireAdmin(ctx, input.ActorUserID); err != nil {
		return nil, err
	}
	if err := validateFeedback(input.Feedback); err != nil {
		return nil, err
	}

	rec, err := s.loadRecommendation(ctx, input.RecommendationID)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetDecisionByRecommendation(ctx, rec.ID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading decision")
	}
	if existing != nil {
		return nil, errors.New(errors.CodeAlreadyDecided,
			fmt.Sprintf("recommendation %s already has a decision; use the edit operation", rec.ID))
	}

	payload, err := decodePayload(rec.Type, rec.Payload)
	if err != nil {
		return nil, err
	}

	decision := &models.OverrideDecision{
		ID:               uuid.New(),
		RecommendationID: rec.ID,
		Status:           enums.OverrideStatusApprovedAsIs,
		DecidedByUserID:  input.ActorUserID,
		Justification:    approvedJustification,
		FinalPayload:     rec.Payload,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateDecision(ctx, decision); err != nil {
			if dbpkg.IsUniqueViolation(err, decisionConstraint) {
				return errors.New(errors.CodeAlreadyDecided,
					fmt.Sprintf("recommendation %s was decided concurrently", rec.ID))
			}
			return errors.Wrap(errors.CodeInternal, err, "creating decision")
		}
		if err := s.storeFeedback(ctx, repo, rec.ID, input.ActorUserID, input.Feedback); err != nil {
			return err
		}
		s.record(ctx, tx, audit.Entry{
			ActorUserID: &input.ActorUserID,
			ActionType:  audit.ActionRecommendationApproved,
			EntityType:  audit.EntityRecommendation,
			EntityID:    rec.ID.String(),
			Details: map[string]any{
				"decision_id": decision.ID,
				"type":        rec.Type,
			},
		})
		return s.emitDecision(ctx, tx, input.ActorUserID, enums.EventDecisionRecorded, rec, decision)
	})
	if err != nil {
		return nil, err
	}

	s.applySideEffects(ctx, rec, decision, payload)
	s.info(ctx, rec.ID, "recommendation approved")
	return decision, nil
}

func (s *service) Override(ctx context.Context, input OverrideInput) (*models.OverrideDecision, error) {
	return s.decide(ctx, input, false)
}

func (s *service) EditOverride(ctx context.Context, input OverrideInput) (*models.OverrideDecision, error) {
	return s.decide(ctx, input, true)
}

// decide is the shared override/edit path. requireExisting distinguishes a
// first override from a revision at the API boundary.
func (s *service) decide(ctx context.Context, input OverrideInput, requireExisting bool) (*models.OverrideDecision, error) {
	if input.RecommendationID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "recommendation id is required")
	}
	if input.Justification == "" {
		return nil, errors.New(errors.CodeValidation, "a justification is required to override a recommendation")
	}
	if err := s.requireAdmin(ctx, input.ActorUserID); err != nil {
		return nil, err
	}
	if err := validateFeedback(input.Feedback); err != nil {
		return nil, err
	}

	rec, err := s.loadRecommendation(ctx, input.RecommendationID)
	if err != nil {
		return nil, err
	}
	payload, err := decodePayload(rec.Type, input.EditedPayload)
	if err != nil {
		return nil, err
	}
	if err := s.guardLinkedTask(ctx, rec); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetDecisionByRecommendation(ctx, rec.ID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading decision")
	}
	if requireExisting && existing == nil {
		return nil, errors.New(errors.CodeNoDecision,
			fmt.Sprintf("recommendation %s has no decision to edit", rec.ID))
	}

	action := audit.ActionRecommendationOverride
	eventType := enums.EventDecisionRecorded
	var before json.RawMessage
	if existing != nil {
		before = existing.FinalPayload
		eventType = enums.EventDecisionRevised
		if requireExisting {
			action = audit.ActionOverrideEdited
		}
	} else {
		before = rec.Payload
	}

	var decision *models.OverrideDecision
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if existing == nil {
			decision = &models.OverrideDecision{
				ID:               uuid.New(),
				RecommendationID: rec.ID,
				Status:           enums.OverrideStatusOverridden,
				DecidedByUserID:  input.ActorUserID,
				Justification:    input.Justification,
				FinalPayload:     input.EditedPayload,
			}
			if err := repo.CreateDecision(ctx, decision); err != nil {
				if dbpkg.IsUniqueViolation(err, decisionConstraint) {
					return errors.New(errors.CodeAlreadyDecided,
						fmt.Sprintf("recommendation %s was decided concurrently", rec.ID))
				}
				return errors.Wrap(errors.CodeInternal, err, "creating decision")
			}
		} else {
			decision = existing
			decision.Status = enums.OverrideStatusOverridden
			decision.DecidedByUserID = input.ActorUserID
			decision.Justification = input.Justification
			decision.FinalPayload = input.EditedPayload
			if err := repo.SaveDecision(ctx, decision); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "updating decision")
			}
		}
		if err := s.storeFeedback(ctx, repo, rec.ID, input.ActorUserID, input.Feedback); err != nil {
			return err
		}
		s.record(ctx, tx, audit.Entry{
			ActorUserID: &input.ActorUserID,
			ActionType:  action,
			EntityType:  audit.EntityRecommendation,
			EntityID:    rec.ID.String(),
			Details: map[string]any{
				"decision_id":    decision.ID,
				"type":           rec.Type,
				"justification":  input.Justification,
				"payload_before": before,
				"payload_after":  input.EditedPayload,
			},
		})
		return s.emitDecision(ctx, tx, input.ActorUserID, eventType, rec, decision)
	})
	if err != nil {
		return nil, err
	}

	s.applySideEffects(ctx, rec, decision, payload)
	s.info(ctx, rec.ID, "recommendation overridden")
	return decision, nil
}

func (s *service) SubmitFeedback(ctx context.Context, actorUserID, recommendationID uuid.UUID, input FeedbackInput) (*models.RecommendationFeedback, error) {
	if recommendationID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "recommendation id is required")
	}
	if err := s.requireReviewer(ctx, actorUserID); err != nil {
		return nil, err
	}
	if err := validateFeedback(&input); err != nil {
		return nil, err
	}
	if _, err := s.loadRecommendation(ctx, recommendationID); err != nil {
		return nil, err
	}

	feedback := &models.RecommendationFeedback{
		ID:               uuid.New(),
		RecommendationID: recommendationID,
		ReviewerUserID:   actorUserID,
		Reward:           input.Reward,
		Comment:          input.Comment,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateFeedback(ctx, feedback); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "storing feedback")
		}
		s.record(ctx, tx, audit.Entry{
			ActorUserID: &actorUserID,
			ActionType:  audit.ActionFeedbackSubmitted,
			EntityType:  audit.EntityRecommendation,
			EntityID:    recommendationID.String(),
			Details:     map[string]any{"reward": input.Reward},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return feedback, nil
}

func (s *service) FeedbackHistory(ctx context.Context, recommendationID uuid.UUID, params pagination.Params) (pagination.Page[models.RecommendationFeedback], error) {
	if recommendationID == uuid.Nil {
		return pagination.Page[models.RecommendationFeedback]{}, errors.New(errors.CodeValidation, "recommendation id is required")
	}
	rows, total, err := s.repo.ListFeedback(ctx, recommendationID, params)
	if err != nil {
		return pagination.Page[models.RecommendationFeedback]{}, errors.Wrap(errors.CodeInternal, err, "listing feedback")
	}
	return pagination.NewPage(rows, total, params), nil
}

func (s *service) GetSummary(ctx context.Context) (*Summary, error) {
	undecided, err := s.repo.CountUndecided(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting undecided recommendations")
	}
	byStatus, err := s.repo.DecisionStatusCounts(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting decisions")
	}
	return &Summary{Undecided: undecided, ByStatus: byStatus}, nil
}

func (s *service) RecentDecisions(ctx context.Context, limit int) ([]models.OverrideDecision, error) {
	if limit <= 0 {
		limit = defaultRecentDecisions
	}
	rows, err := s.repo.RecentDecisions(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing recent decisions")
	}
	return rows, nil
}

func (s *service) OverrideTaskStatus(ctx context.Context, input TaskStatusOverrideInput) (*models.OperationTask, error) {
	if input.TaskID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "task id is required")
	}
	if !input.Status.IsValid() {
		return nil, errors.New(errors.CodeValidation,
			fmt.Sprintf("unknown task status %q", input.Status))
	}
	if input.Justification == "" {
		return nil, errors.New(errors.CodeValidation, "a justification is required to force a task status")
	}
	if err := s.requireAdmin(ctx, input.ActorUserID); err != nil {
		return nil, err
	}

	var task *models.OperationTask
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		taskRepo := s.tasks.WithTx(tx)
		var err error
		task, err = taskRepo.GetByID(ctx, input.TaskID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "loading task")
		}
		if task == nil {
			return errors.New(errors.CodeNotFound, fmt.Sprintf("task %s not found", input.TaskID))
		}
		if task.Status == enums.TaskStatusDone {
			return errors.New(errors.CodeStateConflict, "a completed task cannot be overridden")
		}

		before := snapshotTask(task)
		from := task.Status
		task.Status = input.Status
		if input.Status == enums.TaskStatusDone {
			now := time.Now()
			task.CompletedAt = &now
		}
		if err := taskRepo.Save(ctx, task); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "saving task override")
		}

		s.record(ctx, tx, audit.Entry{
			ActorUserID: &input.ActorUserID,
			ActionType:  audit.ActionTaskOverride,
			EntityType:  audit.EntityTask,
			EntityID:    task.ID.String(),
			Details: map[string]any{
				"justification": input.Justification,
				"before":        before,
				"after":         snapshotTask(task),
			},
		})
		return s.emit(ctx, tx, input.ActorUserID, outbox.DomainEvent{
			EventType:     enums.EventTaskStatusChanged,
			AggregateType: enums.AggregateOperationTask,
			AggregateID:   task.ID.String(),
			Data: outbox.TaskStatusChangedEvent{
				TaskID: task.ID,
				From:   from,
				To:     task.Status,
				Reason: input.Justification,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *service) OverrideOrderStatus(ctx context.Context, input OrderStatusOverrideInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "order id is required")
	}
	if !input.Status.IsValid() {
		return nil, errors.New(errors.CodeValidation,
			fmt.Sprintf("unknown order status %q", input.Status))
	}
	if input.Justification == "" {
		return nil, errors.New(errors.CodeValidation, "a justification is required to force an order status")
	}
	if err := s.requireAdmin(ctx, input.ActorUserID); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.GetOrder(ctx, input.OrderID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "loading order")
		}
		if order == nil {
			return errors.New(errors.CodeNotFound, fmt.Sprintf("order %s not found", input.OrderID))
		}

		from := order.Status
		order.Status = input.Status
		if err := repo.SaveOrder(ctx, order); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "saving order override")
		}

		s.record(ctx, tx, audit.Entry{
			ActorUserID: &input.ActorUserID,
			ActionType:  audit.ActionOrderOverride,
			EntityType:  audit.EntityOrder,
			EntityID:    order.ID.String(),
			Details: map[string]any{
				"justification": input.Justification,
				"before":        map[string]any{"status": from},
				"after":         map[string]any{"status": order.Status},
			},
		})
		return s.emit(ctx, tx, input.ActorUserID, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Data: outbox.OrderStatusChangedEvent{
				OrderID: order.ID,
				From:    from,
				To:      order.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) OverrideDeliveryStatus(ctx context.Context, input DeliveryStatusOverrideInput) (*models.Delivery, error) {
	if input.DeliveryID <= 0 {
		return nil, errors.New(errors.CodeValidation, "delivery id is required")
	}
	if !input.Status.IsValid() {
		return nil, errors.New(errors.CodeValidation,
			fmt.Sprintf("unknown delivery status %q", input.Status))
	}
	if input.Justification == "" {
		return nil, errors.New(errors.CodeValidation, "a justification is required to force a delivery status")
	}
	if err := s.requireAdmin(ctx, input.ActorUserID); err != nil {
		return nil, err
	}

	var delivery *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		delivery, err = repo.GetDelivery(ctx, input.DeliveryID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "loading delivery")
		}
		if delivery == nil {
			return errors.New(errors.CodeNotFound, fmt.Sprintf("delivery %d not found", input.DeliveryID))
		}

		from := delivery.Status
		delivery.Status = input.Status
		if err := repo.SaveDelivery(ctx, delivery); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "saving delivery override")
		}

		s.record(ctx, tx, audit.Entry{
			ActorUserID: &input.ActorUserID,
			ActionType:  audit.ActionDeliveryOverride,
			EntityType:  audit.EntityDelivery,
			EntityID:    fmt.Sprintf("%d", delivery.DeliveryID),
			Details: map[string]any{
				"justification": input.Justification,
				"before":        map[string]any{"status": from},
				"after":         map[string]any{"status": delivery.Status},
			},
		})
		return s.emit(ctx, tx, input.ActorUserID, outbox.DomainEvent{
			EventType:     enums.EventDeliveryStateChanged,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   fmt.Sprintf("%d", delivery.DeliveryID),
			Data: outbox.DeliveryStateChangedEvent{
				DeliveryID: delivery.DeliveryID,
				From:       from,
				To:         delivery.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// applySideEffects materializes the operational consequence of a decision.
// Best-effort: the decision row is the source of truth, so failures here are
// logged and never fail the decision.
func (s *service) applySideEffects(ctx context.Context, rec *models.AIRecommendation, decision *models.OverrideDecision, payload any) {
	switch p := payload.(type) {
	case *PickRoutePayload:
		s.materializeRoute(ctx, rec, decision, p)
	default:
		// STORAGE_ASSIGNMENT and FORECAST are advisory; the decision row
		// itself is the durable record.
	}
}

func (s *service) materializeRoute(ctx context.Context, rec *models.AIRecommendation, decision *models.OverrideDecision, payload *PickRoutePayload) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		nodes, err := json.Marshal(payload.PathNodes)
		if err != nil {
			return err
		}
		plan := &models.RoutePlan{
			ID:                  uuid.New(),
			PathNodes:           nodes,
			TotalDistanceMeters: payload.TotalDistanceMeters,
		}
		if err := repo.CreateRoutePlan(ctx, plan); err != nil {
			return err
		}

		if rec.TaskID != nil {
			taskRepo := s.tasks.WithTx(tx)
			task, err := taskRepo.GetByID(ctx, *rec.TaskID)
			if err != nil {
				return err
			}
			if task != nil && !task.Status.IsTerminal() {
				task.PlannedRouteID = &plan.ID
				if err := taskRepo.Save(ctx, task); err != nil {
					return err
				}
			}
		}

		s.record(ctx, tx, audit.Entry{
			ActorUserID: &decision.DecidedByUserID,
			ActionType:  audit.ActionRoutePlanMaterialized,
			EntityType:  audit.EntityRoutePlan,
			EntityID:    plan.ID.String(),
			Details: map[string]any{
				"recommendation_id": rec.ID,
				"decision_id":       decision.ID,
				"task_id":           rec.TaskID,
				"node_count":        len(payload.PathNodes),
			},
		})
		return nil
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "route plan materialization failed", err)
	}
}

// guardLinkedTask rejects overrides of recommendations whose task already
// completed; the decision would be meaningless.
func (s *service) guardLinkedTask(ctx context.Context, rec *models.AIRecommendation) error {
	if rec.TaskID == nil {
		return nil
	}
	task, err := s.tasks.GetByID(ctx, *rec.TaskID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "loading linked task")
	}
	if task != nil && task.Status == enums.TaskStatusDone {
		return errors.New(errors.CodeStateConflict,
			fmt.Sprintf("task %s is already done; overriding its recommendation is not allowed", task.ID))
	}
	return nil
}

func (s *service) storeFeedback(ctx context.Context, repo Repository, recommendationID, reviewerID uuid.UUID, input *FeedbackInput) error {
	if input == nil {
		return nil
	}
	feedback := &models.RecommendationFeedback{
		ID:               uuid.New(),
		RecommendationID: recommendationID,
		ReviewerUserID:   reviewerID,
		Reward:           input.Reward,
		Comment:          input.Comment,
	}
	if err := repo.CreateFeedback(ctx, feedback); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "storing feedback")
	}
	return nil
}

func (s *service) loadRecommendation(ctx context.Context, id uuid.UUID) (*models.AIRecommendation, error) {
	if id == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "recommendation id is required")
	}
	rec, err := s.repo.GetRecommendation(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading recommendation")
	}
	if rec == nil {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("recommendation %s not found", id))
	}
	return rec, nil
}

// requireAdmin re-reads the caller's persisted role; cached roles go stale.
func (s *service) requireAdmin(ctx context.Context, actorUserID uuid.UUID) error {
	if actorUserID == uuid.Nil {
		return errors.New(errors.CodeValidation, "actor user id is required")
	}
	role, err := s.users.GetRole(ctx, actorUserID)
	if err != nil {
		return err
	}
	if role != enums.UserRoleAdmin {
		return errors.New(errors.CodeForbidden,
			fmt.Sprintf("role %s may not decide recommendations", role))
	}
	return nil
}

func (s *service) requireReviewer(ctx context.Context, actorUserID uuid.UUID) error {
	if actorUserID == uuid.Nil {
		return errors.New(errors.CodeValidation, "actor user id is required")
	}
	role, err := s.users.GetRole(ctx, actorUserID)
	if err != nil {
		return err
	}
	if role != enums.UserRoleAdmin && role != enums.UserRoleSupervisor {
		return errors.New(errors.CodeForbidden,
			fmt.Sprintf("role %s may not submit recommendation feedback", role))
	}
	return nil
}

func validateFeedback(input *FeedbackInput) error {
	if input == nil {
		return nil
	}
	if input.Reward != 1 && input.Reward != -1 {
		return errors.New(errors.CodeValidation, "feedback reward must be +1 or -1")
	}
	return nil
}

func (s *service) emitDecision(ctx context.Context, tx *gorm.DB, actorUserID uuid.UUID, eventType enums.OutboxEventType, rec *models.AIRecommendation, decision *models.OverrideDecision) error {
	return s.emit(ctx, tx, actorUserID, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateRecommendation,
		AggregateID:   rec.ID.String(),
		Data: outbox.DecisionRecordedEvent{
			RecommendationID:   rec.ID,
			DecisionID:         decision.ID,
			RecommendationType: rec.Type,
			Status:             decision.Status,
			DecidedAt:          time.Now(),
		},
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actorUserID uuid.UUID, event outbox.DomainEvent) error {
	if s.outbox == nil {
		return nil
	}
	event.Actor = &outbox.ActorRef{UserID: actorUserID}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "queueing decision event")
	}
	return nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	s.audit.RecordTx(ctx, tx, entry)
}

func snapshotTask(task *models.OperationTask) map[string]any {
	return map[string]any{
		"status":              task.Status,
		"validated":           task.Validated,
		"assigned_to_user_id": task.AssignedToUserID,
		"planned_route_id":    task.PlannedRouteID,
	}
}

func (s *service) info(ctx context.Context, recommendationID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"recommendation_id": recommendationID}), msg)
}

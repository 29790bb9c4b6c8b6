package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/api/responses"
	"github.com/novagile/wareflow-backend/api/validators"
	"github.com/novagile/wareflow-backend/internal/overrides"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	pkgerrors "github.com/novagile/wareflow-backend/pkg/errors"
	"github.com/novagile/wareflow-backend/pkg/logger"
)

type recommendationCreateRequest struct {
	Type       string          `json:"type" validate:"required"`
	Payload    json.RawMessage `json:"payload" validate:"required"`
	OrderID    *string         `json:"order_id"`
	TaskID     *string         `json:"task_id"`
	DeliveryID *int64          `json:"delivery_id"`
}

func (req recommendationCreateRequest) toInput() (overrides.CreateRecommendationInput, error) {
	recType, err := enums.ParseRecommendationType(strings.TrimSpace(req.Type))
	if err != nil {
		return overrides.CreateRecommendationInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid recommendation type")
	}

	orderID, err := parseOptionalUUID(req.OrderID, "order_id")
	if err != nil {
		return overrides.CreateRecommendationInput{}, err
	}
	taskID, err := parseOptionalUUID(req.TaskID, "task_id")
	if err != nil {
		return overrides.CreateRecommendationInput{}, err
	}

	return overrides.CreateRecommendationInput{
		Type:       recType,
		Payload:    req.Payload,
		OrderID:    orderID,
		TaskID:     taskID,
		DeliveryID: req.DeliveryID,
	}, nil
}

// RecommendationCreate registers a machine-generated proposal for review.
func RecommendationCreate(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		var payload recommendationCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateRecommendation(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// RecommendationGet returns a recommendation with its decision, if any.
func RecommendationGet(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		recID, err := uuidURLParam(r, "recommendationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetRecommendation(r.Context(), recID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// RecommendationsList returns recommendations matching the query filters.
func RecommendationsList(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := recommendationFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListRecommendations(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

type feedbackRequest struct {
	Reward  int     `json:"reward" validate:"required"`
	Comment *string `json:"comment"`
}

func (req *feedbackRequest) toInput() *overrides.FeedbackInput {
	if req == nil {
		return nil
	}
	return &overrides.FeedbackInput{Reward: req.Reward, Comment: req.Comment}
}

type approveRequest struct {
	Feedback *feedbackRequest `json:"feedback"`
}

// RecommendationApprove accepts a recommendation as proposed.
func RecommendationApprove(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recID, err := uuidURLParam(r, "recommendationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload approveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := svc.Approve(r.Context(), overrides.ApproveInput{
			ActorUserID:      actorID,
			RecommendationID: recID,
			Feedback:         payload.Feedback.toInput(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, decisionResponseFromModel(decision))
	}
}

type overrideRequest struct {
	EditedPayload json.RawMessage  `json:"edited_payload" validate:"required"`
	Justification string           `json:"justification" validate:"required"`
	Feedback      *feedbackRequest `json:"feedback"`
}

// RecommendationOverride replaces a recommendation's payload with an edit.
func RecommendationOverride(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return overrideDecision(svc, logg, http.StatusCreated, func(r *http.Request, input overrides.OverrideInput) (*models.OverrideDecision, error) {
		return svc.Override(r.Context(), input)
	})
}

// RecommendationOverrideEdit revises an already recorded override.
func RecommendationOverrideEdit(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return overrideDecision(svc, logg, http.StatusOK, func(r *http.Request, input overrides.OverrideInput) (*models.OverrideDecision, error) {
		return svc.EditOverride(r.Context(), input)
	})
}

func overrideDecision(svc overrides.Service, logg *logger.Logger, status int, call func(*http.Request, overrides.OverrideInput) (*models.OverrideDecision, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recID, err := uuidURLParam(r, "recommendationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload overrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := call(r, overrides.OverrideInput{
			ActorUserID:      actorID,
			RecommendationID: recID,
			EditedPayload:    payload.EditedPayload,
			Justification:    validators.SanitizeString(payload.Justification, 2000),
			Feedback:         payload.Feedback.toInput(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, decisionResponseFromModel(decision))
	}
}

// RecommendationFeedback records a standalone reviewer reward signal.
func RecommendationFeedback(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recID, err := uuidURLParam(r, "recommendationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload feedbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		feedback, err := svc.SubmitFeedback(r.Context(), actorID, recID, overrides.FeedbackInput{
			Reward:  payload.Reward,
			Comment: payload.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, feedback)
	}
}

// RecommendationFeedbackHistory lists feedback left on a recommendation.
func RecommendationFeedbackHistory(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		recID, err := uuidURLParam(r, "recommendationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.FeedbackHistory(r.Context(), recID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// OverridesSummary reports the decision pipeline state for dashboards.
func OverridesSummary(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		summary, err := svc.GetSummary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// OverridesRecent lists the most recently updated decisions.
func OverridesRecent(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 10, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decisions, err := svc.RecentDecisions(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		data := make([]decisionResponse, 0, len(decisions))
		for i := range decisions {
			data = append(data, decisionResponseFromModel(&decisions[i]))
		}
		responses.WriteSuccess(w, data)
	}
}

type statusOverrideRequest struct {
	Status        string `json:"status" validate:"required"`
	Justification string `json:"justification" validate:"required"`
}

// TaskStatusOverride lets a supervisor force a task status directly.
func TaskStatusOverride(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := uuidURLParam(r, "taskID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload statusOverrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseTaskStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid task status"))
			return
		}

		task, err := svc.OverrideTaskStatus(r.Context(), overrides.TaskStatusOverrideInput{
			ActorUserID:   actorID,
			TaskID:        taskID,
			Status:        status,
			Justification: validators.SanitizeString(payload.Justification, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, taskResponseFromModel(task))
	}
}

// OrderStatusOverride lets a supervisor force an order status directly.
func OrderStatusOverride(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuidURLParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload statusOverrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status"))
			return
		}

		order, err := svc.OverrideOrderStatus(r.Context(), overrides.OrderStatusOverrideInput{
			ActorUserID:   actorID,
			OrderID:       orderID,
			Status:        status,
			Justification: validators.SanitizeString(payload.Justification, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// DeliveryStatusOverride lets a supervisor force a delivery status directly.
func DeliveryStatusOverride(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rawID := strings.TrimSpace(chi.URLParam(r, "deliveryID"))
		deliveryID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery id"))
			return
		}

		var payload statusOverrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseDeliveryStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status"))
			return
		}

		delivery, err := svc.OverrideDeliveryStatus(r.Context(), overrides.DeliveryStatusOverrideInput{
			ActorUserID:   actorID,
			DeliveryID:    deliveryID,
			Status:        status,
			Justification: validators.SanitizeString(payload.Justification, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

func recommendationFilterFromQuery(r *http.Request) (overrides.RecommendationFilter, error) {
	var filter overrides.RecommendationFilter

	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		recType, err := enums.ParseRecommendationType(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid recommendation type")
		}
		filter.Type = &recType
	}

	orderID, err := uuidQueryParam(r, "orderId")
	if err != nil {
		return filter, err
	}
	filter.OrderID = orderID

	taskID, err := uuidQueryParam(r, "taskId")
	if err != nil {
		return filter, err
	}
	filter.TaskID = taskID

	if raw := strings.TrimSpace(r.URL.Query().Get("hasDecision")); raw != "" {
		hasDecision, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "hasDecision must be a boolean")
		}
		filter.HasDecision = &hasDecision
	}

	return filter, nil
}

type decisionResponse struct {
	ID               uuid.UUID            `json:"id"`
	RecommendationID uuid.UUID            `json:"recommendation_id"`
	Status           enums.OverrideStatus `json:"status"`
	DecidedByUserID  uuid.UUID            `json:"decided_by_user_id"`
	Justification    string               `json:"justification"`
	FinalPayload     json.RawMessage      `json:"final_payload"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func decisionResponseFromModel(m *models.OverrideDecision) decisionResponse {
	return decisionResponse{
		ID:               m.ID,
		RecommendationID: m.RecommendationID,
		Status:           m.Status,
		DecidedByUserID:  m.DecidedByUserID,
		Justification:    m.Justification,
		FinalPayload:     m.FinalPayload,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

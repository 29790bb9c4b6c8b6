package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/api/responses"
	"github.com/novagile/wareflow-backend/api/validators"
	"github.com/novagile/wareflow-backend/internal/tasks"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	pkgerrors "github.com/novagile/wareflow-backend/pkg/errors"
	"github.com/novagile/wareflow-backend/pkg/logger"
	"github.com/novagile/wareflow-backend/pkg/pagination"
)

type taskAssignRequest struct {
	EmployeeID    string  `json:"employee_id" validate:"required"`
	ChariotID     *string `json:"chariot_id"`
	Justification string  `json:"justification"`
}

// TaskAssign assigns or reassigns a task to an employee.
func TaskAssign(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
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

		var payload taskAssignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		employeeID, err := uuid.Parse(strings.TrimSpace(payload.EmployeeID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid employee_id"))
			return
		}

		chariotID, err := parseOptionalUUID(payload.ChariotID, "chariot_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.Assign(r.Context(), tasks.AssignInput{
			ActorUserID:   actorID,
			TaskID:        taskID,
			EmployeeID:    employeeID,
			ChariotID:     chariotID,
			Justification: validators.SanitizeString(payload.Justification, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, taskResponseFromModel(task))
	}
}

type taskValidatedRequest struct {
	Validated     *bool  `json:"validated" validate:"required"`
	Justification string `json:"justification"`
}

// TaskSetValidated flips the supervisor validation flag on a task.
func TaskSetValidated(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
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

		var payload taskValidatedRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.SetValidated(r.Context(), actorID, taskID, *payload.Validated, validators.SanitizeString(payload.Justification, 2000))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, taskResponseFromModel(task))
	}
}

// TaskStart moves an assigned task into execution.
func TaskStart(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return taskTransition(svc, logg, func(r *http.Request, actorID, taskID uuid.UUID) (*models.OperationTask, error) {
		return svc.Start(r.Context(), actorID, taskID)
	})
}

// TaskComplete finishes an in-progress task.
func TaskComplete(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return taskTransition(svc, logg, func(r *http.Request, actorID, taskID uuid.UUID) (*models.OperationTask, error) {
		return svc.Complete(r.Context(), actorID, taskID)
	})
}

type taskReasonRequest struct {
	Reason string `json:"reason"`
}

// TaskBlock parks a task with a mandatory reason.
func TaskBlock(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return taskReasonTransition(svc, logg, func(r *http.Request, actorID, taskID uuid.UUID, reason string) (*models.OperationTask, error) {
		return svc.Block(r.Context(), actorID, taskID, reason)
	})
}

// TaskCancel terminates a task before completion.
func TaskCancel(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return taskReasonTransition(svc, logg, func(r *http.Request, actorID, taskID uuid.UUID, reason string) (*models.OperationTask, error) {
		return svc.Cancel(r.Context(), actorID, taskID, reason)
	})
}

func taskTransition(svc tasks.Service, logg *logger.Logger, call func(*http.Request, uuid.UUID, uuid.UUID) (*models.OperationTask, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
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

		task, err := call(r, actorID, taskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, taskResponseFromModel(task))
	}
}

func taskReasonTransition(svc tasks.Service, logg *logger.Logger, call func(*http.Request, uuid.UUID, uuid.UUID, string) (*models.OperationTask, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
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

		var payload taskReasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := call(r, actorID, taskID, validators.SanitizeString(payload.Reason, 2000))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, taskResponseFromModel(task))
	}
}

// TaskGet returns one task by ID.
func TaskGet(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		taskID, err := uuidURLParam(r, "taskID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.Get(r.Context(), taskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, taskResponseFromModel(task))
	}
}

// TasksList returns tasks matching the query filters, newest first.
func TasksList(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := taskFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, taskPageFromModels(page))
	}
}

// TaskStatusCounts reports how many tasks sit in each status.
func TaskStatusCounts(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		counts, err := svc.StatusCounts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, counts)
	}
}

// TaskTypeCounts reports how many tasks exist per operation type.
func TaskTypeCounts(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		counts, err := svc.TypeCounts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, counts)
	}
}

func taskFilterFromQuery(r *http.Request) (tasks.ListFilter, error) {
	var filter tasks.ListFilter

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseTaskStatus(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid task status")
		}
		filter.Status = &status
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("operationType")); raw != "" {
		opType, err := enums.ParseOperationType(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid operation type")
		}
		filter.OperationType = &opType
	}

	assigneeID, err := uuidQueryParam(r, "assigneeId")
	if err != nil {
		return filter, err
	}
	filter.AssignedToUserID = assigneeID

	orderID, err := uuidQueryParam(r, "orderId")
	if err != nil {
		return filter, err
	}
	filter.OrderID = orderID

	if raw := strings.TrimSpace(r.URL.Query().Get("deliveryId")); raw != "" {
		deliveryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "deliveryId must be an integer")
		}
		filter.DeliveryID = &deliveryID
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("validated")); raw != "" {
		validated, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "validated must be a boolean")
		}
		filter.Validated = &validated
	}

	createdFrom, err := timeQueryParam(r, "from")
	if err != nil {
		return filter, err
	}
	filter.CreatedFrom = createdFrom

	createdTo, err := timeQueryParam(r, "to")
	if err != nil {
		return filter, err
	}
	filter.CreatedTo = createdTo

	return filter, nil
}

type taskResponse struct {
	ID               uuid.UUID           `json:"id"`
	OperationType    enums.OperationType `json:"operation_type"`
	Status           enums.TaskStatus    `json:"status"`
	Validated        bool                `json:"validated"`
	AssignedToUserID *uuid.UUID          `json:"assigned_to_user_id"`
	ChariotID        *uuid.UUID          `json:"chariot_id"`
	OrderID          *uuid.UUID          `json:"order_id"`
	DeliveryID       *int64              `json:"delivery_id"`
	PlannedRouteID   *uuid.UUID          `json:"planned_route_id"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	CompletedAt      *time.Time          `json:"completed_at"`
}

func taskResponseFromModel(m *models.OperationTask) taskResponse {
	return taskResponse{
		ID:               m.ID,
		OperationType:    m.OperationType,
		Status:           m.Status,
		Validated:        m.Validated,
		AssignedToUserID: m.AssignedToUserID,
		ChariotID:        m.ChariotID,
		OrderID:          m.OrderID,
		DeliveryID:       m.DeliveryID,
		PlannedRouteID:   m.PlannedRouteID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		CompletedAt:      m.CompletedAt,
	}
}

func taskPageFromModels(page pagination.Page[models.OperationTask]) pagination.Page[taskResponse] {
	data := make([]taskResponse, 0, len(page.Data))
	for i := range page.Data {
		data = append(data, taskResponseFromModel(&page.Data[i]))
	}
	return pagination.Page[taskResponse]{
		Data:       data,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
}

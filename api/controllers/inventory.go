package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/api/middleware"
	"github.com/novagile/wareflow-backend/api/responses"
	"github.com/novagile/wareflow-backend/api/validators"
	"github.com/novagile/wareflow-backend/internal/ledger"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	pkgerrors "github.com/novagile/wareflow-backend/pkg/errors"
	"github.com/novagile/wareflow-backend/pkg/logger"
)

type stockMovementRequest struct {
	SkuID          string  `json:"sku_id" validate:"required"`
	FromLocationID *string `json:"from_location_id"`
	ToLocationID   *string `json:"to_location_id"`
	Qty            int     `json:"qty" validate:"required,gt=0"`
	OperationType  string  `json:"operation_type" validate:"required"`
	OrderID        *string `json:"order_id"`
	TaskID         *string `json:"task_id"`
	IdempotencyKey string  `json:"idempotency_key" validate:"required"`
}

func (req stockMovementRequest) toInput(actorUserID uuid.UUID) (ledger.ApplyMovementInput, error) {
	skuID, err := uuid.Parse(strings.TrimSpace(req.SkuID))
	if err != nil {
		return ledger.ApplyMovementInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sku_id")
	}

	opType, err := enums.ParseOperationType(strings.TrimSpace(req.OperationType))
	if err != nil {
		return ledger.ApplyMovementInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid operation type")
	}

	from, err := parseOptionalUUID(req.FromLocationID, "from_location_id")
	if err != nil {
		return ledger.ApplyMovementInput{}, err
	}
	to, err := parseOptionalUUID(req.ToLocationID, "to_location_id")
	if err != nil {
		return ledger.ApplyMovementInput{}, err
	}
	orderID, err := parseOptionalUUID(req.OrderID, "order_id")
	if err != nil {
		return ledger.ApplyMovementInput{}, err
	}
	taskID, err := parseOptionalUUID(req.TaskID, "task_id")
	if err != nil {
		return ledger.ApplyMovementInput{}, err
	}

	return ledger.ApplyMovementInput{
		SkuID:          skuID,
		FromLocationID: from,
		ToLocationID:   to,
		Qty:            req.Qty,
		OperationType:  opType,
		ActorUserID:    &actorUserID,
		OrderID:        orderID,
		TaskID:         taskID,
		IdempotencyKey: validators.SanitizeString(req.IdempotencyKey, 255),
	}, nil
}

// StockMovementApply records a stock movement through the ledger engine.
func StockMovementApply(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stockMovementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApplyMovement(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, movementResponseFromResult(result))
	}
}

// StockBalancesList returns paginated balances ordered by quantity.
func StockBalancesList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := balanceFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListBalances(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// SkuInventory returns the per-location balances and total for one SKU.
func SkuInventory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		skuID, err := uuidURLParam(r, "skuID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.SkuInventory(r.Context(), skuID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// LocationInventory returns the balances held at one location.
func LocationInventory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		locationID, err := uuidURLParam(r, "locationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.LocationInventory(r.Context(), locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// StockLedgerList returns movement history, newest first.
func StockLedgerList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := entryFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListLedger(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// LowStockList reports balances at or below the requested threshold.
func LowStockList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		threshold, err := validators.ParseQueryInt(r, "threshold", 10, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.LowStockBalances(r.Context(), threshold, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// SkuTotalStock returns the summed quantity across all locations for a SKU.
func SkuTotalStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		skuID, err := uuidURLParam(r, "skuID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		total, err := svc.TotalStock(r.Context(), skuID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"sku_id": skuID, "total_qty": total})
	}
}

func balanceFilterFromQuery(r *http.Request) (ledger.BalanceFilter, error) {
	var filter ledger.BalanceFilter

	skuID, err := uuidQueryParam(r, "skuId")
	if err != nil {
		return filter, err
	}
	filter.SkuID = skuID

	locationID, err := uuidQueryParam(r, "locationId")
	if err != nil {
		return filter, err
	}
	filter.LocationID = locationID

	if raw := strings.TrimSpace(r.URL.Query().Get("locationType")); raw != "" {
		locType, err := enums.ParseLocationType(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid location type")
		}
		filter.LocationType = &locType
	}

	return filter, nil
}

func entryFilterFromQuery(r *http.Request) (ledger.EntryFilter, error) {
	var filter ledger.EntryFilter

	skuID, err := uuidQueryParam(r, "skuId")
	if err != nil {
		return filter, err
	}
	filter.SkuID = skuID

	locationID, err := uuidQueryParam(r, "locationId")
	if err != nil {
		return filter, err
	}
	filter.LocationID = locationID

	userID, err := uuidQueryParam(r, "userId")
	if err != nil {
		return filter, err
	}
	filter.UserID = userID

	taskID, err := uuidQueryParam(r, "taskId")
	if err != nil {
		return filter, err
	}
	filter.TaskID = taskID

	orderID, err := uuidQueryParam(r, "orderId")
	if err != nil {
		return filter, err
	}
	filter.OrderID = orderID

	if raw := strings.TrimSpace(r.URL.Query().Get("operationType")); raw != "" {
		opType, err := enums.ParseOperationType(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid operation type")
		}
		filter.OperationType = &opType
	}

	from, err := timeQueryParam(r, "from")
	if err != nil {
		return filter, err
	}
	filter.From = from

	to, err := timeQueryParam(r, "to")
	if err != nil {
		return filter, err
	}
	filter.To = to

	return filter, nil
}

type movementResponse struct {
	Entry    ledgerEntryResponse `json:"entry"`
	Replayed bool                `json:"replayed"`
}

type ledgerEntryResponse struct {
	ID             uuid.UUID           `json:"id"`
	Ts             time.Time           `json:"ts"`
	SkuID          uuid.UUID           `json:"sku_id"`
	FromLocationID *uuid.UUID          `json:"from_location_id"`
	ToLocationID   *uuid.UUID          `json:"to_location_id"`
	QtyDelta       int                 `json:"qty_delta"`
	OperationType  enums.OperationType `json:"operation_type"`
	UserID         *uuid.UUID          `json:"user_id"`
	OrderID        *uuid.UUID          `json:"order_id"`
	TaskID         *uuid.UUID          `json:"task_id"`
}

func movementResponseFromResult(result *ledger.MovementResult) movementResponse {
	return movementResponse{
		Entry:    ledgerEntryResponseFromModel(*result.Entry),
		Replayed: result.Replayed,
	}
}

func ledgerEntryResponseFromModel(m models.StockLedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:             m.ID,
		Ts:             m.Ts,
		SkuID:          m.SkuID,
		FromLocationID: m.FromLocationID,
		ToLocationID:   m.ToLocationID,
		QtyDelta:       m.QtyDelta,
		OperationType:  m.OperationType,
		UserID:         m.UserID,
		OrderID:        m.OrderID,
		TaskID:         m.TaskID,
	}
}

func actorFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}

func uuidURLParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).WithDetails(map[string]any{"param": name})
	}
	return id, nil
}

func uuidQueryParam(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key).WithDetails(map[string]any{"param": key})
	}
	return &id, nil
}

func timeQueryParam(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key+" timestamp").WithDetails(map[string]any{"param": key})
	}
	return &ts, nil
}

func parseOptionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+field)
	}
	return &id, nil
}

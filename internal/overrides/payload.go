package overrides

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/novagile/wareflow-backend/pkg/enums"
	"github.com/novagile/wareflow-backend/pkg/errors"
)

var validate = validator.New()

// PickRoutePayload is the route proposal for a picking task.
type PickRoutePayload struct {
	PathNodes           []uuid.UUID     `json:"path_nodes" validate:"required,min=2"`
	TotalDistanceMeters decimal.Decimal `json:"total_distance_meters"`
}

// StorageAssignmentPayload proposes a storage slot for a SKU. Advisory only:
// no operational table is written when it is decided.
type StorageAssignmentPayload struct {
	SkuID      uuid.UUID `json:"sku_id" validate:"required"`
	LocationID uuid.UUID `json:"location_id" validate:"required"`
}

// ForecastPayload carries a demand forecast for a SKU.
type ForecastPayload struct {
	SkuID       uuid.UUID `json:"sku_id" validate:"required"`
	HorizonDays int       `json:"horizon_days" validate:"required,gt=0"`
	ForecastQty int       `json:"forecast_qty" validate:"gte=0"`
}

// decodePayload parses and validates raw payload bytes against the schema
// the recommendation type dictates.
func decodePayload(recType enums.RecommendationType, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, errors.New(errors.CodeValidation, "recommendation payload is required")
	}

	var payload any
	switch recType {
	case enums.RecommendationTypePickRoute:
		payload = &PickRoutePayload{}
	case enums.RecommendationTypeStorageAssignment:
		payload = &StorageAssignmentPayload{}
	case enums.RecommendationTypeForecast:
		payload = &ForecastPayload{}
	default:
		return nil, errors.New(errors.CodeValidation,
			fmt.Sprintf("unknown recommendation type %q", recType))
	}

	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err,
			fmt.Sprintf("malformed %s payload", recType))
	}
	if err := validate.Struct(payload); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err,
			fmt.Sprintf("invalid %s payload", recType))
	}
	if route, ok := payload.(*PickRoutePayload); ok && route.TotalDistanceMeters.IsNegative() {
		return nil, errors.New(errors.CodeValidation, "route distance cannot be negative")
	}
	return payload, nil
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/novagile/wareflow-backend/api/responses"
	"github.com/novagile/wareflow-backend/api/validators"
	"github.com/novagile/wareflow-backend/internal/audit"
	pkgerrors "github.com/novagile/wareflow-backend/pkg/errors"
	"github.com/novagile/wareflow-backend/pkg/logger"
)

// AuditLogsList returns audit entries matching the query filters, newest first.
func AuditLogsList(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := auditFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func auditFilterFromQuery(r *http.Request) (audit.ListFilter, error) {
	var filter audit.ListFilter

	actorID, err := uuidQueryParam(r, "actorId")
	if err != nil {
		return filter, err
	}
	filter.ActorUserID = actorID

	filter.ActionType = strings.TrimSpace(r.URL.Query().Get("actionType"))
	filter.EntityType = strings.TrimSpace(r.URL.Query().Get("entityType"))
	filter.EntityID = strings.TrimSpace(r.URL.Query().Get("entityId"))

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

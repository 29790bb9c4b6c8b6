package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/logger"
	"github.com/novagile/wareflow-backend/pkg/pagination"
)

// Entry describes one audit event to record.
type Entry struct {
	ActorUserID *uuid.UUID
	ActionType  string
	EntityType  string
	EntityID    string
	Details     any
}

// Service records and queries the audit trail. Record must never break the
// business flow it traces: failures are logged and swallowed.
type Service interface {
	Record(ctx context.Context, entry Entry) *models.AuditLog
	RecordTx(ctx context.Context, tx *gorm.DB, entry Entry) *models.AuditLog
	List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.AuditLog], error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Record(ctx context.Context, entry Entry) *models.AuditLog {
	return s.record(ctx, s.repo, entry)
}

// RecordTx writes the entry inside the caller's transaction so the trace
// commits or rolls back with the business write. The insert runs under a
// savepoint: a failed audit write would otherwise abort the surrounding
// Postgres transaction.
func (s *service) RecordTx(ctx context.Context, tx *gorm.DB, entry Entry) *models.AuditLog {
	if tx == nil {
		return s.record(ctx, s.repo, entry)
	}
	if err := tx.SavePoint("audit_entry").Error; err != nil {
		s.warn(ctx, "audit savepoint failed", err)
		return nil
	}
	row := s.record(ctx, s.repo.WithTx(tx), entry)
	if row == nil {
		if err := tx.RollbackTo("audit_entry").Error; err != nil {
			s.warn(ctx, "audit savepoint rollback failed", err)
		}
	}
	return row
}

func (s *service) record(ctx context.Context, repo Repository, entry Entry) *models.AuditLog {
	if entry.ActionType == "" || entry.EntityType == "" || entry.EntityID == "" {
		s.warn(ctx, "audit entry dropped: action, entity type and entity id are required", nil)
		return nil
	}

	var details json.RawMessage
	if entry.Details != nil {
		marshalled, err := json.Marshal(entry.Details)
		if err != nil {
			s.warn(ctx, "audit details not serializable", err)
		} else {
			details = marshalled
		}
	}

	row := &models.AuditLog{
		ActorUserID: entry.ActorUserID,
		ActionType:  entry.ActionType,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Details:     details,
	}
	if err := repo.Create(ctx, row); err != nil {
		s.warn(ctx, "audit write failed", err)
		return nil
	}
	return row
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.AuditLog], error) {
	rows, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return pagination.Page[models.AuditLog]{}, err
	}
	return pagination.NewPage(rows, total, params), nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	if err != nil {
		s.logg.Error(ctx, msg, err)
		return
	}
	s.logg.Warn(ctx, msg)
}

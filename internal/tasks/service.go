package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/novagile/wareflow-backend/internal/audit"
	"github.com/novagile/wareflow-backend/internal/users"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	"github.com/novagile/wareflow-backend/pkg/errors"
	"github.com/novagile/wareflow-backend/pkg/logger"
	"github.com/novagile/wareflow-backend/pkg/metrics"
	"github.com/novagile/wareflow-backend/pkg/outbox"
	"github.com/novagile/wareflow-backend/pkg/pagination"
)

// AssignInput captures a task assignment request. Reassignment uses the same
// path: a task already assigned simply gets a new employee.
type AssignInput struct {
	ActorUserID   uuid.UUID  `json:"actor_user_id"`
	TaskID        uuid.UUID  `json:"task_id"`
	EmployeeID    uuid.UUID  `json:"employee_id"`
	ChariotID     *uuid.UUID `json:"chariot_id"`
	Justification string     `json:"justification"`
}

// Service runs the operational task state machine.
type Service interface {
	Assign(ctx context.Context, input AssignInput) (*models.OperationTask, error)
	SetValidated(ctx context.Context, actorUserID, taskID uuid.UUID, validated bool, justification string) (*models.OperationTask, error)
	Start(ctx context.Context, actorUserID, taskID uuid.UUID) (*models.OperationTask, error)
	Complete(ctx context.Context, actorUserID, taskID uuid.UUID) (*models.OperationTask, error)
	Block(ctx context.Context, actorUserID, taskID uuid.UUID, reason string) (*models.OperationTask, error)
	Cancel(ctx context.Context, actorUserID, taskID uuid.UUID, reason string) (*models.OperationTask, error)

	Get(ctx context.Context, id uuid.UUID) (*models.OperationTask, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.OperationTask], error)
	StatusCounts(ctx context.Context) ([]StatusCount, error)
	TypeCounts(ctx context.Context) ([]TypeCount, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo    Repository
	tx      txRunner
	users   users.Service
	audit   audit.Service
	outbox  *outbox.Service
	metrics *metrics.TaskMetrics
	logg    *logger.Logger
}

// NewService wires the task state machine with its collaborators.
func NewService(repo Repository, tx txRunner, usersSvc users.Service, auditSvc audit.Service, outboxSvc *outbox.Service, taskMetrics *metrics.TaskMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("task repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if usersSvc == nil {
		return nil, fmt.Errorf("users service required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		users:   usersSvc,
		audit:   auditSvc,
		outbox:  outboxSvc,
		metrics: taskMetrics,
		logg:    logg,
	}, nil
}

func (s *service) Assign(ctx context.Context, input AssignInput) (*models.OperationTask, error) {
	if input.TaskID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "task id is required")
	}
	if input.EmployeeID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "employee id is required")
	}
	if err := s.requireAdmin(ctx, input.ActorUserID); err != nil {
		return nil, err
	}
	employee, err := s.users.Get(ctx, input.EmployeeID)
	if err != nil {
		return nil, err
	}

	var task *models.OperationTask
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err = s.loadMutable(ctx, repo, input.TaskID)
		if err != nil {
			return err
		}

		previousStatus := task.Status
		previousAssignee := task.AssignedToUserID

		task.AssignedToUserID = &employee.ID
		if input.ChariotID != nil {
			task.ChariotID = input.ChariotID
		}
		if task.Status == enums.TaskStatusPending {
			task.Status = enums.TaskStatusAssigned
		}
		if err := repo.Save(ctx, task); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "saving task assignment")
		}

		s.record(ctx, tx, audit.Entry{
			ActorUserID: &input.ActorUserID,
			ActionType:  audit.ActionTaskAssigned,
			EntityType:  audit.EntityTask,
			EntityID:    task.ID.String(),
			Details: map[string]any{
				"employee_id":       employee.ID,
				"previous_assignee": previousAssignee,
				"chariot_id":        task.ChariotID,
			},
		})
		if previousStatus != task.Status {
			s.auditTransition(ctx, tx, input.ActorUserID, task, previousStatus, audit.ActionTaskAutoTransition)
		}
		if input.Justification != "" {
			s.record(ctx, tx, audit.Entry{
				ActorUserID: &input.ActorUserID,
				ActionType:  audit.ActionTaskAssignmentNote,
				EntityType:  audit.EntityTask,
				EntityID:    task.ID.String(),
				Details:     map[string]any{"justification": input.Justification},
			})
		}

		if err := s.emit(ctx, tx, input.ActorUserID, enums.EventTaskAssigned, task.ID, outbox.TaskAssignedEvent{
			TaskID:     task.ID,
			EmployeeID: employee.ID,
			ChariotID:  task.ChariotID,
		}); err != nil {
			return err
		}
		if previousStatus != task.Status {
			if err := s.emitStatusChange(ctx, tx, input.ActorUserID, task, previousStatus, "assignment"); err != nil {
				return err
			}
			s.metrics.IncTransition(previousStatus.String(), task.Status.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.info(ctx, task.ID, "task assigned")
	return task, nil
}

func (s *service) SetValidated(ctx context.Context, actorUserID, taskID uuid.UUID, validated bool, justification string) (*models.OperationTask, error) {
	if taskID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "task id is required")
	}
	if err := s.requireAdmin(ctx, actorUserID); err != nil {
		return nil, err
	}

	var task *models.OperationTask
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		task, err = s.load(ctx, repo, taskID)
		if err != nil {
			return err
		}
		if task.Validated == validated {
			return errors.New(errors.CodeNoChange,
				fmt.Sprintf("task %s validated flag is already %t", taskID, validated))
		}
		if !validated && task.Status == enums.TaskStatusDone {
			return errors.New(errors.CodeStateConflict, "a completed task cannot be un-validated")
		}

		task.Validated = validated
		if err := repo.Save(ctx, task); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "saving task validation")
		}

		s.record(ctx, tx, audit.Entry{
			ActorUserID: &actorUserID,
			ActionType:  audit.ActionTaskValidated,
			EntityType:  audit.EntityTask,
			EntityID:    task.ID.String(),
			Details: map[string]any{
				"validated":     validated,
				"justification": justification,
			},
		})
		return s.emit(ctx, tx, actorUserID, enums.EventTaskValidated, task.ID, outbox.TaskValidatedEvent{
			TaskID:    task.ID,
			Validated: validated,
		})
	})
	if err != nil {
		return nil, err
	}

	s.info(ctx, task.ID, "task validation changed")
	return task, nil
}

func (s *service) Start(ctx context.Context, actorUserID, taskID uuid.UUID) (*models.OperationTask, error) {
	return s.transition(ctx, actorUserID, taskID, enums.TaskStatusInProgress, "", func(task *models.OperationTask) error {
		if task.Status != enums.TaskStatusAssigned {
			return errors.New(errors.CodeStateConflict,
				fmt.Sprintf("task %s cannot start from status %s", task.ID, task.Status))
		}
		return nil
	})
}

func (s *service) Complete(ctx context.Context, actorUserID, taskID uuid.UUID) (*models.OperationTask, error) {
	return s.transition(ctx, actorUserID, taskID, enums.TaskStatusDone, "", func(task *models.OperationTask) error {
		if task.Status != enums.TaskStatusInProgress {
			return errors.New(errors.CodeStateConflict,
				fmt.Sprintf("task %s cannot complete from status %s", task.ID, task.Status))
		}
		return nil
	})
}

func (s *service) Block(ctx context.Context, actorUserID, taskID uuid.UUID, reason string) (*models.OperationTask, error) {
	if reason == "" {
		return nil, errors.New(errors.CodeValidation, "a block reason is required")
	}
	return s.transition(ctx, actorUserID, taskID, enums.TaskStatusBlocked, reason, nil)
}

func (s *service) Cancel(ctx context.Context, actorUserID, taskID uuid.UUID, reason string) (*models.OperationTask, error) {
	return s.transition(ctx, actorUserID, taskID, enums.TaskStatusCancelled, reason, nil)
}

// transition runs one guarded status change. The guard sees the freshly
// loaded task; terminal-state protection applies before it.
func (s *service) transition(ctx context.Context, actorUserID, taskID uuid.UUID, to enums.TaskStatus, reason string, guard func(*models.OperationTask) error) (*models.OperationTask, error) {
	if taskID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "task id is required")
	}
	if err := s.requireActor(ctx, actorUserID, taskID); err != nil {
		return nil, err
	}

	var task *models.OperationTask
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		task, err = s.loadMutable(ctx, repo, taskID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(task); err != nil {
				return err
			}
		}

		from := task.Status
		task.Status = to
		if to == enums.TaskStatusDone {
			now := time.Now()
			task.CompletedAt = &now
		}
		if err := repo.Save(ctx, task); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "saving task status")
		}

		s.record(ctx, tx, audit.Entry{
			ActorUserID: &actorUserID,
			ActionType:  audit.ActionTaskStatusChanged,
			EntityType:  audit.EntityTask,
			EntityID:    task.ID.String(),
			Details: map[string]any{
				"from":   from,
				"to":     to,
				"reason": reason,
			},
		})
		if err := s.emitStatusChange(ctx, tx, actorUserID, task, from, reason); err != nil {
			return err
		}
		s.metrics.IncTransition(from.String(), to.String())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.info(ctx, task.ID, "task status changed")
	return task, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.OperationTask, error) {
	if id == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "task id is required")
	}
	return s.load(ctx, s.repo, id)
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.OperationTask], error) {
	rows, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return pagination.Page[models.OperationTask]{}, errors.Wrap(errors.CodeInternal, err, "listing tasks")
	}
	return pagination.NewPage(rows, total, params), nil
}

func (s *service) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting task statuses")
	}
	return rows, nil
}

func (s *service) TypeCounts(ctx context.Context) ([]TypeCount, error) {
	rows, err := s.repo.TypeCounts(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting task types")
	}
	return rows, nil
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
			fmt.Sprintf("role %s may not manage task assignments", role))
	}
	return nil
}

// requireActor allows admins, supervisors, and the employee the task is
// assigned to.
func (s *service) requireActor(ctx context.Context, actorUserID, taskID uuid.UUID) error {
	if actorUserID == uuid.Nil {
		return errors.New(errors.CodeValidation, "actor user id is required")
	}
	role, err := s.users.GetRole(ctx, actorUserID)
	if err != nil {
		return err
	}
	if role == enums.UserRoleAdmin || role == enums.UserRoleSupervisor {
		return nil
	}
	task, err := s.load(ctx, s.repo, taskID)
	if err != nil {
		return err
	}
	if task.AssignedToUserID == nil || *task.AssignedToUserID != actorUserID {
		return errors.New(errors.CodeForbidden, "employees may only act on their own tasks")
	}
	return nil
}

func (s *service) load(ctx context.Context, repo Repository, taskID uuid.UUID) (*models.OperationTask, error) {
	task, err := repo.GetByID(ctx, taskID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading task")
	}
	if task == nil {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("task %s not found", taskID))
	}
	return task, nil
}

func (s *service) loadMutable(ctx context.Context, repo Repository, taskID uuid.UUID) (*models.OperationTask, error) {
	task, err := s.load(ctx, repo, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return nil, errors.New(errors.CodeStateConflict,
			fmt.Sprintf("task %s is %s and no longer accepts changes", taskID, task.Status))
	}
	return task, nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	s.audit.RecordTx(ctx, tx, entry)
}

func (s *service) auditTransition(ctx context.Context, tx *gorm.DB, actorUserID uuid.UUID, task *models.OperationTask, from enums.TaskStatus, action string) {
	s.record(ctx, tx, audit.Entry{
		ActorUserID: &actorUserID,
		ActionType:  action,
		EntityType:  audit.EntityTask,
		EntityID:    task.ID.String(),
		Details: map[string]any{
			"from": from,
			"to":   task.Status,
		},
	})
}

func (s *service) emitStatusChange(ctx context.Context, tx *gorm.DB, actorUserID uuid.UUID, task *models.OperationTask, from enums.TaskStatus, reason string) error {
	return s.emit(ctx, tx, actorUserID, enums.EventTaskStatusChanged, task.ID, outbox.TaskStatusChangedEvent{
		TaskID: task.ID,
		From:   from,
		To:     task.Status,
		Reason: reason,
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actorUserID uuid.UUID, eventType enums.OutboxEventType, taskID uuid.UUID, data any) error {
	if s.outbox == nil {
		return nil
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOperationTask,
		AggregateID:   taskID.String(),
		Actor:         &outbox.ActorRef{UserID: actorUserID},
		Data:          data,
	})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "queueing task event")
	}
	return nil
}

func (s *service) info(ctx context.Context, taskID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"task_id": taskID}), msg)
}

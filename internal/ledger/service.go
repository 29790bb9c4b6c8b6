package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/novagile/wareflow-backend/internal/audit"
	"github.com/novagile/wareflow-backend/pkg/config"
	dbpkg "github.com/novagile/wareflow-backend/pkg/db"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	"github.com/novagile/wareflow-backend/pkg/errors"
	"github.com/novagile/wareflow-backend/pkg/logger"
	"github.com/novagile/wareflow-backend/pkg/metrics"
	"github.com/novagile/wareflow-backend/pkg/outbox"
	"github.com/novagile/wareflow-backend/pkg/pagination"
)

const idempotencyConstraint = "ux_stock_ledger_idempotency_key"

// ApplyMovementInput captures one requested stock movement.
type ApplyMovementInput struct {
	SkuID          uuid.UUID           `json:"sku_id"`
	FromLocationID *uuid.UUID          `json:"from_location_id"`
	ToLocationID   *uuid.UUID          `json:"to_location_id"`
	Qty            int                 `json:"qty"`
	OperationType  enums.OperationType `json:"operation_type"`
	ActorUserID    *uuid.UUID          `json:"actor_user_id"`
	OrderID        *uuid.UUID          `json:"order_id"`
	TaskID         *uuid.UUID          `json:"task_id"`
	IdempotencyKey string              `json:"idempotency_key"`
}

// MovementResult reports what a movement did. Replayed means the entry was
// already recorded under the same idempotency key and nothing moved again.
type MovementResult struct {
	Entry    *models.StockLedgerEntry `json:"entry"`
	Replayed bool                     `json:"replayed"`
}

// InventorySummary groups a set of balances with their quantity total.
type InventorySummary struct {
	Balances []BalanceView `json:"balances"`
	TotalQty int           `json:"total_qty"`
}

// Service is the stock ledger engine: every quantity change flows through
// ApplyMovement, reads never touch the balances directly.
type Service interface {
	ApplyMovement(ctx context.Context, input ApplyMovementInput) (*MovementResult, error)

	ListBalances(ctx context.Context, filter BalanceFilter, params pagination.Params) (pagination.Page[BalanceView], error)
	SkuInventory(ctx context.Context, skuID uuid.UUID) (*InventorySummary, error)
	LocationInventory(ctx context.Context, locationID uuid.UUID) (*InventorySummary, error)
	ListLedger(ctx context.Context, filter EntryFilter, params pagination.Params) (pagination.Page[EntryView], error)
	TotalStock(ctx context.Context, skuID uuid.UUID) (int, error)
	LowStockBalances(ctx context.Context, threshold int, params pagination.Params) (pagination.Page[BalanceView], error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo    Repository
	tx      txRunner
	audit   audit.Service
	outbox  *outbox.Service
	metrics *metrics.LedgerMetrics
	cfg     config.LedgerConfig
	logg    *logger.Logger
}

// NewService wires the ledger engine with its collaborators.
func NewService(repo Repository, tx txRunner, auditSvc audit.Service, outboxSvc *outbox.Service, ledgerMetrics *metrics.LedgerMetrics, cfg config.LedgerConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoffMin <= 0 {
		cfg.RetryBackoffMin = 5 * time.Millisecond
	}
	if cfg.RetryBackoffMax < cfg.RetryBackoffMin {
		cfg.RetryBackoffMax = cfg.RetryBackoffMin
	}
	return &service{
		repo:    repo,
		tx:      tx,
		audit:   auditSvc,
		outbox:  outboxSvc,
		metrics: ledgerMetrics,
		cfg:     cfg,
		logg:    logg,
	}, nil
}

var errVersionConflict = errors.New(errors.CodeConcurrency, "stock balance version changed")

func (s *service) ApplyMovement(ctx context.Context, input ApplyMovementInput) (*MovementResult, error) {
	if err := validateMovement(input); err != nil {
		return nil, err
	}

	known, err := s.repo.SkuExists(ctx, input.SkuID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "checking sku")
	}
	if !known {
		return nil, errors.New(errors.CodeNotFound, "sku not found")
	}

	existing, err := s.repo.GetEntryByIdempotencyKey(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "checking idempotency key")
	}
	if existing != nil {
		s.metrics.IncReplay()
		return &MovementResult{Entry: existing, Replayed: true}, nil
	}

	var result *MovementResult
	for attempt := 1; ; attempt++ {
		res, err := s.applyOnce(ctx, input)
		if err == nil {
			result = res
			break
		}
		if !errors.HasCode(err, errors.CodeConcurrency) {
			return nil, err
		}
		if attempt >= s.cfg.MaxRetries {
			s.metrics.IncConflict()
			return nil, errors.New(errors.CodeConcurrency,
				fmt.Sprintf("stock movement lost %d version races, giving up", attempt))
		}
		s.metrics.IncRetry()
		if err := s.backoff(ctx); err != nil {
			return nil, err
		}
	}

	if !result.Replayed {
		s.metrics.IncMovement(string(input.OperationType))
	} else {
		s.metrics.IncReplay()
	}

	if s.logg != nil {
		logCtx := s.logg.WithSkuID(ctx, input.SkuID.String())
		s.logg.Info(logCtx, "stock movement applied")
	}
	return result, nil
}

func (s *service) applyOnce(ctx context.Context, input ApplyMovementInput) (*MovementResult, error) {
	var result *MovementResult

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if input.FromLocationID != nil {
			if err := s.debit(ctx, repo, input); err != nil {
				return err
			}
		}
		if input.ToLocationID != nil {
			if err := s.credit(ctx, repo, input); err != nil {
				return err
			}
		}

		key := input.IdempotencyKey
		entry := &models.StockLedgerEntry{
			ID:             uuid.New(),
			SkuID:          input.SkuID,
			FromLocationID: input.FromLocationID,
			ToLocationID:   input.ToLocationID,
			QtyDelta:       input.Qty,
			OperationType:  input.OperationType,
			UserID:         input.ActorUserID,
			OrderID:        input.OrderID,
			TaskID:         input.TaskID,
			IdempotencyKey: &key,
		}

		if err := repo.CreateEntry(ctx, entry); err != nil {
			if dbpkg.IsUniqueViolation(err, idempotencyConstraint) {
				existing, readErr := s.repo.GetEntryByIdempotencyKey(ctx, input.IdempotencyKey)
				if readErr != nil || existing == nil {
					return errors.Wrap(errors.CodeInternal, err, "replaying idempotent movement")
				}
				result = &MovementResult{Entry: existing, Replayed: true}
				return errors.New(errors.CodeIdempotency, "movement already recorded")
			}
			return errors.Wrap(errors.CodeInternal, err, "writing ledger entry")
		}

		if s.audit != nil {
			s.audit.RecordTx(ctx, tx, audit.Entry{
				ActorUserID: input.ActorUserID,
				ActionType:  audit.ActionStockMovementApplied,
				EntityType:  audit.EntityLedgerEntry,
				EntityID:    entry.ID.String(),
				Details: map[string]any{
					"sku_id":           input.SkuID,
					"from_location_id": input.FromLocationID,
					"to_location_id":   input.ToLocationID,
					"qty":              input.Qty,
					"operation_type":   input.OperationType,
				},
			})
		}

		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventStockMovementApplied,
				AggregateType: enums.AggregateLedgerEntry,
				AggregateID:   entry.ID.String(),
				Data: outbox.StockMovementAppliedEvent{
					LedgerEntryID:  entry.ID,
					SkuID:          input.SkuID,
					FromLocationID: input.FromLocationID,
					ToLocationID:   input.ToLocationID,
					QtyDelta:       entry.QtyDelta,
					OperationType:  input.OperationType,
					TaskID:         input.TaskID,
					OrderID:        input.OrderID,
				},
				Version: 1,
			}
			if input.ActorUserID != nil {
				event.Actor = &outbox.ActorRef{UserID: *input.ActorUserID}
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "queueing domain event")
			}
		}

		result = &MovementResult{Entry: entry}
		return nil
	})
	if err != nil {
		// a replay surfaces as an error so the transaction rolls back, but
		// the caller still gets the original entry
		if errors.HasCode(err, errors.CodeIdempotency) && result != nil && result.Replayed {
			return result, nil
		}
		return nil, err
	}
	return result, nil
}

func (s *service) debit(ctx context.Context, repo Repository, input ApplyMovementInput) error {
	balance, err := repo.GetBalance(ctx, input.SkuID, *input.FromLocationID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "loading source balance")
	}
	if balance == nil || balance.Qty < input.Qty {
		available := 0
		if balance != nil {
			available = balance.Qty
		}
		return errors.New(errors.CodeInsufficientStock,
			fmt.Sprintf("sku %s has %d at source, movement needs %d", input.SkuID, available, input.Qty)).
			WithDetails(map[string]any{
				"sku_id":      input.SkuID,
				"location_id": *input.FromLocationID,
				"available":   available,
				"requested":   input.Qty,
			})
	}

	ok, err := repo.UpdateBalanceCAS(ctx, input.SkuID, *input.FromLocationID, balance.Qty-input.Qty, balance.Version)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "debiting source balance")
	}
	if !ok {
		return errVersionConflict
	}
	return nil
}

func (s *service) credit(ctx context.Context, repo Repository, input ApplyMovementInput) error {
	balance, err := repo.GetBalance(ctx, input.SkuID, *input.ToLocationID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "loading destination balance")
	}
	if balance == nil {
		seed := &models.StockBalance{
			SkuID:      input.SkuID,
			LocationID: *input.ToLocationID,
		}
		if err := repo.CreateBalance(ctx, seed); err != nil {
			// another writer seeded it first; reload and race on the version
			if !dbpkg.IsUniqueViolation(err, "") {
				return errors.Wrap(errors.CodeInternal, err, "seeding destination balance")
			}
		}
		balance, err = repo.GetBalance(ctx, input.SkuID, *input.ToLocationID)
		if err != nil || balance == nil {
			return errors.Wrap(errors.CodeInternal, err, "reloading destination balance")
		}
	}

	ok, err := repo.UpdateBalanceCAS(ctx, input.SkuID, *input.ToLocationID, balance.Qty+input.Qty, balance.Version)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "crediting destination balance")
	}
	if !ok {
		return errVersionConflict
	}
	return nil
}

func (s *service) backoff(ctx context.Context) error {
	window := s.cfg.RetryBackoffMax - s.cfg.RetryBackoffMin
	delay := s.cfg.RetryBackoffMin
	if window > 0 {
		delay += time.Duration(rand.Int63n(int64(window)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func validateMovement(input ApplyMovementInput) error {
	if input.SkuID == uuid.Nil {
		return errors.New(errors.CodeValidation, "sku id is required")
	}
	if input.Qty <= 0 {
		return errors.New(errors.CodeValidation, "qty must be positive")
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return errors.New(errors.CodeValidation, "idempotency key is required")
	}
	if !input.OperationType.IsValid() {
		return errors.New(errors.CodeValidation, fmt.Sprintf("invalid operation type %q", input.OperationType))
	}

	switch input.OperationType {
	case enums.OperationTypeReceipt:
		if input.ToLocationID == nil {
			return errors.New(errors.CodeValidation, "receipt requires a destination location")
		}
		if input.FromLocationID != nil {
			return errors.New(errors.CodeValidation, "receipt cannot have a source location")
		}
	case enums.OperationTypeDelivery:
		if input.FromLocationID == nil {
			return errors.New(errors.CodeValidation, "delivery requires a source location")
		}
		if input.ToLocationID != nil {
			return errors.New(errors.CodeValidation, "delivery cannot have a destination location")
		}
	default:
		if input.FromLocationID == nil || input.ToLocationID == nil {
			return errors.New(errors.CodeValidation,
				fmt.Sprintf("%s requires both source and destination locations", input.OperationType))
		}
		if *input.FromLocationID == *input.ToLocationID {
			return errors.New(errors.CodeValidation, "source and destination must differ")
		}
	}
	return nil
}

func (s *service) ListBalances(ctx context.Context, filter BalanceFilter, params pagination.Params) (pagination.Page[BalanceView], error) {
	rows, total, err := s.repo.ListBalances(ctx, filter, params)
	if err != nil {
		return pagination.Page[BalanceView]{}, errors.Wrap(errors.CodeInternal, err, "listing balances")
	}
	return pagination.NewPage(rows, total, params), nil
}

func (s *service) SkuInventory(ctx context.Context, skuID uuid.UUID) (*InventorySummary, error) {
	if skuID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "sku id is required")
	}
	rows, err := s.repo.SkuBalances(ctx, skuID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading sku inventory")
	}
	return summarize(rows), nil
}

func (s *service) LocationInventory(ctx context.Context, locationID uuid.UUID) (*InventorySummary, error) {
	if locationID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "location id is required")
	}
	rows, err := s.repo.LocationBalances(ctx, locationID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading location inventory")
	}
	return summarize(rows), nil
}

func (s *service) ListLedger(ctx context.Context, filter EntryFilter, params pagination.Params) (pagination.Page[EntryView], error) {
	rows, total, err := s.repo.ListEntries(ctx, filter, params)
	if err != nil {
		return pagination.Page[EntryView]{}, errors.Wrap(errors.CodeInternal, err, "listing ledger")
	}
	return pagination.NewPage(rows, total, params), nil
}

func (s *service) TotalStock(ctx context.Context, skuID uuid.UUID) (int, error) {
	if skuID == uuid.Nil {
		return 0, errors.New(errors.CodeValidation, "sku id is required")
	}
	total, err := s.repo.TotalStock(ctx, skuID)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "computing total stock")
	}
	return total, nil
}

func (s *service) LowStockBalances(ctx context.Context, threshold int, params pagination.Params) (pagination.Page[BalanceView], error) {
	if threshold <= 0 {
		return pagination.Page[BalanceView]{}, errors.New(errors.CodeValidation, "threshold must be positive")
	}
	rows, total, err := s.repo.LowStockBalances(ctx, threshold, params)
	if err != nil {
		return pagination.Page[BalanceView]{}, errors.Wrap(errors.CodeInternal, err, "listing low stock")
	}
	return pagination.NewPage(rows, total, params), nil
}

func summarize(rows []BalanceView) *InventorySummary {
	if rows == nil {
		rows = []BalanceView{}
	}
	total := 0
	for _, row := range rows {
		total += row.Qty
	}
	return &InventorySummary{Balances: rows, TotalQty: total}
}

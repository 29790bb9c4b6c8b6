package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/novagile/wareflow-backend/pkg/config"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	"github.com/novagile/wareflow-backend/pkg/errors"
	"github.com/novagile/wareflow-backend/pkg/pagination"
)

type balanceKey struct {
	sku uuid.UUID
	loc uuid.UUID
}

type fakeRepo struct {
	skus     map[uuid.UUID]bool
	balances map[balanceKey]*models.StockBalance
	entries  []*models.StockLedgerEntry
	byKey    map[string]*models.StockLedgerEntry

	// casFailures, when positive, makes UpdateBalanceCAS lose that many times
	casFailures int
	casCalls    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		skus:     make(map[uuid.UUID]bool),
		balances: make(map[balanceKey]*models.StockBalance),
		byKey:    make(map[string]*models.StockLedgerEntry),
	}
}

func (f *fakeRepo) seedSku(sku uuid.UUID) {
	f.skus[sku] = true
}

func (f *fakeRepo) seedBalance(sku, loc uuid.UUID, qty, version int) {
	f.seedSku(sku)
	f.balances[balanceKey{sku, loc}] = &models.StockBalance{
		SkuID: sku, LocationID: loc, Qty: qty, Version: version,
	}
}

func (f *fakeRepo) SkuExists(ctx context.Context, skuID uuid.UUID) (bool, error) {
	return f.skus[skuID], nil
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) GetBalance(ctx context.Context, skuID, locationID uuid.UUID) (*models.StockBalance, error) {
	b, ok := f.balances[balanceKey{skuID, locationID}]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (f *fakeRepo) CreateBalance(ctx context.Context, balance *models.StockBalance) error {
	key := balanceKey{balance.SkuID, balance.LocationID}
	if _, exists := f.balances[key]; exists {
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	f.balances[key] = &models.StockBalance{SkuID: balance.SkuID, LocationID: balance.LocationID}
	return nil
}

func (f *fakeRepo) UpdateBalanceCAS(ctx context.Context, skuID, locationID uuid.UUID, newQty, expectedVersion int) (bool, error) {
	f.casCalls++
	if f.casFailures > 0 {
		f.casFailures--
		return false, nil
	}
	key := balanceKey{skuID, locationID}
	b, ok := f.balances[key]
	if !ok || b.Version != expectedVersion {
		return false, nil
	}
	b.Qty = newQty
	b.Version = expectedVersion + 1
	return true, nil
}

func (f *fakeRepo) CreateEntry(ctx context.Context, entry *models.StockLedgerEntry) error {
	if entry.IdempotencyKey != nil {
		if _, exists := f.byKey[*entry.IdempotencyKey]; exists {
			return fmt.Errorf("duplicate key value violates unique constraint %q", "ux_stock_ledger_idempotency_key")
		}
		f.byKey[*entry.IdempotencyKey] = entry
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeRepo) GetEntryByIdempotencyKey(ctx context.Context, key string) (*models.StockLedgerEntry, error) {
	return f.byKey[key], nil
}

func (f *fakeRepo) ListEntries(ctx context.Context, filter EntryFilter, params pagination.Params) ([]EntryView, int64, error) {
	out := make([]EntryView, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, EntryView{
			ID:             e.ID,
			Ts:             e.Ts,
			SkuID:          e.SkuID,
			FromLocationID: e.FromLocationID,
			ToLocationID:   e.ToLocationID,
			QtyDelta:       e.QtyDelta,
			OperationType:  e.OperationType,
			UserID:         e.UserID,
			OrderID:        e.OrderID,
			TaskID:         e.TaskID,
		})
	}
	return out, int64(len(out)), nil
}

func (f *fakeRepo) ListBalances(ctx context.Context, filter BalanceFilter, params pagination.Params) ([]BalanceView, int64, error) {
	return nil, 0, nil
}

func (f *fakeRepo) SkuBalances(ctx context.Context, skuID uuid.UUID) ([]BalanceView, error) {
	var rows []BalanceView
	for key, b := range f.balances {
		if key.sku == skuID {
			rows = append(rows, BalanceView{SkuID: b.SkuID, LocationID: b.LocationID, Qty: b.Qty})
		}
	}
	return rows, nil
}

func (f *fakeRepo) LocationBalances(ctx context.Context, locationID uuid.UUID) ([]BalanceView, error) {
	return nil, nil
}

func (f *fakeRepo) TotalStock(ctx context.Context, skuID uuid.UUID) (int, error) {
	total := 0
	for key, b := range f.balances {
		if key.sku == skuID {
			total += b.Qty
		}
	}
	return total, nil
}

func (f *fakeRepo) LowStockBalances(ctx context.Context, threshold int, params pagination.Params) ([]BalanceView, int64, error) {
	return nil, 0, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func newTestService(t *testing.T, repo *fakeRepo) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{}, nil, nil, nil, config.LedgerConfig{
		MaxRetries:      3,
		RetryBackoffMin: time.Microsecond,
		RetryBackoffMax: 2 * time.Microsecond,
	}, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestApplyMovementReceiptCreatesBalance(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	sku := uuid.New()
	dest := uuid.New()
	repo.seedSku(sku)

	result, err := svc.ApplyMovement(context.Background(), ApplyMovementInput{
		SkuID:          sku,
		ToLocationID:   &dest,
		Qty:            10,
		OperationType:  enums.OperationTypeReceipt,
		IdempotencyKey: "receipt-1",
	})
	if err != nil {
		t.Fatalf("ApplyMovement failed: %v", err)
	}
	if result.Replayed {
		t.Fatal("fresh movement should not be a replay")
	}
	if result.Entry.QtyDelta != 10 {
		t.Fatalf("expected delta 10, got %d", result.Entry.QtyDelta)
	}

	balance := repo.balances[balanceKey{sku, dest}]
	if balance == nil {
		t.Fatal("expected destination balance to exist")
	}
	if balance.Qty != 10 {
		t.Fatalf("expected qty 10, got %d", balance.Qty)
	}
	if balance.Version != 1 {
		t.Fatalf("expected version 1 after first write, got %d", balance.Version)
	}
}

func TestApplyMovementTransferMovesStock(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	sku := uuid.New()
	from := uuid.New()
	to := uuid.New()
	repo.seedBalance(sku, from, 50, 3)

	result, err := svc.ApplyMovement(context.Background(), ApplyMovementInput{
		SkuID:          sku,
		FromLocationID: &from,
		ToLocationID:   &to,
		Qty:            20,
		OperationType:  enums.OperationTypeTransfer,
		IdempotencyKey: "transfer-1",
	})
	if err != nil {
		t.Fatalf("ApplyMovement failed: %v", err)
	}
	if result.Entry.QtyDelta != 20 {
		t.Fatalf("expected delta 20, got %d", result.Entry.QtyDelta)
	}

	if got := repo.balances[balanceKey{sku, from}].Qty; got != 30 {
		t.Fatalf("expected source qty 30, got %d", got)
	}
	if got := repo.balances[balanceKey{sku, from}].Version; got != 4 {
		t.Fatalf("expected source version bump to 4, got %d", got)
	}
	if got := repo.balances[balanceKey{sku, to}].Qty; got != 20 {
		t.Fatalf("expected destination qty 20, got %d", got)
	}
}

func TestApplyMovementInsufficientStock(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	sku := uuid.New()
	from := uuid.New()
	repo.seedBalance(sku, from, 5, 0)

	_, err := svc.ApplyMovement(context.Background(), ApplyMovementInput{
		SkuID:          sku,
		FromLocationID: &from,
		Qty:            6,
		OperationType:  enums.OperationTypeDelivery,
		IdempotencyKey: "delivery-1",
	})
	if !errors.HasCode(err, errors.CodeInsufficientStock) {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}

	// missing balance counts as zero stock
	_, err = svc.ApplyMovement(context.Background(), ApplyMovementInput{
		SkuID:          sku,
		FromLocationID: ptr(uuid.New()),
		Qty:            1,
		OperationType:  enums.OperationTypeDelivery,
		IdempotencyKey: "delivery-2",
	})
	if !errors.HasCode(err, errors.CodeInsufficientStock) {
		t.Fatalf("expected INSUFFICIENT_STOCK for missing balance, got %v", err)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("no ledger entries should exist, got %d", len(repo.entries))
	}
}

func TestApplyMovementRetriesVersionRace(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	sku := uuid.New()
	from := uuid.New()
	to := uuid.New()
	repo.seedBalance(sku, from, 10, 0)
	repo.casFailures = 2

	result, err := svc.ApplyMovement(context.Background(), ApplyMovementInput{
		SkuID:          sku,
		FromLocationID: &from,
		ToLocationID:   &to,
		Qty:            10,
		OperationType:  enums.OperationTypePicking,
		IdempotencyKey: "pick-1",
	})
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if result.Replayed {
		t.Fatal("unexpected replay")
	}
	if got := repo.balances[balanceKey{sku, from}].Qty; got != 0 {
		t.Fatalf("expected source drained, got %d", got)
	}
}

func TestApplyMovementGivesUpAfterMaxRetries(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	sku := uuid.New()
	from := uuid.New()
	to := uuid.New()
	repo.seedBalance(sku, from, 10, 0)
	repo.casFailures = 10

	_, err := svc.ApplyMovement(context.Background(), ApplyMovementInput{
		SkuID:          sku,
		FromLocationID: &from,
		ToLocationID:   &to,
		Qty:            1,
		OperationType:  enums.OperationTypeTransfer,
		IdempotencyKey: "transfer-2",
	})
	if !errors.HasCode(err, errors.CodeConcurrency) {
		t.Fatalf("expected CONCURRENT_MODIFICATION, got %v", err)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("no ledger entries should exist after losing, got %d", len(repo.entries))
	}
}

func TestApplyMovementIdempotentReplay(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	sku := uuid.New()
	dest := uuid.New()
	repo.seedSku(sku)
	input := ApplyMovementInput{
		SkuID:          sku,
		ToLocationID:   &dest,
		Qty:            7,
		OperationType:  enums.OperationTypeReceipt,
		IdempotencyKey: "movement-abc",
	}

	first, err := svc.ApplyMovement(context.Background(), input)
	if err != nil {
		t.Fatalf("first movement failed: %v", err)
	}

	second, err := svc.ApplyMovement(context.Background(), input)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !second.Replayed {
		t.Fatal("expected replay")
	}
	if second.Entry.ID != first.Entry.ID {
		t.Fatal("replay should surface the original entry")
	}
	if got := repo.balances[balanceKey{sku, dest}].Qty; got != 7 {
		t.Fatalf("replay must not move stock again, got qty %d", got)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected a single ledger entry, got %d", len(repo.entries))
	}
}

func TestApplyMovementValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	sku := uuid.New()
	loc := uuid.New()

	tests := []struct {
		name  string
		input ApplyMovementInput
	}{
		{name: "missing sku", input: ApplyMovementInput{IdempotencyKey: "k", Qty: 1, OperationType: enums.OperationTypeReceipt, ToLocationID: &loc}},
		{name: "missing idempotency key", input: ApplyMovementInput{SkuID: sku, Qty: 1, OperationType: enums.OperationTypeReceipt, ToLocationID: &loc}},
		{name: "zero qty", input: ApplyMovementInput{IdempotencyKey: "k", SkuID: sku, Qty: 0, OperationType: enums.OperationTypeReceipt, ToLocationID: &loc}},
		{name: "negative qty", input: ApplyMovementInput{IdempotencyKey: "k", SkuID: sku, Qty: -3, OperationType: enums.OperationTypeReceipt, ToLocationID: &loc}},
		{name: "bad operation", input: ApplyMovementInput{IdempotencyKey: "k", SkuID: sku, Qty: 1, OperationType: enums.OperationType("TELEPORT"), ToLocationID: &loc}},
		{name: "receipt without destination", input: ApplyMovementInput{IdempotencyKey: "k", SkuID: sku, Qty: 1, OperationType: enums.OperationTypeReceipt}},
		{name: "receipt with source", input: ApplyMovementInput{IdempotencyKey: "k", SkuID: sku, Qty: 1, OperationType: enums.OperationTypeReceipt, FromLocationID: &loc, ToLocationID: ptr(uuid.New())}},
		{name: "delivery without source", input: ApplyMovementInput{IdempotencyKey: "k", SkuID: sku, Qty: 1, OperationType: enums.OperationTypeDelivery}},
		{name: "transfer missing endpoint", input: ApplyMovementInput{IdempotencyKey: "k", SkuID: sku, Qty: 1, OperationType: enums.OperationTypeTransfer, FromLocationID: &loc}},
		{name: "transfer same endpoints", input: ApplyMovementInput{IdempotencyKey: "k", SkuID: sku, Qty: 1, OperationType: enums.OperationTypeTransfer, FromLocationID: &loc, ToLocationID: &loc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ApplyMovement(context.Background(), tt.input)
			if !errors.HasCode(err, errors.CodeValidation) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestDeliveryRecordsMovementMagnitude(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	sku := uuid.New()
	from := uuid.New()
	repo.seedBalance(sku, from, 9, 0)

	result, err := svc.ApplyMovement(context.Background(), ApplyMovementInput{
		SkuID:          sku,
		FromLocationID: &from,
		Qty:            4,
		OperationType:  enums.OperationTypeDelivery,
		IdempotencyKey: "delivery-3",
	})
	if err != nil {
		t.Fatalf("ApplyMovement failed: %v", err)
	}
	// qty_delta stores the magnitude; direction lives in the endpoints
	if result.Entry.QtyDelta != 4 {
		t.Fatalf("expected delta 4, got %d", result.Entry.QtyDelta)
	}
	if result.Entry.FromLocationID == nil || result.Entry.ToLocationID != nil {
		t.Fatal("delivery entry must carry only a source endpoint")
	}
	if got := repo.balances[balanceKey{sku, from}].Qty; got != 5 {
		t.Fatalf("expected source qty 5, got %d", got)
	}
}

func TestApplyMovementUnknownSku(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	dest := uuid.New()
	_, err := svc.ApplyMovement(context.Background(), ApplyMovementInput{
		SkuID:          uuid.New(),
		ToLocationID:   &dest,
		Qty:            3,
		OperationType:  enums.OperationTypeReceipt,
		IdempotencyKey: "receipt-2",
	})
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("no ledger entries should exist, got %d", len(repo.entries))
	}
}

func TestSkuInventorySummarizes(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	sku := uuid.New()
	repo.seedBalance(sku, uuid.New(), 12, 0)
	repo.seedBalance(sku, uuid.New(), 8, 0)
	repo.seedBalance(uuid.New(), uuid.New(), 99, 0)

	summary, err := svc.SkuInventory(context.Background(), sku)
	if err != nil {
		t.Fatalf("SkuInventory failed: %v", err)
	}
	if summary.TotalQty != 20 {
		t.Fatalf("expected total 20, got %d", summary.TotalQty)
	}
	if len(summary.Balances) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(summary.Balances))
	}
}

func ptr[T any](v T) *T { return &v }

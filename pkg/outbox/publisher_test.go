package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/novagile/wareflow-backend/pkg/config"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec("DELETE FROM outbox_events").Error)
	return db
}

func insertOutboxRow(t *testing.T, db *gorm.DB, attempts int) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventTaskAssigned,
		AggregateType: enums.AggregateOperationTask,
		AggregateID:   uuid.NewString(),
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
		AttemptCount:  attempts,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

type fakeSink struct {
	published []map[string]string
	fail      bool
}

func (f *fakeSink) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	if f.fail {
		return errors.New("transport down")
	}
	f.published = append(f.published, attributes)
	return nil
}

func TestPublishPendingMarksRowsPublished(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	sink := &fakeSink{}
	pub, err := NewPublisher(repo, sink, config.OutboxConfig{BatchSize: 10, MaxAttempts: 3}, nil, nil)
	require.NoError(t, err)

	row := insertOutboxRow(t, db, 0)

	published, err := pub.PublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	require.Len(t, sink.published, 1)
	assert.Equal(t, string(enums.EventTaskAssigned), sink.published[0]["event_type"])

	var stored models.OutboxEvent
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	assert.NotNil(t, stored.PublishedAt)

	// drained rows stay drained
	published, err = pub.PublishPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, published)
}

func TestPublishPendingRecordsFailures(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	sink := &fakeSink{fail: true}
	pub, err := NewPublisher(repo, sink, config.OutboxConfig{BatchSize: 10, MaxAttempts: 3}, nil, nil)
	require.NoError(t, err)

	row := insertOutboxRow(t, db, 0)

	published, err := pub.PublishPending(context.Background())
	require.Error(t, err)
	assert.Zero(t, published)

	var stored models.OutboxEvent
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	assert.Nil(t, stored.PublishedAt)
	assert.Equal(t, 1, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "transport down")
}

func TestPublishPendingSkipsPoisonRows(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	sink := &fakeSink{}
	pub, err := NewPublisher(repo, sink, config.OutboxConfig{BatchSize: 10, MaxAttempts: 3}, nil, nil)
	require.NoError(t, err)

	insertOutboxRow(t, db, 3)

	published, err := pub.PublishPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, published)
	assert.Empty(t, sink.published)
}

func TestEmitStoresEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	taskID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventTaskAssigned,
			AggregateType: enums.AggregateOperationTask,
			AggregateID:   taskID.String(),
			Actor:         &ActorRef{UserID: uuid.New(), Role: "ADMIN"},
			Data:          TaskAssignedEvent{TaskID: taskID, EmployeeID: uuid.New()},
			Version:       1,
		})
	})
	require.NoError(t, err)

	var stored models.OutboxEvent
	require.NoError(t, db.First(&stored, "aggregate_id = ?", taskID.String()).Error)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(stored.Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, "ADMIN", envelope.Actor.Role)
}

package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/novagile/wareflow-backend/pkg/config"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/logger"
	"github.com/novagile/wareflow-backend/pkg/metrics"
)

// MessagePublisher abstracts the transport the publisher drains events into.
type MessagePublisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

// Publisher drains unpublished outbox rows into the domain events topic.
type Publisher struct {
	repo        *Repository
	sink        MessagePublisher
	logg        *logger.Logger
	jobs        *metrics.JobMetrics
	batchSize   int
	maxAttempts int
}

func NewPublisher(repo *Repository, sink MessagePublisher, cfg config.OutboxConfig, logg *logger.Logger, jobs *metrics.JobMetrics) (*Publisher, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("message publisher is required")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Publisher{
		repo:        repo,
		sink:        sink,
		logg:        logg,
		jobs:        jobs,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}, nil
}

// PublishPending pushes one batch and reports how many rows were published.
// Failed rows keep their attempt counter and stay in the table; rows past
// maxAttempts are skipped so a poison event cannot wedge the loop.
func (p *Publisher) PublishPending(ctx context.Context) (int, error) {
	start := time.Now()
	rows, err := p.repo.FetchUnpublished(p.batchSize)
	if err != nil {
		p.jobs.IncFailure("outbox-publisher")
		return 0, fmt.Errorf("fetching unpublished events: %w", err)
	}

	var published int
	var errs error
	for _, row := range rows {
		if row.AttemptCount >= p.maxAttempts {
			continue
		}
		if err := p.publishRow(ctx, row); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("event %s: %w", row.ID, err))
			continue
		}
		published++
	}

	p.jobs.ObserveDuration("outbox-publisher", time.Since(start))
	if errs != nil {
		p.jobs.IncFailure("outbox-publisher")
	} else {
		p.jobs.IncSuccess("outbox-publisher")
	}
	return published, errs
}

// Run polls until the context is cancelled.
func (p *Publisher) Run(ctx context.Context, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.PublishPending(ctx); err != nil && p.logg != nil {
				p.logg.Error(ctx, "outbox publish batch failed", err)
			}
		}
	}
}

func (p *Publisher) publishRow(ctx context.Context, row models.OutboxEvent) error {
	attributes := map[string]string{
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID,
	}
	if err := p.sink.Publish(ctx, row.Payload, attributes); err != nil {
		if markErr := p.repo.MarkFailed(row.ID, err); markErr != nil {
			return multierr.Append(err, markErr)
		}
		return err
	}
	if err := p.repo.MarkPublished(row.ID); err != nil {
		return fmt.Errorf("marking event published: %w", err)
	}
	if p.logg != nil {
		p.logg.Info(p.logg.WithField(ctx, "event_type", string(row.EventType)), "outbox event published")
	}
	return nil
}

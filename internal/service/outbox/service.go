package outbox

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"quickcart/internal/model"
	"quickcart/internal/monitor"
	"quickcart/internal/repository"
	"quickcart/pkg/log"
)

// Service writes events atomically with the mutations that cause them
// and later dispatches them out of band. WriteEvent must run on the
// same transaction handle as the triggering mutation so the event and
// the business fact commit or roll back together.
type Service interface {
	WriteEvent(ctx context.Context, tx *gorm.DB, eventType EventType, payload any) error
	// WriteEventDirect is for mutations with no natural transaction
	// boundary; the event is committed on its own.
	WriteEventDirect(ctx context.Context, eventType EventType, payload any) error
	// Dispatch drains one batch of pending events. The caller serializes
	// invocations across processes with a distributed lock.
	Dispatch(ctx context.Context) (DispatchStats, error)
	// CleanupCompleted deletes completed events older than the retention
	// window and reports how many dead events remain for inspection.
	CleanupCompleted(ctx context.Context) (int64, error)
}

// DispatchStats summarizes one dispatcher pass.
type DispatchStats struct {
	Picked    int
	Completed int
	Failed    int
}

type Config struct {
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
	// Metrics is optional; a nil collector disables recording.
	Metrics *monitor.Collector
}

type service struct {
	repo      repository.OutboxRepository
	publisher Publisher
	cfg       Config
}

func NewService(repo repository.OutboxRepository, publisher Publisher, cfg Config) Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &service{repo: repo, publisher: publisher, cfg: cfg}
}

func (s *service) WriteEvent(ctx context.Context, tx *gorm.DB, eventType EventType, payload any) error {
	event, err := newEvent(eventType, payload)
	if err != nil {
		return err
	}
	return s.repo.WithTx(tx).Create(ctx, event)
}

func (s *service) WriteEventDirect(ctx context.Context, eventType EventType, payload any) error {
	event, err := newEvent(eventType, payload)
	if err != nil {
		return err
	}
	return s.repo.Create(ctx, event)
}

func newEvent(eventType EventType, payload any) (*model.OutboxEvent, error) {
	if _, err := ChannelFor(eventType); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &model.OutboxEvent{
		Type:    string(eventType),
		Payload: string(data),
		Status:  model.OutboxStatusPending,
	}, nil
}

func (s *service) Dispatch(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats

	events, err := s.repo.ListDispatchable(ctx, s.cfg.MaxRetries, s.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Picked = len(events)

	logger := log.WithComponent("outbox")
	for _, event := range events {
		if err := s.repo.MarkProcessing(ctx, event.ID); err != nil {
			logger.WithError(err).WithField("event_id", event.ID).Warn("could not claim event")
			continue
		}

		if err := s.deliver(ctx, event); err != nil {
			stats.Failed++
			logger.WithError(err).WithFields(map[string]any{
				"event_id": event.ID,
				"type":     event.Type,
				"retries":  event.Retries + 1,
			}).Warn("event delivery failed")
			if markErr := s.repo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				logger.WithError(markErr).WithField("event_id", event.ID).Error("could not record failure")
			}
			continue
		}

		stats.Completed++
		if err := s.repo.MarkCompleted(ctx, event.ID, time.Now()); err != nil {
			logger.WithError(err).WithField("event_id", event.ID).Error("delivered but could not mark completed")
		}
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordOutboxDispatch(stats.Completed, stats.Failed)
	}
	return stats, nil
}

func (s *service) deliver(ctx context.Context, event *model.OutboxEvent) error {
	channel, err := ChannelFor(EventType(event.Type))
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, channel, []byte(event.Payload))
}

func (s *service) CleanupCompleted(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.Retention)
	removed, err := s.repo.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	dead, err := s.repo.CountDead(ctx, s.cfg.MaxRetries)
	if err != nil {
		return removed, err
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SetOutboxDeadEvents(dead)
	}
	logger := log.WithComponent("outbox")
	if dead > 0 {
		logger.WithField("dead_events", dead).Warn("events exhausted retries and need manual inspection")
	}
	if removed > 0 {
		logger.WithField("removed", removed).Info("completed events purged")
	}
	return removed, nil
}

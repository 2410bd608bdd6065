package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"quickcart/internal/model"
	"quickcart/internal/monitor"
	"quickcart/internal/repository"
)

type fakeOutboxRepo struct {
	mu     sync.Mutex
	nextID uint64
	events map[uint64]*model.OutboxEvent
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{events: make(map[uint64]*model.OutboxEvent)}
}

func (r *fakeOutboxRepo) WithTx(tx *gorm.DB) repository.OutboxRepository { return r }

func (r *fakeOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.ID = r.nextID
	event.CreatedAt = time.Now()
	clone := *event
	r.events[event.ID] = &clone
	return nil
}

func (r *fakeOutboxRepo) ListDispatchable(ctx context.Context, maxRetries, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.events {
		dispatchable := e.Status == model.OutboxStatusPending ||
			(e.Status == model.OutboxStatusFailed && e.Retries < maxRetries)
		if dispatchable {
			clone := *e
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeOutboxRepo) MarkProcessing(ctx context.Context, id uint64) error {
	return r.setStatus(id, model.OutboxStatusProcessing)
}

func (r *fakeOutboxRepo) MarkCompleted(ctx context.Context, id uint64, processedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = model.OutboxStatusCompleted
	e.ProcessedAt = &processedAt
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, id uint64, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = model.OutboxStatusFailed
	e.Retries++
	e.LastError = &lastError
	return nil
}

func (r *fakeOutboxRepo) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, e := range r.events {
		if e.Status == model.OutboxStatusCompleted && e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			delete(r.events, id)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeOutboxRepo) CountDead(ctx context.Context, maxRetries int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dead int64
	for _, e := range r.events {
		if e.Status == model.OutboxStatusFailed && e.Retries >= maxRetries {
			dead++
		}
	}
	return dead, nil
}

func (r *fakeOutboxRepo) setStatus(id uint64, status model.OutboxStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = status
	return nil
}

func (r *fakeOutboxRepo) get(id uint64) *model.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *r.events[id]
	return &clone
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	failures  int
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, channel)
	return nil
}

func newTestService(repo *fakeOutboxRepo, pub *fakePublisher) Service {
	return NewService(repo, pub, Config{BatchSize: 20, MaxRetries: 5, Retention: 7 * 24 * time.Hour})
}

func TestWriteEventAndDispatch(t *testing.T) {
	repo := newFakeOutboxRepo()
	pub := &fakePublisher{}
	svc := newTestService(repo, pub)

	err := svc.WriteEventDirect(context.Background(), EventOrderCreated, OrderCreatedPayload{
		OrderID: 1, OrderNo: "QC1", UserID: 7, TotalAmount: 5000,
	})
	require.NoError(t, err)

	stats, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Picked)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, []string{"events:order:created"}, pub.published)

	e := repo.get(1)
	assert.Equal(t, model.OutboxStatusCompleted, e.Status)
	require.NotNil(t, e.ProcessedAt)

	var payload OrderCreatedPayload
	require.NoError(t, json.Unmarshal([]byte(e.Payload), &payload))
	assert.Equal(t, "QC1", payload.OrderNo)
}

func TestWriteEventRejectsUnknownType(t *testing.T) {
	svc := newTestService(newFakeOutboxRepo(), &fakePublisher{})
	err := svc.WriteEventDirect(context.Background(), EventType("SOMETHING_ELSE"), nil)
	assert.Error(t, err)
}

func TestDispatchRetriesFailures(t *testing.T) {
	repo := newFakeOutboxRepo()
	pub := &fakePublisher{failures: 1}
	svc := newTestService(repo, pub)

	require.NoError(t, svc.WriteEventDirect(context.Background(), EventPaymentSuccess, PaymentSuccessPayload{OrderID: 1}))

	stats, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	e := repo.get(1)
	assert.Equal(t, model.OutboxStatusFailed, e.Status)
	assert.Equal(t, 1, e.Retries)
	require.NotNil(t, e.LastError)

	// Second pass succeeds.
	stats, err = svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, model.OutboxStatusCompleted, repo.get(1).Status)
}

func TestDispatchStopsAtRetryCeiling(t *testing.T) {
	repo := newFakeOutboxRepo()
	pub := &fakePublisher{failures: 100}
	svc := newTestService(repo, pub)

	require.NoError(t, svc.WriteEventDirect(context.Background(), EventOrderCancelled, OrderCancelledPayload{OrderID: 1}))

	for i := 0; i < 10; i++ {
		_, err := svc.Dispatch(context.Background())
		require.NoError(t, err)
	}

	e := repo.get(1)
	assert.Equal(t, model.OutboxStatusFailed, e.Status)
	assert.Equal(t, 5, e.Retries)

	dead, err := repo.CountDead(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestDispatchBatchLimit(t *testing.T) {
	repo := newFakeOutboxRepo()
	pub := &fakePublisher{}
	svc := NewService(repo, pub, Config{BatchSize: 3, MaxRetries: 5, Retention: time.Hour})

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.WriteEventDirect(context.Background(), EventStockDeducted, StockDeductedPayload{OrderID: uint64(i)}))
	}

	stats, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Picked)

	stats, err = svc.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Picked)
}

func TestDispatchRecordsMetrics(t *testing.T) {
	repo := newFakeOutboxRepo()
	pub := &fakePublisher{failures: 1}
	metrics := monitor.NewCollector()
	svc := NewService(repo, pub, Config{BatchSize: 20, MaxRetries: 1, Retention: time.Hour, Metrics: metrics})

	require.NoError(t, svc.WriteEventDirect(context.Background(), EventOrderCreated, OrderCreatedPayload{OrderID: 1}))
	require.NoError(t, svc.WriteEventDirect(context.Background(), EventOrderCreated, OrderCreatedPayload{OrderID: 2}))

	_, err := svc.Dispatch(context.Background())
	require.NoError(t, err)

	// One event is now FAILED at the retry ceiling; cleanup reports it
	// on the dead gauge.
	_, err = svc.CleanupCompleted(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `outbox_events_dispatched_total{status="completed"} 1`)
	assert.Contains(t, body, `outbox_events_dispatched_total{status="failed"} 1`)
	assert.Contains(t, body, "outbox_dead_events 1")
}

func TestCleanupCompleted(t *testing.T) {
	repo := newFakeOutboxRepo()
	pub := &fakePublisher{}
	svc := NewService(repo, pub, Config{BatchSize: 20, MaxRetries: 5, Retention: time.Hour})

	require.NoError(t, svc.WriteEventDirect(context.Background(), EventOrderCreated, OrderCreatedPayload{OrderID: 1}))
	_, err := svc.Dispatch(context.Background())
	require.NoError(t, err)

	// Still inside the retention window.
	removed, err := svc.CleanupCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, repo.MarkCompleted(context.Background(), 1, old))

	removed, err = svc.CleanupCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestChannelForCoversAllTypes(t *testing.T) {
	for _, typ := range []EventType{
		EventOrderCreated, EventPaymentSuccess, EventStockDeducted,
		EventOrderStatusChanged, EventOrderCancelled,
	} {
		channel, err := ChannelFor(typ)
		require.NoError(t, err)
		assert.NotEmpty(t, channel)
	}
	_, err := ChannelFor("BOGUS")
	assert.Error(t, err)
}

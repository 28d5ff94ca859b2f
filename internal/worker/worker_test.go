package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ackRecord struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records map[uint64]*ackRecord
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{records: make(map[uint64]*ackRecord)}
}

func (a *fakeAcknowledger) record(tag uint64) *ackRecord {
	r, ok := a.records[tag]
	if !ok {
		r = &ackRecord{}
		a.records[tag] = r
	}
	return r
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record(tag).acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.record(tag)
	r.nacked = true
	r.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) get(tag uint64) ackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.record(tag)
}

type republished struct {
	body    []byte
	headers amqp.Table
}

type fakeSource struct {
	mu           sync.Mutex
	deliveries   chan amqp.Delivery
	republished  []republished
	republishErr error
}

func (s *fakeSource) Consume() (<-chan amqp.Delivery, error) {
	return s.deliveries, nil
}

func (s *fakeSource) Republish(ctx context.Context, msg amqp.Delivery, headers amqp.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.republishErr != nil {
		return s.republishErr
	}
	s.republished = append(s.republished, republished{body: msg.Body, headers: headers})
	return nil
}

type handlerFunc func(ctx context.Context, taskID uuid.UUID) error

func (f handlerFunc) Handle(ctx context.Context, taskID uuid.UUID) error {
	return f(ctx, taskID)
}

func newTestWorker(source *fakeSource, handler TaskHandler) *ProcessingWorker {
	return NewProcessingWorker(source, handler, Config{Concurrency: 2, MaxRetries: 3}, zap.NewNop())
}

func delivery(ack amqp.Acknowledger, tag uint64, body string, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		Body:         []byte(body),
		Headers:      headers,
	}
}

func jobBody(id uuid.UUID) string {
	return `{"task_id":"` + id.String() + `"}`
}

func TestProcess_AcksOnSuccess(t *testing.T) {
	ack := newFakeAcknowledger()
	id := uuid.New()
	var got uuid.UUID
	w := newTestWorker(&fakeSource{}, handlerFunc(func(ctx context.Context, taskID uuid.UUID) error {
		got = taskID
		return nil
	}))

	w.process(context.Background(), zap.NewNop(), delivery(ack, 1, jobBody(id), nil))

	assert.Equal(t, id, got)
	assert.Equal(t, ackRecord{acked: true}, ack.get(1))
	assert.Equal(t, int64(1), w.Stats().Snapshot().Processed)
}

func TestProcess_DeadLettersMalformedMessages(t *testing.T) {
	called := false
	w := newTestWorker(&fakeSource{}, handlerFunc(func(ctx context.Context, taskID uuid.UUID) error {
		called = true
		return nil
	}))
	ack := newFakeAcknowledger()

	w.process(context.Background(), zap.NewNop(), delivery(ack, 1, "not json", nil))
	w.process(context.Background(), zap.NewNop(), delivery(ack, 2, `{"task_id":"nope"}`, nil))

	assert.False(t, called)
	assert.Equal(t, ackRecord{nacked: true}, ack.get(1))
	assert.Equal(t, ackRecord{nacked: true}, ack.get(2))
	assert.Equal(t, int64(2), w.Stats().Snapshot().Failed)
}

func TestProcess_RepublishesWithRetryCount(t *testing.T) {
	source := &fakeSource{}
	w := newTestWorker(source, handlerFunc(func(ctx context.Context, taskID uuid.UUID) error {
		return errors.New("database unavailable")
	}))
	ack := newFakeAcknowledger()
	body := jobBody(uuid.New())

	w.process(context.Background(), zap.NewNop(), delivery(ack, 1, body, amqp.Table{"trace": "abc"}))
	w.process(context.Background(), zap.NewNop(), delivery(ack, 2, body, amqp.Table{retryCountHeader: int32(2)}))

	assert.Equal(t, ackRecord{acked: true}, ack.get(1))
	assert.Equal(t, ackRecord{acked: true}, ack.get(2))
	require.Len(t, source.republished, 2)
	assert.Equal(t, int32(1), source.republished[0].headers[retryCountHeader])
	assert.Equal(t, "abc", source.republished[0].headers["trace"])
	assert.Equal(t, int32(3), source.republished[1].headers[retryCountHeader])
	assert.Equal(t, []byte(body), source.republished[0].body)
	assert.Equal(t, int64(2), w.Stats().Snapshot().Retried)
}

func TestProcess_DeadLettersAfterMaxRetries(t *testing.T) {
	source := &fakeSource{}
	w := newTestWorker(source, handlerFunc(func(ctx context.Context, taskID uuid.UUID) error {
		return errors.New("database unavailable")
	}))
	ack := newFakeAcknowledger()

	w.process(context.Background(), zap.NewNop(), delivery(ack, 1, jobBody(uuid.New()), amqp.Table{retryCountHeader: int32(3)}))

	assert.Equal(t, ackRecord{nacked: true}, ack.get(1))
	assert.Empty(t, source.republished)
}

func TestProcess_DeadLettersWhenRepublishFails(t *testing.T) {
	source := &fakeSource{republishErr: errors.New("channel closed")}
	w := newTestWorker(source, handlerFunc(func(ctx context.Context, taskID uuid.UUID) error {
		return errors.New("database unavailable")
	}))
	ack := newFakeAcknowledger()

	w.process(context.Background(), zap.NewNop(), delivery(ack, 1, jobBody(uuid.New()), nil))

	assert.Equal(t, ackRecord{nacked: true}, ack.get(1))
}

func TestStart_ProcessesUntilCancelled(t *testing.T) {
	source := &fakeSource{deliveries: make(chan amqp.Delivery, 10)}
	ack := newFakeAcknowledger()

	var mu sync.Mutex
	seen := map[uuid.UUID]bool{}
	done := make(chan struct{}, 10)
	w := newTestWorker(source, handlerFunc(func(ctx context.Context, taskID uuid.UUID) error {
		mu.Lock()
		seen[taskID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}))

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		source.deliveries <- delivery(ack, uint64(i+1), jobBody(id), nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	for range ids {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("jobs were not processed")
		}
	}
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		assert.True(t, seen[id])
	}
}

func TestStart_ReturnsErrorWhenDeliveriesClose(t *testing.T) {
	source := &fakeSource{deliveries: make(chan amqp.Delivery)}
	close(source.deliveries)
	w := NewProcessingWorker(source, handlerFunc(func(ctx context.Context, taskID uuid.UUID) error {
		return nil
	}), Config{Concurrency: 2, StatsInterval: time.Hour}, zap.NewNop())

	err := w.Start(context.Background())
	assert.ErrorIs(t, err, errDeliveriesClosed)
}

func TestProcess_RetryDelayEndsOnShutdown(t *testing.T) {
	source := &fakeSource{}
	w := NewProcessingWorker(source, handlerFunc(func(ctx context.Context, taskID uuid.UUID) error {
		return errors.New("database unavailable")
	}), Config{Concurrency: 1, MaxRetries: 3, RetryDelay: time.Hour}, zap.NewNop())
	ack := newFakeAcknowledger()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.process(ctx, zap.NewNop(), delivery(ack, 1, jobBody(uuid.New()), nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("retry delay ignored shutdown")
	}

	assert.Equal(t, ackRecord{acked: true}, ack.get(1))
	source.mu.Lock()
	defer source.mu.Unlock()
	require.Len(t, source.republished, 1)
	assert.Equal(t, int32(1), source.republished[0].headers[retryCountHeader])
}

func TestProcess_JobStillRunsAfterShutdown(t *testing.T) {
	var handlerErr error
	w := newTestWorker(&fakeSource{}, handlerFunc(func(ctx context.Context, taskID uuid.UUID) error {
		handlerErr = ctx.Err()
		return nil
	}))
	ack := newFakeAcknowledger()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.process(ctx, zap.NewNop(), delivery(ack, 1, jobBody(uuid.New()), nil))

	assert.NoError(t, handlerErr)
	assert.Equal(t, ackRecord{acked: true}, ack.get(1))
}

func TestProcess_DeadLettersPanickingJob(t *testing.T) {
	source := &fakeSource{}
	w := newTestWorker(source, handlerFunc(func(ctx context.Context, taskID uuid.UUID) error {
		panic("boom")
	}))
	ack := newFakeAcknowledger()

	assert.NotPanics(t, func() {
		w.process(context.Background(), zap.NewNop(), delivery(ack, 1, jobBody(uuid.New()), nil))
	})

	assert.Equal(t, ackRecord{nacked: true}, ack.get(1))
	assert.Empty(t, source.republished)
	assert.Equal(t, int64(1), w.Stats().Snapshot().Failed)
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/amrrdev/docflow/internal/types"
)

const defaultConfirmTimeout = 10 * time.Second

type Producer struct {
	client         *RabbitMQ
	queueName      string
	confirmTimeout time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	channel *amqp.Channel
}

// NewProducer declares the queues and opens a dedicated channel in confirm
// mode, so a publish only succeeds once the broker has taken the message.
func NewProducer(client *RabbitMQ, queueName, dlqName string, logger *zap.Logger) (*Producer, error) {
	if err := client.DeclareProcessingQueues(queueName, dlqName); err != nil {
		return nil, fmt.Errorf("failed to declare queues: %w", err)
	}

	p := &Producer{
		client:         client,
		queueName:      queueName,
		confirmTimeout: defaultConfirmTimeout,
		logger:         logger,
	}
	if _, err := p.confirmChannel(); err != nil {
		return nil, err
	}

	logger.Info("queues declared", zap.String("queue", queueName), zap.String("dlq", dlqName))
	return p, nil
}

// confirmChannel returns the publishing channel, opening a new one if the
// broker closed the previous one.
func (p *Producer) confirmChannel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}

	ch, err := p.client.Conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if p.channel != nil {
		p.logger.Warn("publish channel was closed, reopened it")
	}
	p.channel = ch
	return ch, nil
}

func (p *Producer) PublishProcessingJob(ctx context.Context, taskID uuid.UUID) error {
	data, err := encodeJob(taskID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	err = p.publish(ctx, taskID, data)
	if errors.Is(err, amqp.ErrClosed) {
		// The channel died between the check and the publish.
		err = p.publish(ctx, taskID, data)
	}
	if err != nil {
		return err
	}

	p.logger.Debug("job published", zap.String("task_id", taskID.String()))
	return nil
}

func (p *Producer) publish(ctx context.Context, taskID uuid.UUID, data []byte) error {
	ch, err := p.confirmChannel()
	if err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    taskID.String(),
		Timestamp:    time.Now().UTC(),
		Body:         data,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm job: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker rejected job for task %s", taskID)
	}
	return nil
}

// HealthCheck reports whether jobs can currently be published.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.client.Conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	_, err := p.confirmChannel()
	return err
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		return nil
	}
	return p.channel.Close()
}

func encodeJob(taskID uuid.UUID) ([]byte, error) {
	data, err := json.Marshal(types.ProcessingJob{TaskID: taskID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	client    *RabbitMQ
	queueName string
	dlqName   string
}

func NewConsumer(client *RabbitMQ, queueName, dlqName string, prefetch int) (*Consumer, error) {
	consumer := &Consumer{
		client:    client,
		queueName: queueName,
		dlqName:   dlqName,
	}

	if err := client.DeclareProcessingQueues(queueName, dlqName); err != nil {
		return nil, fmt.Errorf("failed to declare queues: %w", err)
	}

	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return consumer, nil
}

func (c *Consumer) Consume() (<-chan amqp.Delivery, error) {
	consumed, err := c.client.Channel.Consume(c.queueName, "ocr-worker", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s queue: %w", c.queueName, err)
	}

	return consumed, nil
}

// Republish puts a copy of a job back on the processing queue with new headers.
func (c *Consumer) Republish(ctx context.Context, msg amqp.Delivery, headers amqp.Table) error {
	err := c.client.Channel.PublishWithContext(ctx, "", c.queueName, false, false, amqp.Publishing{
		ContentType:  msg.ContentType,
		MessageId:    msg.MessageId,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("failed to republish message: %w", err)
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.client.Close()
}

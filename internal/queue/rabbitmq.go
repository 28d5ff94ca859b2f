package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a RabbitMQ channel: %w", err)
	}

	return &RabbitMQ{
		Conn:    conn,
		Channel: channel,
	}, nil
}

func (r *RabbitMQ) DeclareQueue(name string, durable bool, args amqp.Table) error {
	_, err := r.Channel.QueueDeclare(name, durable, false, false, false, args)
	if err != nil {
		return fmt.Errorf("failed to declare a %s queue: %w", name, err)
	}
	return nil
}

// DeclareProcessingQueues declares the dead-letter queue and the processing
// queue that routes rejected messages to it. Producer and consumer both call
// it so either side may start first.
func (r *RabbitMQ) DeclareProcessingQueues(queueName, dlqName string) error {
	if err := r.DeclareQueue(dlqName, true, nil); err != nil {
		return err
	}
	return r.DeclareQueue(queueName, true, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqName,
	})
}

func (r *RabbitMQ) Close() error {
	if err := r.Channel.Close(); err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if err := r.Conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

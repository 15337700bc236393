package outbox

import (
	"time"
)

// OutboxMessage represents a notification that failed to be published to
// RabbitMQ and is waiting for a retry.
type OutboxMessage struct {
	ID           int64
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}

// NewPending builds a message queued for its first delivery attempt.
func NewPending(queueName string, payload []byte, maxRetries int) OutboxMessage {
	now := time.Now()

	return OutboxMessage{
		QueueName:   queueName,
		RoutingKey:  queueName,
		Payload:     payload,
		ContentType: "application/json",
		MaxRetries:  maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now,
	}
}

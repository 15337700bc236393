package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
)

const (
	buyerQueue  = "checkout.order.confirmed"
	vendorQueue = "checkout.vendor.order_placed"
)

// orderConfirmedMessage is the payload delivered to the notification
// consumers (email dispatch lives on the other side of the queue).
type orderConfirmedMessage struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      int64  `json:"userId"`
	VendorID    int64  `json:"vendorId,omitempty"`
	TotalCents  int64  `json:"totalCents"`
	Currency    string `json:"currency"`
	ConfirmedAt string `json:"confirmedAt"`
}

// RabbitMQNotificationRepository publishes order notifications to RabbitMQ.
// Messages that cannot be published are parked in the outbox table for the
// retry worker, so a broker outage never surfaces to checkout.
type RabbitMQNotificationRepository struct {
	client     *rabbitmq.Client
	outboxRepo ioutboxrepo.IOutboxRepository
	maxRetries int
}

func NewRabbitMQNotificationRepository(
	client *rabbitmq.Client,
	outboxRepo ioutboxrepo.IOutboxRepository,
) *RabbitMQNotificationRepository {
	for _, name := range []string{buyerQueue, vendorQueue} {
		if _, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
			Name:    name,
			Durable: true,
		}); err != nil {
			panic(err)
		}
	}

	maxRetries := viper.GetInt("rabbitmq.outbox.max_retries")
	if maxRetries == 0 {
		maxRetries = 10
	}

	return &RabbitMQNotificationRepository{
		client:     client,
		outboxRepo: outboxRepo,
		maxRetries: maxRetries,
	}
}

// NotifyOrderConfirmed fans out one buyer confirmation plus one notice per
// distinct vendor on the order.
func (r *RabbitMQNotificationRepository) NotifyOrderConfirmed(ctx context.Context, o order.Order) error {
	notifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	g, notifyCtx := errgroup.WithContext(notifyCtx)
	g.SetLimit(3)

	confirmedAt := time.Now().UTC().Format(time.RFC3339)

	g.Go(func() error {
		return r.publish(notifyCtx, buyerQueue, orderConfirmedMessage{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			UserID:      o.UserID,
			TotalCents:  o.TotalCents,
			Currency:    o.Currency.String(),
			ConfirmedAt: confirmedAt,
		})
	})

	seen := make(map[int64]struct{}, len(o.Lines))
	for _, line := range o.Lines {
		if _, ok := seen[line.VendorID]; ok {
			continue
		}
		seen[line.VendorID] = struct{}{}

		vendorID := line.VendorID
		g.Go(func() error {
			return r.publish(notifyCtx, vendorQueue, orderConfirmedMessage{
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				UserID:      o.UserID,
				VendorID:    vendorID,
				TotalCents:  o.TotalCents,
				Currency:    o.Currency.String(),
				ConfirmedAt: confirmedAt,
			})
		})
	}

	return g.Wait()
}

// publish tries a direct publish and falls back to the outbox on failure.
func (r *RabbitMQNotificationRepository) publish(ctx context.Context, queue string, msg orderConfirmedMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	pubErr := r.client.Channel().Publish(
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        payload,
		},
	)
	if pubErr == nil {
		return nil
	}

	pending := outbox.NewPending(queue, payload, r.maxRetries)
	pending.LastError = pubErr.Error()

	return r.outboxRepo.Insert(ctx, pending)
}

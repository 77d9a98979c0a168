package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"eventpass/internal/domain"
)

// Config holds configuration for creating a notifier.
type Config struct {
	Provider string // "amqp" publishes to RabbitMQ; "noop" or unknown logs only
	URL      string
	Queue    string
}

// NewNotifier creates a notification sink from config. The returned Notifier
// is best effort by contract: callers fire and forget.
func NewNotifier(cfg Config, logger *slog.Logger) (domain.Notifier, error) {
	switch cfg.Provider {
	case "amqp":
		return newAMQPNotifier(cfg)
	case "noop", "":
		return &noopNotifier{logger: logger}, nil
	default:
		logger.Warn("unknown notifier provider, using noop", "provider", cfg.Provider)
		return &noopNotifier{logger: logger}, nil
	}
}

type amqpNotifier struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	// amqp channels are not safe for concurrent publishes.
	mu sync.Mutex
}

func newAMQPNotifier(cfg Config) (*amqpNotifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "registration.confirmed"
	}
	// Durable so notices survive a broker restart; declare is idempotent.
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	return &amqpNotifier{conn: conn, ch: ch, queue: queue}, nil
}

func (n *amqpNotifier) NotifyRegistration(ctx context.Context, notice domain.RegistrationNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	err = n.ch.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    notice.ConfirmedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	return nil
}

// Close releases the broker connection. Safe to call once at shutdown.
func (n *amqpNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.Close(); err != nil {
		_ = n.conn.Close()
		return err
	}
	return n.conn.Close()
}

type noopNotifier struct {
	logger *slog.Logger
}

func (n *noopNotifier) NotifyRegistration(_ context.Context, notice domain.RegistrationNotice) error {
	n.logger.Debug("registration notice (noop sink)",
		"event_id", notice.EventID, "ticket_id", notice.TicketID, "organizer_id", notice.OrganizerID)
	return nil
}

func (n *noopNotifier) Close() error { return nil }

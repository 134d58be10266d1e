package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/config"
	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

const confirmTimeout = 5 * time.Second

// DownloadPublisher announces accepted downloads on a RabbitMQ topic exchange.
type DownloadPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	mu      sync.RWMutex
}

// NewDownloadPublisher connects to the broker and declares the exchange topology.
func NewDownloadPublisher(cfg *config.RabbitMQConfig) (*DownloadPublisher, error) {
	dp := &DownloadPublisher{
		config: cfg,
	}

	if err := dp.connect(); err != nil {
		return nil, err
	}

	return dp, nil
}

func (dp *DownloadPublisher) connect() error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	connURL := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		dp.config.User, dp.config.Password, dp.config.Host, dp.config.Port)

	conn, err := amqp.Dial(connURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(
		dp.config.Exchange, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		dp.config.Queue, // name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		amqp.Table{
			"x-message-ttl": 86400000, // 24 hours
			"x-max-length":  10000,
		},
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(
		dp.config.Queue,      // queue name
		dp.config.RoutingKey, // routing key
		dp.config.Exchange,   // exchange
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	dp.conn = conn
	dp.channel = ch

	logger.Log.Info("Connected to RabbitMQ",
		zap.String("exchange", dp.config.Exchange),
		zap.String("queue", dp.config.Queue),
	)

	return nil
}

// PublishDownload publishes event and waits for the broker to confirm it.
func (dp *DownloadPublisher) PublishDownload(ctx context.Context, event *models.DownloadEvent) error {
	dp.mu.RLock()
	defer dp.mu.RUnlock()

	if dp.channel == nil {
		return fmt.Errorf("channel is not initialized")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	confirms := dp.channel.NotifyPublish(make(chan amqp.Confirmation, 1))

	err = dp.channel.PublishWithContext(
		ctx,
		dp.config.Exchange,   // exchange
		dp.config.RoutingKey, // routing key
		true,                 // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.IssuedAt,
			MessageId:    event.ID.String(),
			Type:         "download.accepted",
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return fmt.Errorf("message was not acknowledged by broker")
		}
	case <-time.After(confirmTimeout):
		return fmt.Errorf("timeout waiting for publish confirmation")
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.Log.Debug("Published download event",
		zap.String("eventId", event.ID.String()),
		zap.String("downloadId", event.DownloadID),
		zap.String("routingKey", dp.config.RoutingKey),
	)

	return nil
}

// Close closes the channel and the connection.
func (dp *DownloadPublisher) Close() error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	var errs []error
	if dp.channel != nil {
		if err := dp.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if dp.conn != nil {
		if err := dp.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing publisher: %v", errs)
	}

	logger.Log.Info("RabbitMQ publisher closed")
	return nil
}

// IsHealthy reports whether the connection and channel are open.
func (dp *DownloadPublisher) IsHealthy() bool {
	dp.mu.RLock()
	defer dp.mu.RUnlock()

	return dp.conn != nil && !dp.conn.IsClosed() && dp.channel != nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lshigami/testcert/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const CertificateIssuedRoutingKey = "certificate.issued"

var ErrNotifierDisabled = errors.New("notifier disabled")

// CertificateNotification is the summary handed to the email consumer.
type CertificateNotification struct {
	CertificateID    uint       `json:"certificate_id"`
	UserID           uint       `json:"user_id"`
	RecipientName    string     `json:"recipient_name"`
	Title            string     `json:"title"`
	Score            int        `json:"score"`
	ProficiencyLevel string     `json:"proficiency_level"`
	VerificationCode string     `json:"verification_code"`
	VerificationURL  string     `json:"verification_url"`
	IssueDate        time.Time  `json:"issue_date"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
}

// Notifier is fire-and-forget: a failed publish never rolls back issuance.
type Notifier interface {
	CertificateIssued(ctx context.Context, n CertificateNotification) error
	Close() error
}

type rabbitNotifier struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewNotifier connects to RabbitMQ. Without RABBITMQ_URL a disabled
// notifier is returned.
func NewNotifier(cfg *config.Config) (Notifier, error) {
	if cfg.RabbitMQ.URL == "" {
		log.Warn().Msg("RABBITMQ_URL is not set. Certificate emails will not be sent.")
		return disabledNotifier{}, nil
	}
	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		cfg.RabbitMQ.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.RabbitMQ.Exchange, err)
	}
	return &rabbitNotifier{conn: conn, channel: ch, exchange: cfg.RabbitMQ.Exchange}, nil
}

func (n *rabbitNotifier) CertificateIssued(ctx context.Context, msg CertificateNotification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channel.PublishWithContext(ctx,
		n.exchange,
		CertificateIssuedRoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
}

func (n *rabbitNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.channel.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close RabbitMQ channel")
	}
	return n.conn.Close()
}

type disabledNotifier struct{}

func (disabledNotifier) CertificateIssued(context.Context, CertificateNotification) error {
	return ErrNotifierDisabled
}

func (disabledNotifier) Close() error { return nil }

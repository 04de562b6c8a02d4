package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/moments/internal/config"
)

// MailRoutingKey is the topic used for outbound mail on the mail exchange.
const MailRoutingKey = "mail.send"

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailMessage is the wire form handed to the mail relay.
type MailMessage struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// NewMailer picks the transport named by cfg.Driver.
func NewMailer(cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "log":
		return NewLogMailer(cfg.From, logger), nil
	case "amqp":
		return NewAMQPMailer(cfg.AMQPURL, cfg.Exchange, cfg.From)
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	from   string
	logger *zap.Logger
}

// NewLogMailer builds a LogMailer.
func NewLogMailer(from string, logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{from: from, logger: logger}
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("mail",
		zap.String("from", m.from),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPMailer publishes MailMessage documents to a topic exchange where a
// relay consumes and delivers them.
type AMQPMailer struct {
	url      string
	exchange string
	from     string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   amqpChannel
	now  func() time.Time
}

// NewAMQPMailer dials the broker and declares the exchange.
func NewAMQPMailer(url, exchange, from string) (*AMQPMailer, error) {
	m := &AMQPMailer{url: url, exchange: exchange, from: from, now: time.Now}
	if err := m.connect(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AMQPMailer) connect() error {
	conn, err := amqp.Dial(m.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(m.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}
	m.conn = conn
	m.ch = ch
	return nil
}

func (m *AMQPMailer) ensureConnected() error {
	if m.ch != nil && (m.conn == nil || !m.conn.IsClosed()) {
		return nil
	}
	if m.url == "" {
		return errors.New("rabbitmq not connected")
	}
	return m.connect()
}

func (m *AMQPMailer) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(MailMessage{
		From:    m.from,
		To:      to,
		Subject: subject,
		Body:    body,
		SentAt:  m.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureConnected(); err != nil {
		return err
	}
	err = m.ch.PublishWithContext(ctx, m.exchange, MailRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    m.now(),
		Body:         payload,
	})
	if err != nil {
		m.reset()
		return fmt.Errorf("publish mail: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (m *AMQPMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

func (m *AMQPMailer) reset() {
	if m.ch != nil {
		_ = m.ch.Close()
		m.ch = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Event types
const (
	EventTenantOnboarded        = "tenant.onboarding.completed"
	EventTenantOnboardingFailed = "tenant.onboarding.failed"
	EventSessionDiscarded       = "tenant.onboarding.discarded"
)

// StreamName is the JetStream stream holding onboarding events
const StreamName = "TENANT_ONBOARDING_EVENTS"

// ErrNotConnected is returned when publishing without a connection
var ErrNotConnected = errors.New("NATS client not initialized")

// OnboardingEvent is published after every submission attempt and when a
// session is discarded
type OnboardingEvent struct {
	EventType         string    `json:"event_type"`
	SessionID         string    `json:"session_id"`
	TenantID          string    `json:"tenant_id,omitempty"`
	TenantEmail       string    `json:"tenant_email,omitempty"`
	PropertyID        string    `json:"property_id,omitempty"`
	UnitID            string    `json:"unit_id,omitempty"`
	TotalFirstPayment float64   `json:"total_first_payment,omitempty"`
	Attempt           int       `json:"attempt,omitempty"`
	Error             string    `json:"error,omitempty"`
	RequestID         string    `json:"request_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Client wraps the NATS connection
type Client struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	logger     *logrus.Logger
	maxRetries int
}

// Config holds NATS connection configuration
type Config struct {
	URL        string
	Name       string
	MaxRetries int
}

// DefaultConfig returns the default NATS configuration
func DefaultConfig(url string) *Config {
	if url == "" {
		url = nats.DefaultURL
	}
	return &Config{
		URL:        url,
		Name:       "tenant-onboarding-service",
		MaxRetries: 3,
	}
}

// NewClient connects and makes sure the onboarding stream exists
func NewClient(cfg *Config, logger *logrus.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig("")
	}

	logger.WithField("url", cfg.URL).Info("Connecting to NATS")

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.WithError(err).Error("NATS error")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:        StreamName,
		Description: "Tenant onboarding submissions and discarded sessions",
		Subjects:    []string{"tenant.onboarding.>"},
		Storage:     nats.FileStorage,
		Retention:   nats.LimitsPolicy,
		MaxAge:      24 * time.Hour * 7,
		MaxMsgs:     100000,
		Discard:     nats.DiscardOld,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		logger.WithError(err).Warn("Could not create onboarding stream (may already exist)")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		conn:       conn,
		js:         js,
		logger:     logger,
		maxRetries: maxRetries,
	}, nil
}

// PublishOnboardingEvent publishes the event on the subject named by its type.
// A nil client skips publishing.
func (c *Client) PublishOnboardingEvent(ctx context.Context, event *OnboardingEvent) error {
	if c == nil || c.js == nil {
		return nil
	}
	if event.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var ack *nats.PubAck
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		ack, err = c.js.Publish(event.EventType, data, nats.Context(ctx))
		if err == nil {
			break
		}
		c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"subject": event.EventType,
		}).WithError(err).Warn("Failed to publish event")
		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while retrying publish: %w", ctx.Err())
			case <-time.After(Backoff(attempt)):
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to publish event after %d attempts: %w", c.maxRetries, err)
	}

	c.logger.WithFields(logrus.Fields{
		"subject":    event.EventType,
		"session_id": event.SessionID,
		"seq":        ack.Sequence,
	}).Debug("Published onboarding event")
	return nil
}

// Backoff is the wait after a failed publish attempt: 1s, 2s, 4s...
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c != nil && c.conn != nil {
		c.conn.Close()
	}
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c != nil && c.conn != nil && c.conn.IsConnected()
}

// Package nats implements the assessment broadcaster over NATS core.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"cascade-lab/internal/config"
	"cascade-lab/internal/pubsub"
)

var _ pubsub.Broadcaster = (*Client)(nil)

const (
	connectTimeout = 5 * time.Second
	reconnectWait  = 2 * time.Second
)

// Client publishes JSON payloads to subjects under a configured prefix.
type Client struct {
	nc     *nats.Conn
	prefix string
	log    logrus.FieldLogger
}

// New connects to the NATS server from the config. The connection retries
// forever in the background once established.
func New(cfg *config.NATSConfig, log logrus.FieldLogger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("nats config is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	opts := []nats.Option{
		nats.Name("cascade-detector"),
		nats.Timeout(connectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.WithField("url", cfg.URL).Info("connected to NATS")

	return &Client{
		nc:     nc,
		prefix: cfg.BroadcastPrefix,
		log:    log,
	}, nil
}

// Publish marshals data as JSON and publishes it under the broadcast prefix.
func (c *Client) Publish(ctx context.Context, subject string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", subject, err)
	}

	full := subject
	if c.prefix != "" {
		full = c.prefix + "." + subject
	}

	if err := c.nc.Publish(full, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", full, err)
	}
	return nil
}

// Health reports an error when the connection is not currently usable.
func (c *Client) Health(ctx context.Context) error {
	if c.nc == nil {
		return errors.New("nats connection is nil")
	}
	if status := c.nc.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection status: %s", status)
	}
	return nil
}

// Status returns the raw connection status.
func (c *Client) Status() nats.Status {
	if c.nc == nil {
		return nats.DISCONNECTED
	}
	return c.nc.Status()
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}
	if c.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := c.nc.Drain(); err != nil {
		c.log.WithError(err).Error("failed to drain NATS connection")
		c.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}

	c.nc.Close()
	c.log.Info("NATS connection closed")
	return nil
}

package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/auralabs/aura-speech/internal/config"
)

// Client wraps the NATS connection with the JSON publish helpers the speech
// services need. A nil *Client is valid and drops everything, so callers can
// run without a broker.
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("aura-speech"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{
		conn: conn,
		log:  log,
	}, nil
}

// PublishJSON marshals v and publishes it on subject. Events are best
// effort; a nil client swallows them.
func (c *Client) PublishJSON(subject string, v any) error {
	if c == nil || c.conn == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	return c.conn.Publish(subject, data)
}

// SubscribeJSON delivers every message on subject to handler after decoding
// it into a fresh T. Malformed payloads are logged and dropped.
func SubscribeJSON[T any](c *Client, subject string, handler func(T)) (*nats.Subscription, error) {
	if c == nil || c.conn == nil {
		return nil, errors.New("bus client is not connected")
	}
	return c.conn.Subscribe(subject, func(msg *nats.Msg) {
		var payload T
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.log.Warn("failed to decode bus message",
				slog.String("subject", subject),
				slog.String("error", err.Error()))
			return
		}
		handler(payload)
	})
}

func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

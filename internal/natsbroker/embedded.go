package natsbroker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/auralabs/aura-speech/internal/config"
)

// EmbeddedBroker runs an in-process NATS server so a single aurad binary can
// publish speech events without an external broker.
type EmbeddedBroker struct {
	ns  *server.Server
	log *slog.Logger
}

// Start boots the embedded broker when cfg.Embedded is set; otherwise it
// returns (nil, nil) and the client connects to cfg.Servers instead.
func Start(cfg config.BusConfig, log *slog.Logger) (*EmbeddedBroker, error) {
	if !cfg.Embedded {
		return nil, nil
	}

	opts := &server.Options{
		Host:  "127.0.0.1",
		Port:  cfg.Port,
		Trace: false,
		Debug: false,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within 5 seconds")
	}

	log.Info("embedded NATS server started", slog.Int("port", cfg.Port))

	return &EmbeddedBroker{
		ns:  ns,
		log: log,
	}, nil
}

// ClientURL returns the URL local clients should dial.
func (e *EmbeddedBroker) ClientURL() string {
	if e == nil || e.ns == nil {
		return ""
	}
	return e.ns.ClientURL()
}

// Shutdown stops the broker and waits for it to wind down.
func (e *EmbeddedBroker) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}
	e.log.Info("shutting down embedded NATS server")
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
}

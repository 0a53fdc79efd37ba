package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/auralabs/aura-speech/internal/asr"
	"github.com/auralabs/aura-speech/internal/bus"
	"github.com/auralabs/aura-speech/internal/config"
	"github.com/auralabs/aura-speech/internal/coordinator"
	"github.com/auralabs/aura-speech/internal/eventstore"
	"github.com/auralabs/aura-speech/internal/tts"
	"github.com/auralabs/aura-speech/internal/voices"
)

// Deps are the shared services every connection handler works against. They
// are constructed once at startup and passed in here; connection handlers
// hold no global state.
type Deps struct {
	Transcriber *asr.Transcriber
	Speech      *tts.Service
	Voices      *voices.Registry
	Gate        *coordinator.Coordinator
	Timeline    *eventstore.Store
	Bus         *bus.Client
}

// Gateway upgrades HTTP requests to the speech socket and runs one handler
// per connection until the peer goes away.
type Gateway struct {
	cfg      config.SocketConfig
	deps     Deps
	logger   *slog.Logger
	upgrader websocket.Upgrader

	sessions    metric.Int64Counter
	transcripts metric.Int64Counter
}

func NewGateway(cfg config.SocketConfig, deps Deps, log *slog.Logger) *Gateway {
	g := &Gateway{
		cfg:    cfg,
		deps:   deps,
		logger: log.With(slog.String("component", "speech-gateway")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if err := g.initMetrics(); err != nil {
		g.logger.Warn("failed to register gateway metrics", slogError(err))
	}
	return g
}

func (g *Gateway) initMetrics() error {
	meter := otel.Meter("github.com/auralabs/aura-speech/server")
	sessions, err := meter.Int64Counter("aura.sessions.started",
		metric.WithDescription("Speech sessions opened"))
	if err != nil {
		return err
	}
	transcripts, err := meter.Int64Counter("aura.transcripts.emitted",
		metric.WithDescription("Final transcripts delivered with text"))
	if err != nil {
		return err
	}
	g.sessions, g.transcripts = sessions, transcripts
	return nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", slogError(err))
		return
	}

	sessionID := uuid.NewString()
	c := &conn{
		g:    g,
		ws:   ws,
		sess: asr.NewSession(sessionID),
		log: g.logger.With(
			slog.String("session_id", sessionID),
			slog.String("remote", ws.RemoteAddr().String())),
	}
	c.run(r.Context())
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

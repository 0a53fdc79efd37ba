package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/auralabs/aura-speech/internal/asr"
	"github.com/auralabs/aura-speech/internal/bus"
	"github.com/auralabs/aura-speech/internal/config"
	"github.com/auralabs/aura-speech/internal/coordinator"
	"github.com/auralabs/aura-speech/internal/eventstore"
	"github.com/auralabs/aura-speech/internal/foreground"
	"github.com/auralabs/aura-speech/internal/model"
	"github.com/auralabs/aura-speech/internal/natsbroker"
	"github.com/auralabs/aura-speech/internal/server"
	"github.com/auralabs/aura-speech/internal/tts"
	"github.com/auralabs/aura-speech/internal/voices"
)

// Runtime wires configuration into the full service graph and owns its
// lifecycle: telemetry, the event bus, the speech engines behind the access
// coordinator, the websocket gateway, and the HTTP surface.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer  *http.Server
	tracerClose func(context.Context) error
	broker      *natsbroker.EmbeddedBroker
	busClient   *bus.Client
	timeline    *eventstore.Store
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	// Session events are best effort: a missing broker degrades to dropped
	// events, never to a failed start.
	if err := r.connectBus(); err != nil {
		r.logger.Warn("event bus unavailable, session events will be dropped",
			slog.String("error", err.Error()))
	}

	timeline, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	r.timeline = timeline

	recognizer, synthesizer, err := buildEngines(r.cfg)
	if err != nil {
		return err
	}
	gate := coordinator.New(recognizer, synthesizer, r.logger)
	tracker := foreground.NewTracker()

	registry, err := voices.NewRegistry(r.cfg.TTS.VoicesDir, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open voice registry: %w", err)
	}

	speech := tts.NewService(r.cfg.TTS, gate, registry, tracker, r.logger)
	transcriber := asr.NewTranscriber(r.cfg.ASR, gate, r.logger)

	gateway := server.NewGateway(r.cfg.Socket, server.Deps{
		Transcriber: transcriber,
		Speech:      speech,
		Voices:      registry,
		Gate:        gate,
		Timeline:    timeline,
		Bus:         r.busClient,
	}, r.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("GET /debug/sessions/{id}/events", r.handleSessionEvents)
	mux.Handle(r.cfg.Socket.Path, gateway)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if r.cfg.TTS.Prewarm.Enabled {
		prewarmer := tts.NewPrewarmer(speech, r.cfg.TTS.Prewarm.Phrases, r.logger)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			prewarmer.Run(ctx)
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("socket_path", r.cfg.Socket.Path),
		slog.String("asr_mode", r.cfg.ASR.Mode),
		slog.String("tts_mode", r.cfg.TTS.Mode))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	r.busClient.Close()
	r.broker.Shutdown()
	if err := r.timeline.Close(); err != nil {
		r.logger.Error("event store close error", slog.String("error", err.Error()))
	}

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// connectBus boots the embedded broker when configured and dials whichever
// broker ends up being the target.
func (r *Runtime) connectBus() error {
	broker, err := natsbroker.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return err
	}
	r.broker = broker

	busCfg := r.cfg.Bus
	if broker != nil {
		busCfg.Servers = []string{broker.ClientURL()}
	}
	client, err := bus.Connect(busCfg, r.logger)
	if err != nil {
		r.broker.Shutdown()
		r.broker = nil
		return err
	}
	r.busClient = client
	return nil
}

func buildEngines(cfg config.Config) (model.Recognizer, model.Synthesizer, error) {
	var (
		recognizer model.Recognizer
		err        error
	)
	switch cfg.ASR.Mode {
	case "exec":
		recognizer, err = model.NewExecRecognizer(cfg.ASR)
		if err != nil {
			return nil, nil, fmt.Errorf("build recognizer: %w", err)
		}
	default:
		recognizer = model.NewMockRecognizer()
	}

	var synthesizer model.Synthesizer
	switch cfg.TTS.Mode {
	case "exec":
		synthesizer, err = model.NewExecSynthesizer(cfg.TTS)
		if err != nil {
			return nil, nil, fmt.Errorf("build synthesizer: %w", err)
		}
	default:
		synthesizer = model.NewMockSynthesizer(cfg.TTS.SampleRate)
	}

	return recognizer, synthesizer, nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// handleSessionEvents exposes one session's recorded timeline for
// debugging.
func (r *Runtime) handleSessionEvents(w http.ResponseWriter, req *http.Request) {
	events, err := r.timeline.ListSessionEvents(req.Context(), req.PathValue("id"), 200)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []eventstore.Event{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(events); err != nil {
		r.logger.Warn("failed to encode session events", slog.String("error", err.Error()))
	}
}

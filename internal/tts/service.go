package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/auralabs/aura-speech/internal/config"
	"github.com/auralabs/aura-speech/internal/coordinator"
	"github.com/auralabs/aura-speech/internal/foreground"
	"github.com/auralabs/aura-speech/internal/model"
	"github.com/auralabs/aura-speech/internal/voices"
)

var (
	// ErrEmptyText rejects synthesis requests whose text is blank after
	// trimming.
	ErrEmptyText = errors.New("tts: text is empty")
	// ErrMissingSample rejects clone requests that carry no reference audio.
	ErrMissingSample = errors.New("tts: voice sample is empty")
)

// SynthesisOptions carries optional engine tuning flags passed through to
// the synthesizer.
type SynthesisOptions struct {
	EmoAlpha   float64
	UseEmoText bool
}

// Service renders text to audio through the shared engine gate. Results are
// cached per (text, voice identity) and every caller-facing request claims
// foreground priority for its duration so background work defers to it.
type Service struct {
	cfg      config.TTSConfig
	cache    *Cache
	gate     *coordinator.Coordinator
	registry *voices.Registry
	tracker  *foreground.Tracker
	logger   *slog.Logger

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

func NewService(cfg config.TTSConfig, gate *coordinator.Coordinator, registry *voices.Registry, tracker *foreground.Tracker, log *slog.Logger) *Service {
	svc := &Service{
		cfg:      cfg,
		cache:    NewCache(cfg.CacheSize),
		gate:     gate,
		registry: registry,
		tracker:  tracker,
		logger:   log.With(slog.String("component", "tts-service")),
	}
	if err := svc.initMetrics(); err != nil {
		svc.logger.Warn("failed to register tts metrics", slogError(err))
	}
	return svc
}

func (s *Service) initMetrics() error {
	meter := otel.Meter("github.com/auralabs/aura-speech/tts")
	hits, err := meter.Int64Counter("aura.tts.cache.hits",
		metric.WithDescription("Synthesis requests served from the cache"))
	if err != nil {
		return err
	}
	misses, err := meter.Int64Counter("aura.tts.cache.misses",
		metric.WithDescription("Synthesis requests that ran the engine"))
	if err != nil {
		return err
	}
	s.hits, s.misses = hits, misses
	return nil
}

// Synthesize renders text with the named voice. An empty voiceID falls back
// to the default voice. Repeated requests for the same text and voice are
// served from the cache without touching the engine.
func (s *Service) Synthesize(ctx context.Context, text, voiceID string, opts SynthesisOptions) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyText
	}
	s.tracker.Enter()
	defer s.tracker.Leave()

	voice, err := s.registry.Resolve(voiceID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, trimmed, voice, opts)
}

// CloneAndSpeak stores sample as the reference clip for voiceID (or the
// default clone slot when empty) and immediately renders text with it.
func (s *Service) CloneAndSpeak(ctx context.Context, text string, sample []byte, voiceID string, opts SynthesisOptions) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyText
	}
	if len(sample) == 0 {
		return nil, ErrMissingSample
	}
	s.tracker.Enter()
	defer s.tracker.Leave()

	if voiceID == "" {
		voiceID = "default"
	}
	samplePath, err := s.registry.SaveSample(voiceID, sample)
	if err != nil {
		return nil, err
	}
	voice := voices.Voice{ID: voiceID, SamplePath: samplePath}
	return s.render(ctx, trimmed, voice, opts)
}

// Prewarm renders text with voice unless the result is already cached. It
// does not claim foreground priority; background callers combine it with
// the foreground tracker to stay out of the way. The bool reports whether
// the engine actually ran.
func (s *Service) Prewarm(ctx context.Context, text string, voice voices.Voice, opts SynthesisOptions) (bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false, ErrEmptyText
	}
	key := CacheKey(trimmed, voiceIdentity(voice))
	if _, ok := s.cache.Lookup(key); ok {
		return false, nil
	}
	if _, err := s.synthesizeAndStore(ctx, trimmed, voice, key, opts); err != nil {
		return false, err
	}
	return true, nil
}

// CacheLen reports how many rendered clips the cache currently holds.
func (s *Service) CacheLen() int { return s.cache.Len() }

func (s *Service) render(ctx context.Context, text string, voice voices.Voice, opts SynthesisOptions) ([]byte, error) {
	key := CacheKey(text, voiceIdentity(voice))
	if audio, ok := s.cache.Lookup(key); ok {
		if s.hits != nil {
			s.hits.Add(ctx, 1)
		}
		s.logger.Debug("tts cache hit",
			slog.String("voice", voice.ID),
			slog.Int("bytes", len(audio)))
		return audio, nil
	}
	if s.misses != nil {
		s.misses.Add(ctx, 1)
	}
	return s.synthesizeAndStore(ctx, text, voice, key, opts)
}

func (s *Service) synthesizeAndStore(ctx context.Context, text string, voice voices.Voice, key string, opts SynthesisOptions) ([]byte, error) {
	start := time.Now()
	audio, err := s.gate.Synthesize(ctx, model.SynthesizeRequest{
		Text:       text,
		Voice:      voice.EngineVoice,
		SamplePath: voice.SamplePath,
		EmoAlpha:   opts.EmoAlpha,
		UseEmoText: opts.UseEmoText,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize with voice %q: %w", voice.ID, err)
	}
	s.cache.Store(key, audio)
	s.logger.Debug("tts synthesized",
		slog.String("voice", voice.ID),
		slog.Int("bytes", len(audio)),
		slog.Duration("took", time.Since(start)))
	return audio, nil
}

// voiceIdentity picks the stable identity half of the cache key. Cloned
// voices key by their stored sample path so an alias that later points at a
// different voice cannot serve stale audio.
func voiceIdentity(v voices.Voice) string {
	if v.SamplePath != "" {
		return v.SamplePath
	}
	return v.ID
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

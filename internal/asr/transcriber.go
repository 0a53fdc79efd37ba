package asr

import (
	"context"
	"log/slog"
	"strings"

	"github.com/auralabs/aura-speech/internal/config"
	"github.com/auralabs/aura-speech/internal/coordinator"
	"github.com/auralabs/aura-speech/internal/model"
)

// Transcriber turns a finalized capture buffer into one transcript. Short
// buffers are rejected before touching the model; long buffers are split
// into overlapping windows, recognized window by window, and stitched back
// together.
type Transcriber struct {
	cfg    config.ASRConfig
	gate   *coordinator.Coordinator
	logger *slog.Logger
}

func NewTranscriber(cfg config.ASRConfig, gate *coordinator.Coordinator, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		cfg:    cfg,
		gate:   gate,
		logger: logger.With(slog.String("component", "asr")),
	}
}

// Transcribe recognizes one utterance. An empty string with a nil error is
// the expected outcome for unusable audio (too short, or nothing
// recognized); a non-nil error means the recognition itself failed and is
// worth logging upstream.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) < t.cfg.MinBufferBytes {
		t.logger.Debug("buffer below minimum, skipping recognition",
			slog.Int("bytes", len(pcm)),
			slog.Int("min_bytes", t.cfg.MinBufferBytes))
		return "", nil
	}

	if len(pcm) <= t.cfg.ChunkBytes {
		text, err := t.gate.Recognize(ctx, t.request(pcm))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(text), nil
	}

	return t.transcribeWindows(ctx, pcm)
}

// transcribeWindows runs the chunked pass. A failure on one window drops
// that window's contribution and continues; only context cancellation
// aborts the pass.
func (t *Transcriber) transcribeWindows(ctx context.Context, pcm []byte) (string, error) {
	chunks := splitChunks(pcm, t.cfg.ChunkBytes, t.cfg.OverlapBytes)
	t.logger.Info("long capture, transcribing in windows",
		slog.Int("bytes", len(pcm)),
		slog.Int("windows", len(chunks)))

	bytesPerSecond := float64(t.cfg.SampleRate * t.cfg.Channels * 2)
	fragments := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		duration := float64(len(chunk.PCM)) / bytesPerSecond
		if duration < t.cfg.MinChunkSeconds {
			t.logger.Debug("skipping short window",
				slog.Int("window", chunk.Index),
				slog.Int("bytes", len(chunk.PCM)))
			continue
		}

		text, err := t.gate.Recognize(ctx, t.request(chunk.PCM))
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			t.logger.Warn("window recognition failed",
				slog.Int("window", chunk.Index),
				slogError(err))
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			fragments = append(fragments, trimmed)
		}
	}

	return NormalizeTranscript(strings.Join(fragments, " ")), nil
}

func (t *Transcriber) request(pcm []byte) model.RecognizeRequest {
	return model.RecognizeRequest{
		PCM:        pcm,
		SampleRate: t.cfg.SampleRate,
		Channels:   t.cfg.Channels,
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Package coordinator serializes every inference call into the shared
// speech model. The underlying engines are not reentrant, so at most one
// recognition or synthesis call may be in flight process-wide; callers
// queue on a single-permit channel and are granted access in arrival
// order.
package coordinator

import (
	"context"
	"log/slog"

	"github.com/auralabs/aura-speech/internal/model"
)

// Coordinator owns the engine handles. No other component invokes the
// engines directly; recognition and synthesis go through Recognize and
// Synthesize, which hold the exclusive permit for exactly one call.
type Coordinator struct {
	logger *slog.Logger
	permit chan struct{}
	rec    model.Recognizer
	synth  model.Synthesizer
}

func New(rec model.Recognizer, synth model.Synthesizer, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		logger: logger.With(slog.String("component", "coordinator")),
		permit: make(chan struct{}, 1),
		rec:    rec,
		synth:  synth,
	}
	c.permit <- struct{}{}
	return c
}

// Recognize runs one speech-to-text call under the exclusive permit. An
// empty string with a nil error means no recognizable speech.
func (c *Coordinator) Recognize(ctx context.Context, req model.RecognizeRequest) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	defer c.release()
	return c.rec.Transcribe(ctx, req)
}

// Synthesize runs one text-to-speech call under the exclusive permit.
func (c *Coordinator) Synthesize(ctx context.Context, req model.SynthesizeRequest) ([]byte, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()
	return c.synth.Synthesize(ctx, req)
}

// Ready reports whether both engines can take calls.
func (c *Coordinator) Ready() bool {
	return c.rec.Ready() && c.synth.Ready()
}

// acquire blocks until the permit is free or ctx is done. Goroutines
// blocked on the permit channel are woken in FIFO order, which bounds any
// one caller's wait by the queue length ahead of it.
func (c *Coordinator) acquire(ctx context.Context) error {
	select {
	case <-c.permit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) release() {
	c.permit <- struct{}{}
}

package tts

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Prewarmer fills the synthesis cache with common phrases for the cloned
// voices while the engine is otherwise idle. At most one pass runs at a
// time and every synthesis waits for foreground traffic to drain first.
type Prewarmer struct {
	svc     *Service
	phrases []string
	pace    time.Duration
	logger  *slog.Logger

	running atomic.Bool
}

func NewPrewarmer(svc *Service, phrases []string, log *slog.Logger) *Prewarmer {
	return &Prewarmer{
		svc:     svc,
		phrases: phrases,
		pace:    300 * time.Millisecond,
		logger:  log.With(slog.String("component", "tts-prewarm")),
	}
}

// Run performs one prewarm pass over every cloned voice, newest first. A
// call while another pass is in flight returns immediately.
func (p *Prewarmer) Run(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug("prewarm pass already running")
		return
	}
	defer p.running.Store(false)

	targets := p.svc.registry.ClonedNewestFirst()
	if len(targets) == 0 {
		p.logger.Debug("prewarm skipped, no cloned voices registered")
		return
	}

	var warmed, cached int
	for _, voice := range targets {
		for _, phrase := range p.phrases {
			if ctx.Err() != nil {
				return
			}
			if !p.waitQuiet(ctx) {
				return
			}
			ran, err := p.svc.Prewarm(ctx, phrase, voice, SynthesisOptions{})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Warn("prewarm synthesis failed",
					slog.String("voice", voice.ID), slogError(err))
				continue
			}
			if !ran {
				cached++
				continue
			}
			warmed++
			if !p.sleep(ctx) {
				return
			}
		}
	}
	p.logger.Info("prewarm pass complete",
		slog.Int("voices", len(targets)),
		slog.Int("warmed", warmed),
		slog.Int("already_cached", cached))
}

// waitQuiet blocks until no foreground request is active. It returns false
// when ctx expires first.
func (p *Prewarmer) waitQuiet(ctx context.Context) bool {
	for p.svc.tracker.Active() {
		select {
		case <-ctx.Done():
			return false
		case <-p.svc.tracker.Quiet():
		}
	}
	return true
}

// sleep paces engine work so a pass never monopolizes the gate.
func (p *Prewarmer) sleep(ctx context.Context) bool {
	timer := time.NewTimer(p.pace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package tts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/auralabs/aura-speech/internal/config"
	"github.com/auralabs/aura-speech/internal/coordinator"
	"github.com/auralabs/aura-speech/internal/foreground"
	"github.com/auralabs/aura-speech/internal/model"
	"github.com/auralabs/aura-speech/internal/voices"
)

type stubRecognizer struct{}

func (stubRecognizer) Transcribe(context.Context, model.RecognizeRequest) (string, error) {
	return "", nil
}

func (stubRecognizer) Ready() bool { return true }

// countingSynth records every engine invocation and can be switched into a
// failing or blocking mode mid-test.
type countingSynth struct {
	mu      sync.Mutex
	calls   int
	fail    bool
	block   chan struct{}
	entered chan struct{}
}

func (c *countingSynth) Synthesize(ctx context.Context, req model.SynthesizeRequest) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	fail := c.fail
	block := c.block
	entered := c.entered
	c.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if fail {
		return nil, errors.New("engine unavailable")
	}
	return []byte("audio:" + req.Text), nil
}

func (c *countingSynth) Ready() bool { return true }

func (c *countingSynth) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingSynth) setFail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}

func (c *countingSynth) blockNext() (release chan struct{}, entered chan struct{}) {
	release = make(chan struct{})
	entered = make(chan struct{}, 1)
	c.mu.Lock()
	c.block = release
	c.entered = entered
	c.mu.Unlock()
	return release, entered
}

func newTestService(t *testing.T, synth model.Synthesizer) *Service {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := voices.NewRegistry(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	gate := coordinator.New(stubRecognizer{}, synth, log)
	return NewService(config.Default().TTS, gate, registry, foreground.NewTracker(), log)
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	synth := &countingSynth{}
	svc := newTestService(t, synth)

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := svc.Synthesize(context.Background(), text, "xiaoyi", SynthesisOptions{}); !errors.Is(err, ErrEmptyText) {
			t.Fatalf("Synthesize(%q) err = %v, want ErrEmptyText", text, err)
		}
	}
	if synth.callCount() != 0 {
		t.Fatalf("engine ran %d times for empty text", synth.callCount())
	}
}

func TestSynthesizeUnknownVoice(t *testing.T) {
	svc := newTestService(t, &countingSynth{})

	_, err := svc.Synthesize(context.Background(), "你好", "no-such-voice", SynthesisOptions{})
	if !errors.Is(err, voices.ErrUnknownVoice) {
		t.Fatalf("err = %v, want ErrUnknownVoice", err)
	}
}

func TestSynthesizeCachesPerTextAndVoice(t *testing.T) {
	synth := &countingSynth{}
	svc := newTestService(t, synth)
	ctx := context.Background()

	first, err := svc.Synthesize(ctx, "今天天气不错", "xiaoyi", SynthesisOptions{})
	if err != nil {
		t.Fatalf("first synthesize: %v", err)
	}
	second, err := svc.Synthesize(ctx, "今天天气不错", "xiaoyi", SynthesisOptions{})
	if err != nil {
		t.Fatalf("second synthesize: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("cached audio differs from the original render")
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("engine ran %d times, want 1", got)
	}

	// Same text with a different voice is a distinct entry.
	if _, err := svc.Synthesize(ctx, "今天天气不错", "yunxi", SynthesisOptions{}); err != nil {
		t.Fatalf("synthesize with second voice: %v", err)
	}
	if got := synth.callCount(); got != 2 {
		t.Fatalf("engine ran %d times, want 2", got)
	}
}

func TestSynthesizeDefaultVoiceSharesCacheWithExplicitID(t *testing.T) {
	synth := &countingSynth{}
	svc := newTestService(t, synth)
	ctx := context.Background()

	if _, err := svc.Synthesize(ctx, "欢迎回来", "", SynthesisOptions{}); err != nil {
		t.Fatalf("default-voice synthesize: %v", err)
	}
	// The empty ID resolves to the first built-in voice, so naming it
	// explicitly must hit the same cache entry.
	if _, err := svc.Synthesize(ctx, "欢迎回来", "xiaoyi", SynthesisOptions{}); err != nil {
		t.Fatalf("explicit-voice synthesize: %v", err)
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("engine ran %d times, want 1", got)
	}
}

func TestCacheHitBypassesEngineGate(t *testing.T) {
	synth := &countingSynth{}
	svc := newTestService(t, synth)
	ctx := context.Background()

	if _, err := svc.Synthesize(ctx, "欢迎回来", "xiaoyi", SynthesisOptions{}); err != nil {
		t.Fatalf("warmup synthesize: %v", err)
	}

	// Park a second request inside the engine so the gate stays held.
	release, entered := synth.blockNext()
	go func() {
		_, _ = svc.Synthesize(ctx, "另一句话", "xiaoyi", SynthesisOptions{})
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked synthesis never reached the engine")
	}

	// The cached request must complete while the gate is still held.
	done := make(chan error, 1)
	go func() {
		_, err := svc.Synthesize(ctx, "欢迎回来", "xiaoyi", SynthesisOptions{})
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cached synthesize: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cached request queued behind the engine gate")
	}
	close(release)
}

func TestSynthesizeFailureIsNotCached(t *testing.T) {
	synth := &countingSynth{}
	synth.setFail(true)
	svc := newTestService(t, synth)
	ctx := context.Background()

	if _, err := svc.Synthesize(ctx, "你好", "xiaoyi", SynthesisOptions{}); err == nil {
		t.Fatal("expected engine failure to surface")
	}
	synth.setFail(false)
	if _, err := svc.Synthesize(ctx, "你好", "xiaoyi", SynthesisOptions{}); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if got := synth.callCount(); got != 2 {
		t.Fatalf("engine ran %d times, want 2", got)
	}
}

func TestCloneAndSpeakValidation(t *testing.T) {
	svc := newTestService(t, &countingSynth{})
	ctx := context.Background()

	if _, err := svc.CloneAndSpeak(ctx, "  ", []byte("pcm"), "alice", SynthesisOptions{}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
	if _, err := svc.CloneAndSpeak(ctx, "你好", nil, "alice", SynthesisOptions{}); !errors.Is(err, ErrMissingSample) {
		t.Fatalf("err = %v, want ErrMissingSample", err)
	}
}

func TestCloneAndSpeakSharesCacheWithClonedSynthesize(t *testing.T) {
	synth := &countingSynth{}
	svc := newTestService(t, synth)
	ctx := context.Background()
	sample := []byte("reference-clip")

	if _, err := svc.CloneAndSpeak(ctx, "你好", sample, "alice", SynthesisOptions{}); err != nil {
		t.Fatalf("CloneAndSpeak: %v", err)
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("engine ran %d times, want 1", got)
	}

	// Register the voice properly, then synthesize by ID. Both paths key
	// the cache by the stored sample, so the clip is already cached.
	if _, err := svc.registry.Register("alice", "Alice", sample); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Synthesize(ctx, "你好", "alice", SynthesisOptions{}); err != nil {
		t.Fatalf("Synthesize by id: %v", err)
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("engine ran %d times after cached follow-up, want 1", got)
	}
}

func TestSynthesizeMarksForegroundActive(t *testing.T) {
	synth := &countingSynth{}
	svc := newTestService(t, synth)
	release, entered := synth.blockNext()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Synthesize(context.Background(), "你好", "xiaoyi", SynthesisOptions{})
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("synthesis never reached the engine")
	}
	if !svc.tracker.Active() {
		t.Fatal("expected foreground tracker to be active during synthesis")
	}
	close(release)
	<-done
	if svc.tracker.Active() {
		t.Fatal("expected foreground tracker to settle after synthesis")
	}
}

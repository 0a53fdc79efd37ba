package tts

import (
	"context"
	"testing"
	"time"
)

func newTestPrewarmer(t *testing.T, synth *countingSynth, phrases []string) (*Service, *Prewarmer) {
	t.Helper()
	svc := newTestService(t, synth)
	p := NewPrewarmer(svc, phrases, svc.logger)
	p.pace = time.Millisecond
	return svc, p
}

func TestPrewarmSkipsWithoutClonedVoices(t *testing.T) {
	synth := &countingSynth{}
	_, p := newTestPrewarmer(t, synth, []string{"你好", "再见"})

	p.Run(context.Background())
	if got := synth.callCount(); got != 0 {
		t.Fatalf("engine ran %d times with no cloned voices, want 0", got)
	}
}

func TestPrewarmPopulatesCacheOnce(t *testing.T) {
	synth := &countingSynth{}
	svc, p := newTestPrewarmer(t, synth, []string{"你好", "再见"})
	if _, err := svc.registry.Register("alice", "Alice", []byte("clip")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	p.Run(context.Background())
	if got := synth.callCount(); got != 2 {
		t.Fatalf("engine ran %d times, want 2", got)
	}
	if got := svc.CacheLen(); got != 2 {
		t.Fatalf("cache holds %d clips, want 2", got)
	}

	// A second pass finds everything cached and leaves the engine alone.
	p.Run(context.Background())
	if got := synth.callCount(); got != 2 {
		t.Fatalf("engine ran %d times after cached pass, want 2", got)
	}
}

func TestPrewarmCoversEveryClonedVoice(t *testing.T) {
	synth := &countingSynth{}
	svc, p := newTestPrewarmer(t, synth, []string{"你好"})
	if _, err := svc.registry.Register("alice", "Alice", []byte("clip-a")); err != nil {
		t.Fatalf("Register alice: %v", err)
	}
	if _, err := svc.registry.Register("bob", "Bob", []byte("clip-b")); err != nil {
		t.Fatalf("Register bob: %v", err)
	}

	p.Run(context.Background())
	if got := synth.callCount(); got != 2 {
		t.Fatalf("engine ran %d times, want one render per voice", got)
	}
}

func TestPrewarmDefersToForeground(t *testing.T) {
	synth := &countingSynth{}
	svc, p := newTestPrewarmer(t, synth, []string{"你好"})
	if _, err := svc.registry.Register("alice", "Alice", []byte("clip")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	svc.tracker.Enter()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background())
	}()

	// While foreground work is active the pass must not touch the engine.
	time.Sleep(50 * time.Millisecond)
	if got := synth.callCount(); got != 0 {
		t.Fatalf("engine ran %d times while foreground was active, want 0", got)
	}

	svc.tracker.Leave()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("prewarm pass never resumed after foreground went quiet")
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("engine ran %d times after quiet, want 1", got)
	}
}

func TestPrewarmSingleInstance(t *testing.T) {
	synth := &countingSynth{}
	svc, p := newTestPrewarmer(t, synth, []string{"你好", "再见"})
	if _, err := svc.registry.Register("alice", "Alice", []byte("clip")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	release, entered := synth.blockNext()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background())
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never reached the engine")
	}

	// The overlapping call returns immediately instead of starting a
	// second pass.
	p.Run(context.Background())
	if got := synth.callCount(); got != 1 {
		t.Fatalf("engine ran %d times during overlap, want 1", got)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never finished")
	}
}

func TestPrewarmHonorsCanceledContext(t *testing.T) {
	synth := &countingSynth{}
	svc, p := newTestPrewarmer(t, synth, []string{"你好"})
	if _, err := svc.registry.Register("alice", "Alice", []byte("clip")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)
	if got := synth.callCount(); got != 0 {
		t.Fatalf("engine ran %d times under a canceled context, want 0", got)
	}
}

package voices

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmptyRegistryServesBuiltins(t *testing.T) {
	r, err := NewRegistry(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ClonedCount() != 0 {
		t.Fatalf("expected no cloned voices, got %d", r.ClonedCount())
	}
	list := r.List()
	if len(list) != len(builtins) {
		t.Fatalf("expected %d builtin voices, got %d", len(builtins), len(list))
	}

	v, err := r.Resolve("xiaoyi")
	if err != nil {
		t.Fatalf("resolve builtin: %v", err)
	}
	if v.EngineVoice != "zh-CN-XiaoyiNeural" || v.SamplePath != "" {
		t.Fatalf("unexpected builtin voice %+v", v)
	}
}

func TestDefaultFallsBackToFirstBuiltin(t *testing.T) {
	r, err := NewRegistry(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := r.Resolve("default")
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if v.ID != builtins[0].ID {
		t.Fatalf("expected first builtin, got %+v", v)
	}

	v2, err := r.Resolve("")
	if err != nil || v2.ID != v.ID {
		t.Fatalf("empty id should behave like default, got %+v (%v)", v2, err)
	}
}

func TestRegisterPersistsAndResolves(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sample := []byte("RIFF fake wav payload")
	v, err := r.Register("grandma", "奶奶", sample)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if v.ID != "grandma" || v.Name != "奶奶" {
		t.Fatalf("unexpected voice %+v", v)
	}

	if _, err := os.Stat(filepath.Join(dir, "grandma.wav")); err != nil {
		t.Fatalf("sample file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "grandma.json")); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}

	got, err := r.Resolve("grandma")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.SamplePath == "" {
		t.Fatal("cloned voice should carry a sample path")
	}

	list := r.List()
	if len(list) != len(builtins)+1 {
		t.Fatalf("expected %d voices, got %d", len(builtins)+1, len(list))
	}
	if list[len(list)-1].ID != "grandma" {
		t.Fatalf("cloned voice should follow builtins, got %v", list)
	}
}

func TestRegisterDefaultsIDAndName(t *testing.T) {
	r, err := NewRegistry(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := r.Register("", "", []byte("sample"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if v.ID == "" {
		t.Fatal("expected generated id")
	}
	if v.Name != v.ID {
		t.Fatalf("name should default to id, got %q/%q", v.Name, v.ID)
	}
}

func TestRegisterRejectsPathLikeIDs(t *testing.T) {
	r, err := NewRegistry(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"../escape", "a/b", "a\\b", "dot.dot"} {
		if _, err := r.Register(id, "x", []byte("s")); err == nil {
			t.Errorf("expected rejection for id %q", id)
		}
	}
}

func TestResolveUnknownVoice(t *testing.T) {
	r, err := NewRegistry(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Resolve("nobody"); !errors.Is(err, ErrUnknownVoice) {
		t.Fatalf("expected ErrUnknownVoice, got %v", err)
	}
}

func TestClonedDefaultWinsOverFallback(t *testing.T) {
	r, err := NewRegistry(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Register("default", "primary", []byte("sample")); err != nil {
		t.Fatalf("register: %v", err)
	}
	v, err := r.Resolve("default")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.SamplePath == "" || v.Name != "primary" {
		t.Fatalf("cloned default should win, got %+v", v)
	}
}

func TestReloadOrdersByRegistrationTime(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Register("older", "", []byte("a")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Register("newer", "", []byte("b")); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Force distinct sidecar mtimes so a reload can recover the order.
	base := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "older.json"), base, base); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	fresh, err := NewRegistry(dir, discardLogger())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := fresh.ClonedNewestFirst()
	if len(got) != 2 {
		t.Fatalf("expected 2 cloned voices, got %d", len(got))
	}
	if got[0].ID != "newer" || got[1].ID != "older" {
		t.Fatalf("unexpected order %v", []string{got[0].ID, got[1].ID})
	}
}

func TestReloadSkipsOrphanSidecar(t *testing.T) {
	dir := t.TempDir()
	orphan := []byte(`{"id":"ghost","name":"ghost","sample_path":"nowhere.wav"}`)
	if err := os.WriteFile(filepath.Join(dir, "ghost.json"), orphan, 0o644); err != nil {
		t.Fatalf("write orphan: %v", err)
	}

	r, err := NewRegistry(dir, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ClonedCount() != 0 {
		t.Fatalf("orphan sidecar should be skipped, got %d voices", r.ClonedCount())
	}
}

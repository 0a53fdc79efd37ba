// Package voices tracks the identities available for synthesis: a fixed
// table of built-in engine voices plus cloned voices registered at runtime.
// A cloned voice is persisted as <id>.wav next to an <id>.json sidecar so
// registrations survive restarts.
package voices

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownVoice marks a synthesis request for an id that is neither
// registered nor built in.
var ErrUnknownVoice = errors.New("unknown voice id")

// Voice is one selectable identity. Cloned voices carry a SamplePath;
// built-in voices carry the engine's voice identifier instead.
type Voice struct {
	ID          string
	Name        string
	SamplePath  string
	EngineVoice string
}

type sidecar struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SamplePath string `json:"sample_path"`
}

// builtins is the fixed voice table, friendly key to engine identifier.
// The first entry doubles as the fallback for the "default" id.
var builtins = []Voice{
	{ID: "xiaoyi", Name: "晓伊", EngineVoice: "zh-CN-XiaoyiNeural"},
	{ID: "xiaoxiao", Name: "晓晓", EngineVoice: "zh-CN-XiaoxiaoNeural"},
	{ID: "xiaoxuan", Name: "晓萱", EngineVoice: "zh-CN-XiaoxuanNeural"},
	{ID: "yunxia", Name: "云夏", EngineVoice: "zh-CN-YunxiaNeural"},
	{ID: "yunxi", Name: "云希", EngineVoice: "zh-CN-YunxiNeural"},
	{ID: "yunjian", Name: "云健", EngineVoice: "zh-CN-YunjianNeural"},
	{ID: "yunyang", Name: "云扬", EngineVoice: "zh-CN-YunyangNeural"},
}

type Registry struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	cloned map[string]Voice
	order  []string // registration order, oldest first
}

// NewRegistry loads previously registered voices from dir, creating it if
// needed. Sidecars whose sample file went missing are skipped.
func NewRegistry(dir string, logger *slog.Logger) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create voices dir: %w", err)
	}
	r := &Registry{
		dir:    dir,
		logger: logger.With(slog.String("component", "voices")),
		cloned: make(map[string]Voice),
	}
	if err := r.loadSidecars(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) loadSidecars() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read voices dir: %w", err)
	}

	type loaded struct {
		voice Voice
		mtime int64
	}
	var found []loaded
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("failed to read voice sidecar", slog.String("path", path), slogError(err))
			continue
		}
		var meta sidecar
		if err := json.Unmarshal(data, &meta); err != nil || meta.ID == "" {
			r.logger.Warn("skipping malformed voice sidecar", slog.String("path", path))
			continue
		}
		samplePath := filepath.Join(r.dir, meta.ID+".wav")
		if _, err := os.Stat(samplePath); err != nil {
			r.logger.Warn("skipping voice without sample file", slog.String("id", meta.ID))
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		name := meta.Name
		if name == "" {
			name = meta.ID
		}
		found = append(found, loaded{
			voice: Voice{ID: meta.ID, Name: name, SamplePath: samplePath},
			mtime: info.ModTime().UnixNano(),
		})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].mtime < found[j].mtime })
	for _, l := range found {
		r.cloned[l.voice.ID] = l.voice
		r.order = append(r.order, l.voice.ID)
	}
	if len(found) > 0 {
		r.logger.Info("loaded registered voices", slog.Int("count", len(found)))
	}
	return nil
}

// SaveSample persists a raw voice sample as <id>.wav without registering
// it, overwriting any previous sample under the same id. It returns the
// stored path.
func (r *Registry) SaveSample(id string, sample []byte) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	path := filepath.Join(r.dir, id+".wav")
	if err := os.WriteFile(path, sample, 0o644); err != nil {
		return "", fmt.Errorf("write voice sample: %w", err)
	}
	return path, nil
}

// Register persists the sample and its sidecar and records the voice as
// the most recently registered. An empty id gets a generated one; an empty
// name defaults to the id. Re-registering an id overwrites it.
func (r *Registry) Register(id, name string, sample []byte) (Voice, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := checkID(id); err != nil {
		return Voice{}, err
	}
	if name == "" {
		name = id
	}

	samplePath, err := r.SaveSample(id, sample)
	if err != nil {
		return Voice{}, err
	}
	meta := sidecar{ID: id, Name: name, SamplePath: samplePath}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Voice{}, fmt.Errorf("marshal voice sidecar: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, id+".json"), data, 0o644); err != nil {
		return Voice{}, fmt.Errorf("write voice sidecar: %w", err)
	}

	voice := Voice{ID: id, Name: name, SamplePath: samplePath}

	r.mu.Lock()
	if _, exists := r.cloned[id]; exists {
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.cloned[id] = voice
	r.order = append(r.order, id)
	r.mu.Unlock()

	r.logger.Info("voice registered", slog.String("id", id), slog.String("name", name))
	return voice, nil
}

// Resolve maps a requested id to a voice. Cloned voices win over built-in
// ones; an empty or "default" id that matches no registration falls back
// to the first built-in voice.
func (r *Registry) Resolve(id string) (Voice, error) {
	if id == "" {
		id = "default"
	}

	r.mu.Lock()
	v, ok := r.cloned[id]
	r.mu.Unlock()
	if ok {
		return v, nil
	}

	for _, b := range builtins {
		if b.ID == id {
			return b, nil
		}
	}
	if id == "default" {
		return builtins[0], nil
	}
	return Voice{}, fmt.Errorf("%w: %s", ErrUnknownVoice, id)
}

// List returns every selectable voice: built-ins first, then cloned voices
// in registration order.
func (r *Registry) List() []Voice {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Voice, 0, len(builtins)+len(r.order))
	out = append(out, builtins...)
	for _, id := range r.order {
		out = append(out, r.cloned[id])
	}
	return out
}

// ClonedNewestFirst returns registered voices only, most recent first.
func (r *Registry) ClonedNewestFirst() []Voice {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Voice, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.cloned[r.order[i]])
	}
	return out
}

// ClonedCount reports how many cloned voices are registered.
func (r *Registry) ClonedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func checkID(id string) error {
	if id == "" || id != filepath.Base(id) || strings.ContainsAny(id, "./\\") {
		return fmt.Errorf("invalid voice id %q", id)
	}
	return nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

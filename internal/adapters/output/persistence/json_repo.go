package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONStateRepository keeps small per-device values in a JSON file so they
// survive restarts.
type JSONStateRepository struct {
	filepath string
	mu       sync.RWMutex
	state    *stateFile
}

type stateFile struct {
	Version    int            `json:"version"`
	Brightness map[string]int `json:"brightness"`
}

// Older files were a bare {"<deviceId>": level} map.
type legacyState map[string]int

func NewJSONStateRepository(filepath string) *JSONStateRepository {
	return &JSONStateRepository{filepath: filepath}
}

func (r *JSONStateRepository) LastBrightness(ctx context.Context, deviceID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return 0, false
	}
	level, ok := r.state.Brightness[deviceID]
	return level, ok
}

func (r *JSONStateRepository) SaveLastBrightness(ctx context.Context, deviceID string, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return err
	}
	r.state.Brightness[deviceID] = level
	return r.save()
}

// load reads the file on first use. A missing file is an empty state.
func (r *JSONStateRepository) load() error {
	if r.state != nil {
		return nil
	}

	data, err := os.ReadFile(r.filepath)
	if errors.Is(err, os.ErrNotExist) {
		r.state = &stateFile{Version: 1, Brightness: make(map[string]int)}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading state: %w", err)
	}

	var st stateFile
	if err := json.Unmarshal(data, &st); err == nil && st.Version > 0 {
		if st.Brightness == nil {
			st.Brightness = make(map[string]int)
		}
		r.state = &st
		return nil
	}
	return r.migrate(data)
}

func (r *JSONStateRepository) migrate(data []byte) error {
	var legacy legacyState
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}
	r.state = &stateFile{Version: 1, Brightness: make(map[string]int, len(legacy))}
	for id, level := range legacy {
		r.state.Brightness[id] = level
	}
	return nil
}

func (r *JSONStateRepository) save() error {
	data, err := json.MarshalIndent(r.state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(r.filepath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating state dir: %w", err)
		}
	}
	return os.WriteFile(r.filepath, data, 0o644)
}

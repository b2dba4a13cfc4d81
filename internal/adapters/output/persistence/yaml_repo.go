package persistence

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"dwelo-bridge/internal/domain/model"
)

// YAMLConfigRepository loads the bridge configuration from a YAML file with
// ${VAR} environment expansion.
type YAMLConfigRepository struct {
	filepath string

	mu     sync.Mutex
	cached *model.Config
}

func NewYAMLConfigRepository(filepath string) *YAMLConfigRepository {
	return &YAMLConfigRepository{filepath: filepath}
}

// Get reads the file once; later calls return the same configuration.
func (r *YAMLConfigRepository) Get(ctx context.Context) (*model.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil {
		return r.cached, nil
	}

	cfg, err := LoadConfig(r.filepath)
	if err != nil {
		return nil, err
	}
	r.cached = cfg
	return cfg, nil
}

// LoadConfig reads, expands, defaults and validates a configuration file.
func LoadConfig(path string) (*model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func ParseConfig(data []byte) (*model.Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg model.Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

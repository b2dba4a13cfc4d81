package accessory

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sync"

	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/ports"
)

var (
	_ ports.Characteristics = (*Store)(nil)
	_ ports.AccessoryState  = (*Store)(nil)
)

var (
	ErrReadOnly    = errors.New("characteristic is read-only")
	ErrUnsupported = errors.New("unsupported value")
)

// Store holds an accessory's characteristic values. Adapters write reconciled
// and optimistic values into it; frontends read them, forward user intents
// and watch for changes.
type Store struct {
	mu       sync.RWMutex
	values   map[model.Characteristic]any
	handlers map[model.Characteristic]func(any) error
	watchers []func(model.Characteristic, any)
}

func NewStore() *Store {
	return &Store{
		values:   make(map[model.Characteristic]any),
		handlers: make(map[model.Characteristic]func(any) error),
	}
}

func (s *Store) Get(key model.Characteristic) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value and notifies watchers if it changed.
func (s *Store) Set(key model.Characteristic, value any) {
	s.mu.Lock()
	old, ok := s.values[key]
	if ok && reflect.DeepEqual(old, value) {
		s.mu.Unlock()
		return
	}
	s.values[key] = value
	watchers := s.watchers
	s.mu.Unlock()

	for _, w := range watchers {
		w(key, value)
	}
}

func (s *Store) OnIntent(key model.Characteristic, handler func(any) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[key] = handler
}

// Intent forwards a user's requested value to the adapter.
func (s *Store) Intent(key model.Characteristic, value any) error {
	s.mu.RLock()
	h, ok := s.handlers[key]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrReadOnly, key)
	}
	return h(value)
}

// Writable reports whether key accepts intents.
func (s *Store) Writable(key model.Characteristic) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handlers[key]
	return ok
}

// Watch registers fn to be called after every value change.
func (s *Store) Watch(fn func(key model.Characteristic, value any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *Store) Snapshot() map[model.Characteristic]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

func (s *Store) Bool(key model.Characteristic) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

func (s *Store) Int(key model.Characteristic) int {
	return intValue(s, key)
}

func (s *Store) Float(key model.Characteristic) float64 {
	return floatValue(s, key)
}

// toInt accepts the numeric shapes frontends deliver: Go ints from HomeKit,
// float64 from decoded JSON.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint8:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

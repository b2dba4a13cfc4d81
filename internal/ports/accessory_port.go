package ports

import (
	"context"
	"dwelo-bridge/internal/domain/model"
)

// Characteristics is the capability surface an accessory adapter exposes to
// the bridge frontends, and the only thing adapters know about them.
type Characteristics interface {
	Get(key model.Characteristic) (any, bool)
	Set(key model.Characteristic, value any)
	OnIntent(key model.Characteristic, handler func(value any) error)
}

// AccessoryState is what frontends see of an accessory: typed reads, change
// notifications and a way to forward user intents.
type AccessoryState interface {
	Get(key model.Characteristic) (any, bool)
	Bool(key model.Characteristic) bool
	Int(key model.Characteristic) int
	Float(key model.Characteristic) float64
	Snapshot() map[model.Characteristic]any
	Intent(key model.Characteristic, value any) error
	Writable(key model.Characteristic) bool
	Watch(fn func(key model.Characteristic, value any))
}

// StatePublisher fans reconciled accessory state out to external consumers.
type StatePublisher interface {
	Publish(ctx context.Context, deviceID string, state map[model.Characteristic]any) error
}

package homekit

import (
	"log/slog"

	"github.com/brutella/hap/characteristic"

	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/ports"
)

// binder mirrors store values onto HAP characteristics and forwards remote
// writes as intents. A rejected write puts the stored value back.
type binder struct {
	store  ports.AccessoryState
	logger *slog.Logger
	sync   map[model.Characteristic]func()
}

func newBinder(store ports.AccessoryState, logger *slog.Logger) *binder {
	return &binder{store: store, logger: logger, sync: make(map[model.Characteristic]func())}
}

func (b *binder) boolean(key model.Characteristic, c *characteristic.Bool) {
	b.sync[key] = func() { c.SetValue(b.store.Bool(key)) }
	if b.store.Writable(key) {
		c.OnValueRemoteUpdate(func(v bool) { b.intent(key, v) })
	}
}

func (b *binder) integer(key model.Characteristic, c *characteristic.Int) {
	b.sync[key] = func() { c.SetValue(b.store.Int(key)) }
	if b.store.Writable(key) {
		c.OnValueRemoteUpdate(func(v int) { b.intent(key, v) })
	}
}

func (b *binder) float(key model.Characteristic, c *characteristic.Float) {
	b.sync[key] = func() { c.SetValue(b.store.Float(key)) }
	if b.store.Writable(key) {
		c.OnValueRemoteUpdate(func(v float64) { b.intent(key, v) })
	}
}

func (b *binder) intent(key model.Characteristic, v any) {
	if err := b.store.Intent(key, v); err != nil {
		b.logger.Warn("homekit write rejected", "key", string(key), "value", v, "error", err)
		b.refresh(key)
	}
}

func (b *binder) refresh(key model.Characteristic) {
	if f, ok := b.sync[key]; ok {
		f()
	}
}

// start pushes the current values and follows every later change.
func (b *binder) start() {
	for _, f := range b.sync {
		f()
	}
	b.store.Watch(func(key model.Characteristic, _ any) { b.refresh(key) })
}

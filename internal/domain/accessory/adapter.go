// Package accessory adapts Dwelo devices to bridge characteristics. Each
// adapter turns intents on its Store into confirmed vendor commands and maps
// reported sensor state back onto the Store.
package accessory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dwelo-bridge/internal/domain/debounce"
	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/ports"

	"github.com/jonboulle/clockwork"
)

type Adapter interface {
	Info() model.DeviceInfo
	Characteristics() ports.AccessoryState
	// Reconcile overwrites every characteristic with the reported state.
	Reconcile(d model.Device)
	Close()
}

// Dispatch is one debounced unit of work: the command to send and the state
// that confirms it.
type Dispatch struct {
	Command model.Command
	Stop    model.StopCondition
	// Previous holds the values the intent overwrote.
	Previous map[model.Characteristic]any
}

type DispatchGroup = debounce.Group[model.CommandKey, Dispatch]

type Deps struct {
	Commander ports.Commander
	// Leading fires the first intent of a burst. Used for binary commands.
	Leading *DispatchGroup
	// Trailing fires the last intent of a burst. Used for levels and setpoints.
	Trailing    *DispatchGroup
	State       ports.StateRepository
	Clock       clockwork.Clock
	AutoLock    time.Duration
	SendTimeout time.Duration
	Logger      *slog.Logger
}

type base struct {
	info model.DeviceInfo
	// store is the write side adapters use; state is the same Store as
	// frontends see it.
	store     ports.Characteristics
	state     *Store
	deps      Deps
	logger    *slog.Logger
	reconcile func(model.Device)

	mu   sync.Mutex
	last *model.Device
}

func newBase(info model.DeviceInfo, deps Deps) base {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.SendTimeout == 0 {
		deps.SendTimeout = 15 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	store := NewStore()
	return base{
		info:   info,
		store:  store,
		state:  store,
		deps:   deps,
		logger: deps.Logger.With("component", "accessory", "device", info.ID, "type", string(info.Type)),
	}
}

func (b *base) Info() model.DeviceInfo {
	return b.info
}

func (b *base) Characteristics() ports.AccessoryState {
	return b.state
}

// Close drops the device's debounce windows so a rediscovered adapter starts
// fresh.
func (b *base) Close() {
	own := func(k model.CommandKey) bool { return k.DeviceID == b.info.ID }
	if b.deps.Leading != nil {
		b.deps.Leading.Forget(own)
	}
	if b.deps.Trailing != nil {
		b.deps.Trailing.Forget(own)
	}
}

// remember keeps the latest reported state so a failed send can fall back to
// it.
func (b *base) remember(d model.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = &d
}

func (b *base) lastReported() (model.Device, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return model.Device{}, false
	}
	return *b.last, true
}

func (b *base) leading(class string, d Dispatch) {
	b.deps.Leading.Call(model.CommandKey{DeviceID: b.info.ID, Class: class}, b.dispatch, d)
}

func (b *base) trailing(class string, d Dispatch) {
	b.deps.Trailing.Call(model.CommandKey{DeviceID: b.info.ID, Class: class}, b.dispatch, d)
}

func (b *base) dispatch(d Dispatch) {
	ctx, cancel := context.WithTimeout(context.Background(), b.deps.SendTimeout)
	defer cancel()

	if err := b.deps.Commander.SendAndConfirm(ctx, b.info.ID, d.Command, d.Stop); err != nil {
		b.logger.Error("command failed, reverting", "command", d.Command.String(), "error", err)
		b.revert(d.Previous)
		return
	}
	b.logger.Info("command sent", "command", d.Command.String())
}

// revert drops optimistic values by replaying the last reported state, or by
// restoring what the intent overwrote if nothing was reported yet.
func (b *base) revert(previous map[model.Characteristic]any) {
	if d, ok := b.lastReported(); ok && b.reconcile != nil {
		b.reconcile(d)
		return
	}
	for k, v := range previous {
		b.store.Set(k, v)
	}
}

// optimistic writes values that are shown until the next reconciliation and
// returns the ones they replaced.
func (b *base) optimistic(values map[model.Characteristic]any) map[model.Characteristic]any {
	previous := make(map[model.Characteristic]any, len(values))
	for k, v := range values {
		if old, ok := b.store.Get(k); ok {
			previous[k] = old
		}
		b.store.Set(k, v)
	}
	return previous
}

func floatValue(c ports.Characteristics, key model.Characteristic) float64 {
	v, _ := c.Get(key)
	f, _ := toFloat(v)
	return f
}

func intValue(c ports.Characteristics, key model.Characteristic) int {
	v, _ := c.Get(key)
	i, _ := toInt(v)
	return i
}

func invalid(key model.Characteristic, v any) error {
	return fmt.Errorf("%w: %v for %s", ErrUnsupported, v, key)
}

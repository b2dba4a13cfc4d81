package accessory

import (
	"sync"

	"dwelo-bridge/internal/domain/model"

	"github.com/jonboulle/clockwork"
)

const lowBatteryPercent = 20

type Lock struct {
	base

	relockMu sync.Mutex
	relock   clockwork.Timer
}

func NewLock(info model.DeviceInfo, deps Deps) *Lock {
	l := &Lock{base: newBase(info, deps)}
	l.base.reconcile = l.apply
	l.store.Set(model.LockCurrentState, model.LockUnknown)
	l.store.Set(model.LockTargetState, model.LockSecured)
	l.store.OnIntent(model.LockTargetState, l.setTarget)
	return l
}

func (l *Lock) setTarget(v any) error {
	target, ok := toInt(v)
	if !ok || (target != model.LockSecured && target != model.LockUnsecured) {
		return invalid(model.LockTargetState, v)
	}
	l.cancelRelock()

	locked := target == model.LockSecured
	cmd := model.Command{Name: "unlock"}
	if locked {
		cmd = model.Command{Name: "lock"}
	}
	previous := l.optimistic(map[model.Characteristic]any{model.LockTargetState: target})
	l.leading("lock", Dispatch{Command: cmd, Stop: doorLocked(locked), Previous: previous})
	return nil
}

func (l *Lock) Reconcile(d model.Device) {
	l.remember(d)
	l.apply(d)
}

func (l *Lock) apply(d model.Device) {
	state := lockState(d.Sensors)
	prev, _ := l.store.Get(model.LockCurrentState)

	l.store.Set(model.LockCurrentState, state)
	if state == model.LockSecured || state == model.LockUnsecured {
		l.store.Set(model.LockTargetState, state)
	}

	if level, ok := d.Sensors.Float(model.SensorBatteryLevel); ok {
		battery := clampLevel(level)
		status := model.BatteryNormal
		if battery <= lowBatteryPercent {
			status = model.BatteryLow
		}
		l.store.Set(model.BatteryLevel, battery)
		l.store.Set(model.StatusLowBattery, status)
	}

	if prev == state {
		return
	}
	l.cancelRelock()
	if state == model.LockUnsecured && l.deps.AutoLock > 0 {
		l.scheduleRelock()
	}
}

func (l *Lock) scheduleRelock() {
	l.relockMu.Lock()
	defer l.relockMu.Unlock()
	l.logger.Info("scheduling auto-lock", "after", l.deps.AutoLock)
	l.relock = l.deps.Clock.AfterFunc(l.deps.AutoLock, func() {
		l.relockMu.Lock()
		l.relock = nil
		l.relockMu.Unlock()

		l.logger.Info("auto-locking")
		if err := l.setTarget(model.LockSecured); err != nil {
			l.logger.Error("auto-lock failed", "error", err)
		}
	})
}

func (l *Lock) cancelRelock() {
	l.relockMu.Lock()
	defer l.relockMu.Unlock()
	if l.relock != nil {
		l.relock.Stop()
		l.relock = nil
	}
}

// RelockPending reports whether an auto-lock is scheduled.
func (l *Lock) RelockPending() bool {
	l.relockMu.Lock()
	defer l.relockMu.Unlock()
	return l.relock != nil
}

func (l *Lock) Close() {
	l.cancelRelock()
	l.base.Close()
}

func lockState(s model.Sensors) int {
	switch {
	case s.Is(model.SensorDoorLocked, "True"):
		return model.LockSecured
	case s.Is(model.SensorDoorLocked, "False"):
		return model.LockUnsecured
	}
	return model.LockUnknown
}

func doorLocked(locked bool) model.StopCondition {
	want := "False"
	if locked {
		want = "True"
	}
	return func(d model.Device) (bool, error) {
		return d.Sensors.Is(model.SensorDoorLocked, want), nil
	}
}

package accessory

import (
	"context"
	"math"
	"sync"

	"dwelo-bridge/internal/domain/model"
)

const defaultBrightness = 100

type Dimmer struct {
	base

	levelMu   sync.Mutex
	lastLevel int
}

func NewDimmer(info model.DeviceInfo, deps Deps) *Dimmer {
	d := &Dimmer{base: newBase(info, deps), lastLevel: defaultBrightness}
	d.base.reconcile = d.apply
	if deps.State != nil {
		if level, ok := deps.State.LastBrightness(context.Background(), info.ID); ok && level > 0 {
			d.lastLevel = level
		}
	}
	d.store.Set(model.On, false)
	d.store.Set(model.Brightness, d.lastLevel)
	d.store.OnIntent(model.On, d.setOn)
	d.store.OnIntent(model.Brightness, d.setBrightness)
	return d
}

// setOn restores the last known brightness when turning on.
func (d *Dimmer) setOn(v any) error {
	on, ok := v.(bool)
	if !ok {
		return invalid(model.On, v)
	}
	if !on {
		d.off()
		return nil
	}
	d.level(d.lastBrightness())
	return nil
}

// setBrightness treats 0 as off.
func (d *Dimmer) setBrightness(v any) error {
	f, ok := toFloat(v)
	if !ok {
		return invalid(model.Brightness, v)
	}
	level := clampLevel(f)
	if level == 0 {
		d.off()
		return nil
	}
	d.rememberBrightness(level)
	d.level(level)
	return nil
}

func (d *Dimmer) off() {
	previous := d.optimistic(map[model.Characteristic]any{model.On: false})
	d.trailing("level", Dispatch{Command: model.Command{Name: "off"}, Stop: switchState(false), Previous: previous})
}

func (d *Dimmer) level(level int) {
	previous := d.optimistic(map[model.Characteristic]any{model.On: true, model.Brightness: level})
	d.trailing("level", Dispatch{
		Command:  model.Command{Name: "on", Value: level},
		Stop:     dimmerLevel(level),
		Previous: previous,
	})
}

func (d *Dimmer) Reconcile(dev model.Device) {
	d.remember(dev)
	d.apply(dev)
}

func (d *Dimmer) apply(dev model.Device) {
	on := dev.Sensors.Is(model.SensorSwitch, "On")
	if _, ok := dev.Sensors.String(model.SensorSwitch); ok {
		d.store.Set(model.On, on)
	}
	if pct, ok := dev.Sensors.Float(model.SensorPercent); ok {
		level := clampLevel(pct)
		if level > 0 {
			d.store.Set(model.Brightness, level)
			if on {
				d.rememberBrightness(level)
			}
		}
	}
}

func (d *Dimmer) lastBrightness() int {
	d.levelMu.Lock()
	defer d.levelMu.Unlock()
	return d.lastLevel
}

func (d *Dimmer) rememberBrightness(level int) {
	d.levelMu.Lock()
	changed := d.lastLevel != level
	d.lastLevel = level
	d.levelMu.Unlock()

	if !changed || d.deps.State == nil {
		return
	}
	if err := d.deps.State.SaveLastBrightness(context.Background(), d.info.ID, level); err != nil {
		d.logger.Warn("could not persist brightness", "level", level, "error", err)
	}
}

func clampLevel(f float64) int {
	return int(math.Round(math.Max(0, math.Min(100, f))))
}

// dimmerLevel accepts a reported level within one percent of the target,
// since dimmers round.
func dimmerLevel(level int) model.StopCondition {
	return func(dev model.Device) (bool, error) {
		if !dev.Sensors.Is(model.SensorSwitch, "On") {
			return false, nil
		}
		pct, ok := dev.Sensors.Float(model.SensorPercent)
		if !ok {
			return false, nil
		}
		return math.Abs(pct-float64(level)) <= 1, nil
	}
}

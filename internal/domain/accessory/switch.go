package accessory

import "dwelo-bridge/internal/domain/model"

type Switch struct {
	base
}

func NewSwitch(info model.DeviceInfo, deps Deps) *Switch {
	s := &Switch{base: newBase(info, deps)}
	s.base.reconcile = s.apply
	s.store.Set(model.On, false)
	s.store.OnIntent(model.On, s.setOn)
	return s
}

func (s *Switch) setOn(v any) error {
	on, ok := v.(bool)
	if !ok {
		return invalid(model.On, v)
	}
	previous := s.optimistic(map[model.Characteristic]any{model.On: on})
	s.leading("power", Dispatch{Command: powerCommand(on), Stop: switchState(on), Previous: previous})
	return nil
}

func (s *Switch) Reconcile(d model.Device) {
	s.remember(d)
	s.apply(d)
}

func (s *Switch) apply(d model.Device) {
	if _, ok := d.Sensors.String(model.SensorSwitch); ok {
		s.store.Set(model.On, d.Sensors.Is(model.SensorSwitch, "On"))
	}
}

func powerCommand(on bool) model.Command {
	if on {
		return model.Command{Name: "on"}
	}
	return model.Command{Name: "off"}
}

func switchState(on bool) model.StopCondition {
	want := "Off"
	if on {
		want = "On"
	}
	return func(d model.Device) (bool, error) {
		return d.Sensors.Is(model.SensorSwitch, want), nil
	}
}

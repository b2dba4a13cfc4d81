package accessory

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"dwelo-bridge/internal/domain/model"
)

var modeOrder = []int{model.ModeOff, model.ModeHeat, model.ModeCool, model.ModeAuto}

var modeNames = map[int]string{
	model.ModeOff:  "off",
	model.ModeHeat: "heat",
	model.ModeCool: "cool",
	model.ModeAuto: "auto",
}

// Range is an inclusive setpoint range in °F.
type Range struct {
	Low, High float64
}

func (r Range) clamp(f float64) float64 {
	return math.Max(r.Low, math.Min(r.High, f))
}

// Celsius returns the range converted for HomeKit.
func (r Range) Celsius() (float64, float64) {
	return model.FahrenheitToCelsius(r.Low), model.FahrenheitToCelsius(r.High)
}

type Thermostat struct {
	base

	modes    []int
	heat     Range
	cool     Range
	fanModes []string
}

func NewThermostat(info model.DeviceInfo, deps Deps) *Thermostat {
	t := &Thermostat{
		base:     newBase(info, deps),
		modes:    supportedModes(info.Metadata),
		heat:     Range{Low: metaFloat(info.Metadata, "heat_setpoint_low", 40), High: metaFloat(info.Metadata, "heat_setpoint_high", 89)},
		cool:     Range{Low: metaFloat(info.Metadata, "cool_setpoint_low", 61), High: metaFloat(info.Metadata, "cool_setpoint_high", 90)},
		fanModes: metaStrings(info.Metadata, "fan_modes"),
	}
	if len(t.fanModes) < 2 {
		t.fanModes = []string{"AutoLow", "ManualLow"}
	}
	t.base.reconcile = t.apply

	heatLow, _ := t.heat.Celsius()
	_, coolHigh := t.cool.Celsius()
	t.store.Set(model.CurrentHeatingCoolingState, model.ModeOff)
	t.store.Set(model.TargetHeatingCoolingState, model.ModeOff)
	t.store.Set(model.CurrentTemperature, 20.0)
	t.store.Set(model.TargetTemperature, 20.0)
	t.store.Set(model.HeatingThreshold, heatLow)
	t.store.Set(model.CoolingThreshold, coolHigh)
	t.store.Set(model.TemperatureDisplayUnits, model.UnitsFahrenheit)
	t.store.Set(model.FanOn, false)
	t.store.Set(model.CurrentRelativeHumidity, 0.0)

	t.store.OnIntent(model.TargetHeatingCoolingState, t.setMode)
	t.store.OnIntent(model.TargetTemperature, t.setTargetTemperature)
	t.store.OnIntent(model.HeatingThreshold, t.setHeatingThreshold)
	t.store.OnIntent(model.CoolingThreshold, t.setCoolingThreshold)
	t.store.OnIntent(model.FanOn, t.setFan)
	t.store.OnIntent(model.TemperatureDisplayUnits, t.setDisplayUnits)
	return t
}

// Modes lists the target heating/cooling states the device supports.
func (t *Thermostat) Modes() []int {
	return append([]int(nil), t.modes...)
}

func (t *Thermostat) HeatRange() Range { return t.heat }
func (t *Thermostat) CoolRange() Range { return t.cool }

func (t *Thermostat) setMode(v any) error {
	mode, ok := toInt(v)
	if !ok || !t.supports(mode) {
		return invalid(model.TargetHeatingCoolingState, v)
	}
	name := modeNames[mode]
	previous := t.optimistic(map[model.Characteristic]any{model.TargetHeatingCoolingState: mode})
	t.trailing("mode", Dispatch{
		Command:  model.Command{Name: model.SensorThermostatMode, Value: name},
		Stop:     sensorIs(model.SensorThermostatMode, name),
		Previous: previous,
	})
	return nil
}

// setTargetTemperature moves the setpoint the current mode acts on. In auto
// mode raising the target above the room temperature moves the cool setpoint,
// anything else the heat setpoint.
func (t *Thermostat) setTargetTemperature(v any) error {
	c, ok := toFloat(v)
	if !ok {
		return invalid(model.TargetTemperature, v)
	}

	var heat bool
	switch mode := intValue(t.store, model.TargetHeatingCoolingState); mode {
	case model.ModeHeat:
		heat = true
	case model.ModeCool:
		heat = false
	case model.ModeAuto:
		heat = c <= floatValue(t.store, model.CurrentTemperature)
	default:
		return fmt.Errorf("%w: target temperature while thermostat is off", ErrUnsupported)
	}

	if heat {
		t.setpoint(model.SensorHeatSetpoint, "heat-setpoint", t.heat, c, model.TargetTemperature, model.HeatingThreshold)
	} else {
		t.setpoint(model.SensorCoolSetpoint, "cool-setpoint", t.cool, c, model.TargetTemperature, model.CoolingThreshold)
	}
	return nil
}

func (t *Thermostat) setHeatingThreshold(v any) error {
	c, ok := toFloat(v)
	if !ok {
		return invalid(model.HeatingThreshold, v)
	}
	t.setpoint(model.SensorHeatSetpoint, "heat-setpoint", t.heat, c, model.HeatingThreshold)
	return nil
}

func (t *Thermostat) setCoolingThreshold(v any) error {
	c, ok := toFloat(v)
	if !ok {
		return invalid(model.CoolingThreshold, v)
	}
	t.setpoint(model.SensorCoolSetpoint, "cool-setpoint", t.cool, c, model.CoolingThreshold)
	return nil
}

// setpoint sends a whole-degree Fahrenheit setpoint clamped to r.
func (t *Thermostat) setpoint(sensor, class string, r Range, celsius float64, keys ...model.Characteristic) {
	f := math.Round(r.clamp(model.CelsiusToFahrenheit(celsius)))
	values := make(map[model.Characteristic]any, len(keys))
	for _, k := range keys {
		values[k] = celsius
	}
	previous := t.optimistic(values)
	t.trailing(class, Dispatch{
		Command:  model.Command{Name: sensor, Value: int(f)},
		Stop:     setpointIs(sensor, f),
		Previous: previous,
	})
}

func (t *Thermostat) setFan(v any) error {
	on, ok := v.(bool)
	if !ok {
		return invalid(model.FanOn, v)
	}
	mode := t.fanModes[0]
	if on {
		mode = t.fanModes[1]
	}
	previous := t.optimistic(map[model.Characteristic]any{model.FanOn: on})
	t.trailing("fan", Dispatch{
		Command:  model.Command{Name: model.SensorFanMode, Value: mode},
		Stop:     sensorIs(model.SensorFanMode, mode),
		Previous: previous,
	})
	return nil
}

// setDisplayUnits accepts the value locally. The device's own unit wins on
// the next reconciliation.
func (t *Thermostat) setDisplayUnits(v any) error {
	units, ok := toInt(v)
	if !ok || (units != model.UnitsCelsius && units != model.UnitsFahrenheit) {
		return invalid(model.TemperatureDisplayUnits, v)
	}
	t.store.Set(model.TemperatureDisplayUnits, units)
	return nil
}

func (t *Thermostat) Reconcile(d model.Device) {
	t.remember(d)
	t.apply(d)
}

func (t *Thermostat) apply(d model.Device) {
	s := d.Sensors

	current := model.ModeOff
	if op, ok := s.String(model.SensorOperatingState); ok {
		switch strings.ToLower(op) {
		case "heat", "heating":
			current = model.ModeHeat
		case "cool", "cooling":
			current = model.ModeCool
		}
	}
	t.store.Set(model.CurrentHeatingCoolingState, current)

	target := model.ModeOff
	if name, ok := s.String(model.SensorThermostatMode); ok {
		for mode, n := range modeNames {
			if strings.EqualFold(name, n) {
				target = mode
			}
		}
	}
	t.store.Set(model.TargetHeatingCoolingState, target)

	if c, ok := s.Celsius(model.SensorTemperature); ok {
		t.store.Set(model.CurrentTemperature, c)
	}
	heat, hasHeat := s.Celsius(model.SensorHeatSetpoint)
	cool, hasCool := s.Celsius(model.SensorCoolSetpoint)
	if hasHeat {
		t.store.Set(model.HeatingThreshold, heat)
	}
	if hasCool {
		t.store.Set(model.CoolingThreshold, cool)
	}
	switch {
	case target == model.ModeHeat && hasHeat:
		t.store.Set(model.TargetTemperature, heat)
	case target == model.ModeCool && hasCool:
		t.store.Set(model.TargetTemperature, cool)
	}

	if fan, ok := s.String(model.SensorFanMode); ok {
		t.store.Set(model.FanOn, strings.EqualFold(fan, t.fanModes[1]))
	}
	if h, ok := s.Float(model.SensorHumidity); ok {
		t.store.Set(model.CurrentRelativeHumidity, h)
	}

	units := model.UnitsFahrenheit
	if strings.EqualFold(s[model.SensorTemperature].Unit, "C") {
		units = model.UnitsCelsius
	}
	t.store.Set(model.TemperatureDisplayUnits, units)
}

func (t *Thermostat) supports(mode int) bool {
	for _, m := range t.modes {
		if m == mode {
			return true
		}
	}
	return false
}

func supportedModes(meta map[string]any) []int {
	names := metaStrings(meta, "hvac_modes")
	if len(names) == 0 {
		names = []string{"Off", "Heat", "Cool", "Auto"}
	}
	listed := make(map[string]bool, len(names))
	for _, n := range names {
		listed[strings.ToLower(n)] = true
	}
	var modes []int
	for _, mode := range modeOrder {
		if listed[modeNames[mode]] {
			modes = append(modes, mode)
		}
	}
	return modes
}

func metaStrings(meta map[string]any, key string) []string {
	raw, ok := meta[key].([]any)
	if !ok {
		if s, ok := meta[key].([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func metaFloat(meta map[string]any, key string, def float64) float64 {
	switch v := meta[key].(type) {
	case float64:
		if v != 0 {
			return v
		}
	case int:
		if v != 0 {
			return float64(v)
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil && f != 0 {
			return f
		}
	}
	return def
}

func sensorIs(sensor, want string) model.StopCondition {
	return func(d model.Device) (bool, error) {
		return d.Sensors.Is(sensor, want), nil
	}
}

func setpointIs(sensor string, fahrenheit float64) model.StopCondition {
	return func(d model.Device) (bool, error) {
		f, ok := d.Sensors.Fahrenheit(sensor)
		return ok && math.Round(f) == fahrenheit, nil
	}
}

package homekit

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	haccessory "github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	hservice "github.com/brutella/hap/service"

	"dwelo-bridge/internal/domain/accessory"
	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/domain/service"
)

const manufacturer = "Dwelo"

// NewAccessory builds the HAP accessory for a domain adapter and binds its
// characteristics to the adapter's store.
func NewAccessory(a accessory.Adapter, logger *slog.Logger) (*haccessory.A, error) {
	info := a.Info()
	b := newBinder(a.Characteristics(), logger.With("device", info.ID))

	var acc *haccessory.A
	switch info.Type {
	case model.DeviceTypeSwitch:
		acc = newSwitch(info, b).A
	case model.DeviceTypeDimmer:
		acc = newDimmer(info, b).A
	case model.DeviceTypeLock:
		acc = newLock(info, b)
	case model.DeviceTypeThermostat:
		t, ok := a.(*accessory.Thermostat)
		if !ok {
			return nil, fmt.Errorf("%w: thermostat adapter %T", accessory.ErrUnsupported, a)
		}
		acc = newThermostat(info, t, b).A
	default:
		return nil, fmt.Errorf("%w: device type %q", accessory.ErrUnsupported, info.Type)
	}

	acc.Id = accessoryID(info.ID)
	b.start()
	return acc, nil
}

// accessoryID derives a stable HAP id. Id 1 belongs to the bridge.
func accessoryID(deviceID string) uint64 {
	u := service.AccessoryUUID(deviceID)
	id := binary.BigEndian.Uint64(u[:8]) >> 1
	if id <= 1 {
		id += 2
	}
	return id
}

func hapInfo(info model.DeviceInfo) haccessory.Info {
	name := info.Name
	if name == "" {
		name = "Dwelo " + info.ID
	}
	return haccessory.Info{
		Name:         name,
		SerialNumber: info.ID,
		Manufacturer: manufacturer,
		Model:        string(info.Type),
	}
}

func newSwitch(info model.DeviceInfo, b *binder) *haccessory.Switch {
	sw := haccessory.NewSwitch(hapInfo(info))
	b.boolean(model.On, sw.Switch.On.Bool)
	return sw
}

func newDimmer(info model.DeviceInfo, b *binder) *haccessory.Lightbulb {
	lb := haccessory.NewLightbulb(hapInfo(info))
	bri := characteristic.NewBrightness()
	lb.Lightbulb.AddC(bri.C)

	b.boolean(model.On, lb.Lightbulb.On.Bool)
	b.integer(model.Brightness, bri.Int)
	return lb
}

func newLock(info model.DeviceInfo, b *binder) *haccessory.A {
	acc := haccessory.New(hapInfo(info), haccessory.TypeDoorLock)

	lm := hservice.NewLockMechanism()
	acc.AddS(lm.S)
	battery := hservice.NewBatteryService()
	acc.AddS(battery.S)

	b.integer(model.LockCurrentState, lm.LockCurrentState.Int)
	b.integer(model.LockTargetState, lm.LockTargetState.Int)
	b.integer(model.BatteryLevel, battery.BatteryLevel.Int)
	b.integer(model.StatusLowBattery, battery.StatusLowBattery.Int)
	return acc
}

func newThermostat(info model.DeviceInfo, t *accessory.Thermostat, b *binder) *haccessory.Thermostat {
	th := haccessory.NewThermostat(hapInfo(info))
	svc := th.Thermostat

	heatLow, heatHigh := t.HeatRange().Celsius()
	coolLow, coolHigh := t.CoolRange().Celsius()

	svc.TargetHeatingCoolingState.ValidVals = t.Modes()
	svc.TargetTemperature.SetMinValue(heatLow)
	svc.TargetTemperature.SetMaxValue(coolHigh)
	svc.TargetTemperature.SetStepValue(0.5)

	heating := characteristic.NewHeatingThresholdTemperature()
	heating.SetMinValue(heatLow)
	heating.SetMaxValue(heatHigh)
	svc.AddC(heating.C)
	cooling := characteristic.NewCoolingThresholdTemperature()
	cooling.SetMinValue(coolLow)
	cooling.SetMaxValue(coolHigh)
	svc.AddC(cooling.C)

	fan := hservice.NewFan()
	th.AddS(fan.S)
	humidity := hservice.NewHumiditySensor()
	th.AddS(humidity.S)

	b.integer(model.CurrentHeatingCoolingState, svc.CurrentHeatingCoolingState.Int)
	b.integer(model.TargetHeatingCoolingState, svc.TargetHeatingCoolingState.Int)
	b.float(model.CurrentTemperature, svc.CurrentTemperature.Float)
	b.float(model.TargetTemperature, svc.TargetTemperature.Float)
	b.float(model.HeatingThreshold, heating.Float)
	b.float(model.CoolingThreshold, cooling.Float)
	b.integer(model.TemperatureDisplayUnits, svc.TemperatureDisplayUnits.Int)
	b.boolean(model.FanOn, fan.On.Bool)
	b.float(model.CurrentRelativeHumidity, humidity.CurrentRelativeHumidity.Float)
	return th
}

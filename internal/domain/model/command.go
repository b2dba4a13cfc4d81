package model

import "fmt"

// Command is an intended state change for one device. Value is optional.
type Command struct {
	Name  string `json:"command"`
	Value any    `json:"commandValue,omitempty"`
}

func (c Command) String() string {
	if c.Value == nil {
		return c.Name
	}
	return fmt.Sprintf("%s(%v)", c.Name, c.Value)
}

// CommandKey identifies an independent debounce window.
type CommandKey struct {
	DeviceID string
	Class    string
}

// StopCondition reports whether a device's reported state confirms an
// intended change. An error is fatal for the confirmation loop.
type StopCondition func(Device) (bool, error)

// Characteristic names a bridge-visible value on an accessory.
type Characteristic string

const (
	On                         Characteristic = "on"
	Brightness                 Characteristic = "brightness"
	LockCurrentState           Characteristic = "lock_current_state"
	LockTargetState            Characteristic = "lock_target_state"
	BatteryLevel               Characteristic = "battery_level"
	StatusLowBattery           Characteristic = "status_low_battery"
	CurrentHeatingCoolingState Characteristic = "current_heating_cooling_state"
	TargetHeatingCoolingState  Characteristic = "target_heating_cooling_state"
	CurrentTemperature         Characteristic = "current_temperature"
	TargetTemperature          Characteristic = "target_temperature"
	HeatingThreshold           Characteristic = "heating_threshold_temperature"
	CoolingThreshold           Characteristic = "cooling_threshold_temperature"
	TemperatureDisplayUnits    Characteristic = "temperature_display_units"
	FanOn                      Characteristic = "fan_on"
	CurrentRelativeHumidity    Characteristic = "current_relative_humidity"
)

// Values match the HomeKit enumerations so frontends can pass them through.
const (
	LockUnsecured = 0
	LockSecured   = 1
	LockJammed    = 2
	LockUnknown   = 3

	ModeOff  = 0
	ModeHeat = 1
	ModeCool = 2
	ModeAuto = 3

	UnitsCelsius    = 0
	UnitsFahrenheit = 1

	BatteryNormal = 0
	BatteryLow    = 1
)

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type DeviceType string

const (
	DeviceTypeSwitch     DeviceType = "switch"
	DeviceTypeDimmer     DeviceType = "dimmer"
	DeviceTypeLock       DeviceType = "lock"
	DeviceTypeThermostat DeviceType = "thermostat"
)

// Sensor keys reported by the Dwelo status endpoint.
const (
	SensorSwitch         = "Switch"
	SensorPercent        = "Percent"
	SensorDoorLocked     = "DoorLocked"
	SensorBatteryLevel   = "BatteryLevel"
	SensorTemperature    = "Temperature"
	SensorThermostatMode = "ThermostatMode"
	SensorHeatSetpoint   = "ThermostatHeatSetpoint"
	SensorCoolSetpoint   = "ThermostatCoolSetpoint"
	SensorFanMode        = "ThermostatFanMode"
	SensorHumidity       = "Humidity"
	SensorOperatingState = "ThermostatOperatingState"
)

// DeviceInfo is what discovery knows about a device.
type DeviceInfo struct {
	ID        string
	Name      string
	Type      DeviceType
	GatewayID string
	Online    bool
	Active    bool
	Metadata  map[string]any
}

// Device is a read-only view of one device's reported state. It is only ever
// replaced wholesale from a fresh fetch.
type Device struct {
	ID        string
	Type      DeviceType
	Sensors   Sensors
	FetchedAt time.Time
}

// Snapshot is the aggregate status of every device on the gateway.
type Snapshot struct {
	FetchedAt time.Time
	Devices   map[string]Device
}

func (s *Snapshot) Device(id string) (Device, bool) {
	if s == nil {
		return Device{}, false
	}
	d, ok := s.Devices[id]
	return d, ok
}

// Reading is a single sensor value. Dwelo reports most sensors as bare
// scalars and temperatures as {"value": 70, "unit": "F"}.
type Reading struct {
	Value any
	Unit  string
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Value any    `json:"value"`
			Unit  string `json:"unit"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		r.Value = obj.Value
		r.Unit = obj.Unit
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r.Value = v
	return nil
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if r.Unit == "" {
		return json.Marshal(r.Value)
	}
	return json.Marshal(map[string]any{"value": r.Value, "unit": r.Unit})
}

func (r Reading) String() string {
	switch v := r.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (r Reading) Float() (float64, bool) {
	switch v := r.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

type Sensors map[string]Reading

func (s Sensors) String(key string) (string, bool) {
	r, ok := s[key]
	if !ok || r.Value == nil {
		return "", false
	}
	return r.String(), true
}

func (s Sensors) Float(key string) (float64, bool) {
	r, ok := s[key]
	if !ok {
		return 0, false
	}
	return r.Float()
}

// Is reports whether the sensor holds want, ignoring case.
func (s Sensors) Is(key, want string) bool {
	v, ok := s.String(key)
	return ok && strings.EqualFold(v, want)
}

// Fahrenheit returns a temperature reading in °F, converting if the sensor
// reports Celsius.
func (s Sensors) Fahrenheit(key string) (float64, bool) {
	v, ok := s.Float(key)
	if !ok {
		return 0, false
	}
	if strings.EqualFold(s[key].Unit, "C") {
		return CelsiusToFahrenheit(v), true
	}
	return v, true
}

// Celsius returns a temperature reading in °C, converting unless the sensor
// reports Celsius.
func (s Sensors) Celsius(key string) (float64, bool) {
	v, ok := s.Float(key)
	if !ok {
		return 0, false
	}
	if strings.EqualFold(s[key].Unit, "C") {
		return v, true
	}
	return FahrenheitToCelsius(v), true
}

func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

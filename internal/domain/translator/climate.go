package translator

import (
	"github.com/amimof/huego"

	"dwelo-bridge/internal/domain/model"
)

// ClimateStrategy maps brightness onto a 7-28 °C target temperature. Turning
// a thermostat on that is off selects heat.
type ClimateStrategy struct{}

func (s *ClimateStrategy) ToHue(values map[model.Characteristic]any) *huego.State {
	mode, _ := values[model.TargetHeatingCoolingState].(int)
	state := &huego.State{On: mode != model.ModeOff, Reachable: true}
	if temp, ok := floatValue(values, model.TargetTemperature); ok {
		state.Bri = uint8((clamp(temp, 7, 28) - 7) * 254 / 21)
	}
	return state
}

func (s *ClimateStrategy) ToIntents(current map[model.Characteristic]any, u Update) []Intent {
	var intents []Intent
	if u.On != nil {
		mode, _ := current[model.TargetHeatingCoolingState].(int)
		switch {
		case !*u.On:
			return append(intents, Intent{Key: model.TargetHeatingCoolingState, Value: model.ModeOff})
		case mode == model.ModeOff:
			intents = append(intents, Intent{Key: model.TargetHeatingCoolingState, Value: model.ModeHeat})
		}
	}
	if u.Bri != nil {
		temp := float64(*u.Bri)*21/254 + 7
		intents = append(intents, Intent{Key: model.TargetTemperature, Value: temp})
	}
	return intents
}

func (s *ClimateStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "Dimmable light",
		ModelID:          "LWB010",
		ManufacturerName: "Philips",
	}
}

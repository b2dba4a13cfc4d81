package translator

import (
	"math"

	"github.com/amimof/huego"

	"dwelo-bridge/internal/domain/model"
)

type SwitchStrategy struct{}

func (s *SwitchStrategy) ToHue(values map[model.Characteristic]any) *huego.State {
	state := &huego.State{On: boolValue(values, model.On), Reachable: true}
	if state.On {
		state.Bri = 254
	}
	return state
}

func (s *SwitchStrategy) ToIntents(_ map[model.Characteristic]any, u Update) []Intent {
	switch {
	case u.On != nil:
		return []Intent{{Key: model.On, Value: *u.On}}
	case u.Bri != nil:
		return []Intent{{Key: model.On, Value: *u.Bri > 0}}
	}
	return nil
}

func (s *SwitchStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "On/Off plug-in unit",
		ModelID:          "LOM001",
		ManufacturerName: "Philips",
	}
}

// DimmerStrategy maps Hue's 1-254 brightness onto percent.
type DimmerStrategy struct{}

func (s *DimmerStrategy) ToHue(values map[model.Characteristic]any) *huego.State {
	state := &huego.State{On: boolValue(values, model.On), Reachable: true}
	if pct, ok := floatValue(values, model.Brightness); ok {
		state.Bri = uint8(math.Round(clamp(pct, 0, 100) * 254 / 100))
	}
	return state
}

// ToIntents puts brightness last so it wins the debounce window over on.
func (s *DimmerStrategy) ToIntents(_ map[model.Characteristic]any, u Update) []Intent {
	var intents []Intent
	if u.On != nil {
		intents = append(intents, Intent{Key: model.On, Value: *u.On})
		if !*u.On {
			return intents
		}
	}
	if u.Bri != nil {
		pct := int(math.Round(float64(*u.Bri) * 100 / 254))
		if pct == 0 && *u.Bri > 0 {
			pct = 1
		}
		intents = append(intents, Intent{Key: model.Brightness, Value: pct})
	}
	return intents
}

func (s *DimmerStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "Dimmable light",
		ModelID:          "LWB010",
		ManufacturerName: "Philips",
	}
}

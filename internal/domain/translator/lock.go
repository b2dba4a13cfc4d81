package translator

import (
	"github.com/amimof/huego"

	"dwelo-bridge/internal/domain/model"
)

// LockStrategy exposes a lock as a plug: on means locked.
type LockStrategy struct{}

func (s *LockStrategy) ToHue(values map[model.Characteristic]any) *huego.State {
	current, _ := values[model.LockCurrentState].(int)
	state := &huego.State{On: current == model.LockSecured, Reachable: current != model.LockUnknown}
	if state.On {
		state.Bri = 254
	}
	return state
}

func (s *LockStrategy) ToIntents(_ map[model.Characteristic]any, u Update) []Intent {
	if u.On == nil {
		return nil
	}
	target := model.LockUnsecured
	if *u.On {
		target = model.LockSecured
	}
	return []Intent{{Key: model.LockTargetState, Value: target}}
}

func (s *LockStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "On/Off plug-in unit",
		ModelID:          "LOM001",
		ManufacturerName: "Philips",
	}
}

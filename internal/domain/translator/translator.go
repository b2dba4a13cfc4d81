package translator

import (
	"github.com/amimof/huego"

	"dwelo-bridge/internal/domain/model"
)

// Intent is one characteristic change derived from a Hue state update.
type Intent struct {
	Key   model.Characteristic
	Value any
}

// Update is the subset of a Hue PUT /state body the bridge understands.
type Update struct {
	On  *bool
	Bri *uint8
}

// Translator defines the interface for translating between Hue light state
// and accessory characteristics
type Translator interface {
	ToHue(values map[model.Characteristic]any) *huego.State
	ToIntents(current map[model.Characteristic]any, update Update) []Intent
	GetMetadata() model.HueMetadata
}

// ParseUpdate reads the fields of a decoded Hue state body.
func ParseUpdate(body map[string]any) Update {
	var u Update
	if on, ok := body["on"].(bool); ok {
		u.On = &on
	}
	if bri, ok := body["bri"].(float64); ok {
		b := uint8(clamp(bri, 0, 254))
		u.Bri = &b
	}
	return u
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolValue(values map[model.Characteristic]any, key model.Characteristic) bool {
	b, _ := values[key].(bool)
	return b
}

func floatValue(values map[model.Characteristic]any, key model.Characteristic) (float64, bool) {
	switch v := values[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

package accessory

import (
	"fmt"

	"dwelo-bridge/internal/domain/model"
)

type Factory struct {
	deps Deps
}

func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps}
}

// New builds the adapter for info's device type.
func (f *Factory) New(info model.DeviceInfo) (Adapter, error) {
	switch info.Type {
	case model.DeviceTypeSwitch:
		return NewSwitch(info, f.deps), nil
	case model.DeviceTypeDimmer:
		return NewDimmer(info, f.deps), nil
	case model.DeviceTypeLock:
		return NewLock(info, f.deps), nil
	case model.DeviceTypeThermostat:
		return NewThermostat(info, f.deps), nil
	}
	return nil, fmt.Errorf("%w: device type %q", ErrUnsupported, info.Type)
}

package ports

import (
	"context"
	"dwelo-bridge/internal/domain/model"
)

// BridgePort is what the Hue emulation and the admin endpoints need from the
// domain.
type BridgePort interface {
	GetLights(ctx context.Context) ([]*model.Light, error)
	GetLight(ctx context.Context, id string) (*model.Light, error)
	UpdateLightState(ctx context.Context, id string, body map[string]any) error
	GetAccessories(ctx context.Context) ([]model.AccessoryView, error)
	GetConfig(ctx context.Context) (*model.Config, error)
}

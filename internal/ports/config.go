package ports

import (
	"context"
	"dwelo-bridge/internal/domain/model"
)

type ConfigRepository interface {
	Get(ctx context.Context) (*model.Config, error)
}

// StateRepository keeps small per-device values that outlive a restart.
type StateRepository interface {
	LastBrightness(ctx context.Context, deviceID string) (int, bool)
	SaveLastBrightness(ctx context.Context, deviceID string, level int) error
}

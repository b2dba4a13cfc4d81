package ports

import (
	"context"
	"dwelo-bridge/internal/domain/model"
)

// DweloPort is the vendor device-control API.
type DweloPort interface {
	DeviceLister
	FetchStatus(ctx context.Context) (*model.Snapshot, error)
	CommandSender
}

type DeviceLister interface {
	ListDevices(ctx context.Context) ([]model.DeviceInfo, error)
}

// CommandSender is the part of the vendor API commands go through.
type CommandSender interface {
	SendCommand(ctx context.Context, deviceID string, cmd model.Command) error
}

// Commander sends a command and confirms it in the background. It returns as
// soon as the vendor accepted the command.
type Commander interface {
	SendAndConfirm(ctx context.Context, deviceID string, cmd model.Command, stop model.StopCondition) error
}

package homekit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brutella/hap"
	haccessory "github.com/brutella/hap/accessory"

	"dwelo-bridge/internal/domain/accessory"
	"dwelo-bridge/internal/domain/model"
)

// AccessorySource is the platform the HomeKit bridge exposes.
type AccessorySource interface {
	Accessories() []accessory.Adapter
}

// Server publishes the platform's accessories as one HomeKit bridge.
type Server struct {
	cfg    model.HomeKitConfig
	source AccessorySource
	logger *slog.Logger
}

func NewServer(cfg model.HomeKitConfig, source AccessorySource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, source: source, logger: logger.With("component", "homekit")}
}

// Accessories builds the HAP accessories for every supported adapter.
func (s *Server) Accessories() []*haccessory.A {
	var accs []*haccessory.A
	for _, a := range s.source.Accessories() {
		acc, err := NewAccessory(a, s.logger)
		if errors.Is(err, accessory.ErrUnsupported) {
			s.logger.Info("not exposed to homekit", "device", a.Info().ID, "error", err)
			continue
		}
		if err != nil {
			s.logger.Error("building accessory failed", "device", a.Info().ID, "error", err)
			continue
		}
		accs = append(accs, acc)
	}
	return accs
}

// ListenAndServe runs the HAP server until ctx is cancelled. The accessory
// set is fixed when it starts.
func (s *Server) ListenAndServe(ctx context.Context) error {
	bridge := haccessory.NewBridge(haccessory.Info{
		Name:         s.cfg.Name,
		SerialNumber: "1",
		Manufacturer: manufacturer,
		Model:        "dwelo-bridge",
	})
	bridge.A.Id = 1

	accs := s.Accessories()
	fs := hap.NewFsStore(s.cfg.StoragePath)
	server, err := hap.NewServer(fs, bridge.A, accs...)
	if err != nil {
		return fmt.Errorf("creating hap server: %w", err)
	}
	server.Pin = s.cfg.Pin
	if s.cfg.Addr != "" {
		server.Addr = s.cfg.Addr
	}

	s.logger.Info("homekit bridge starting", "name", s.cfg.Name, "accessories", len(accs), "addr", s.cfg.Addr)
	return server.ListenAndServe(ctx)
}

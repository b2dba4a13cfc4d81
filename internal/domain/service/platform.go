package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dwelo-bridge/internal/domain/accessory"
	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/domain/poll"
	"dwelo-bridge/internal/ports"

	"github.com/jonboulle/clockwork"
)

const maxDiscoveryBackoff = time.Minute

type AdapterFactory interface {
	New(info model.DeviceInfo) (accessory.Adapter, error)
}

type PlatformOptions struct {
	RefreshInterval time.Duration
	Publisher       ports.StatePublisher
	Clock           clockwork.Clock
	Logger          *slog.Logger
}

// Platform discovers devices, keeps one adapter per device and fans each
// status refresh out to all of them.
type Platform struct {
	devices   ports.DeviceLister
	status    *StatusCache
	factory   AdapterFactory
	publisher ports.StatePublisher
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger

	mu         sync.RWMutex
	adapters   map[string]accessory.Adapter
	discovered bool
}

func NewPlatform(devices ports.DeviceLister, status *StatusCache, factory AdapterFactory, opts PlatformOptions) *Platform {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Second
	}
	return &Platform{
		devices:   devices,
		status:    status,
		factory:   factory,
		publisher: opts.Publisher,
		interval:  opts.RefreshInterval,
		clock:     opts.Clock,
		logger:    opts.Logger.With("component", "platform"),
		adapters:  make(map[string]accessory.Adapter),
	}
}

// Discover lists the gateway's devices and creates adapters for new ones.
// Known devices keep their adapter; devices that disappeared are dropped.
func (p *Platform) Discover(ctx context.Context) error {
	infos, err := p.devices.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("discovering devices: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.ID] = true
		if _, ok := p.adapters[info.ID]; ok {
			continue
		}
		a, err := p.factory.New(info)
		if errors.Is(err, accessory.ErrUnsupported) {
			p.logger.Info("skipping unsupported device", "device", info.ID, "name", info.Name, "type", string(info.Type))
			continue
		}
		if err != nil {
			return fmt.Errorf("creating accessory for %s: %w", info.ID, err)
		}
		p.adapters[info.ID] = a
		p.logger.Info("accessory added", "device", info.ID, "name", info.Name, "type", string(info.Type))
	}

	for id, a := range p.adapters {
		if !seen[id] {
			a.Close()
			delete(p.adapters, id)
			p.logger.Info("accessory removed", "device", id)
		}
	}
	p.discovered = true
	return nil
}

// WaitForDiscovery retries Discover with backoff until it succeeds or ctx
// ends.
func (p *Platform) WaitForDiscovery(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := p.Discover(ctx)
		if err == nil {
			return nil
		}
		delay := min(poll.Backoff(5*time.Second, attempt), maxDiscoveryBackoff)
		p.logger.Warn("discovery failed, retrying", "attempt", attempt, "in", delay, "error", err)

		timer := p.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}
	}
}

// Accessories returns the adapters ordered by device ID.
func (p *Platform) Accessories() []accessory.Adapter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]accessory.Adapter, 0, len(p.adapters))
	for _, a := range p.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info().ID < out[j].Info().ID })
	return out
}

func (p *Platform) Accessory(id string) (accessory.Adapter, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return a, nil
}

// Refresh fetches the aggregate status once and reconciles every adapter.
func (p *Platform) Refresh(ctx context.Context) error {
	snap, err := p.status.Get(ctx)
	if err != nil {
		return fmt.Errorf("refreshing status: %w", err)
	}
	for _, a := range p.Accessories() {
		d, ok := snap.Device(a.Info().ID)
		if !ok {
			p.logger.Debug("device missing from status", "device", a.Info().ID)
			continue
		}
		p.reconcile(ctx, a, d)
	}
	return nil
}

// Apply reconciles a single device, as reported by a confirmed command.
func (p *Platform) Apply(d model.Device) {
	a, err := p.Accessory(d.ID)
	if err != nil {
		return
	}
	p.reconcile(context.Background(), a, d)
}

func (p *Platform) reconcile(ctx context.Context, a accessory.Adapter, d model.Device) {
	a.Reconcile(d)
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, d.ID, a.Characteristics().Snapshot()); err != nil {
		p.logger.Warn("publishing state failed", "device", d.ID, "error", err)
	}
}

// Run refreshes until ctx ends. If discovery has not succeeded yet it is
// retried on every tick first.
func (p *Platform) Run(ctx context.Context) error {
	p.mu.RLock()
	discovered := p.discovered
	p.mu.RUnlock()
	discovered = p.tick(ctx, discovered)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			discovered = p.tick(ctx, discovered)
		}
	}
}

func (p *Platform) tick(ctx context.Context, discovered bool) bool {
	if !discovered {
		if err := p.Discover(ctx); err != nil {
			p.logger.Error("discovery failed", "error", err)
			return false
		}
	}
	if err := p.Refresh(ctx); err != nil {
		p.logger.Error("refresh failed", "error", err)
	}
	return true
}

func (p *Platform) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.adapters {
		a.Close()
	}
}

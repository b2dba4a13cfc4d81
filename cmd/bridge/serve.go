package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dwelo-bridge/internal/adapters/input/homekit"
	"dwelo-bridge/internal/adapters/input/http"
	"dwelo-bridge/internal/adapters/input/ssdp"
	"dwelo-bridge/internal/adapters/output/dwelo"
	"dwelo-bridge/internal/adapters/output/mqtt"
	"dwelo-bridge/internal/adapters/output/persistence"
	"dwelo-bridge/internal/domain/accessory"
	"dwelo-bridge/internal/domain/debounce"
	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/domain/service"
	"dwelo-bridge/internal/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting dwelo bridge", "version", rootCmd.Version, "gateway", cfg.Dwelo.GatewayID)

	client := dwelo.NewClient(cfg.Dwelo, logger)
	defer client.Close()

	var vendor ports.DweloPort = client

	clock := clockwork.NewRealClock()
	status := service.NewStatusCache(vendor.FetchStatus, cfg.StatusCacheTTL, clock)

	var platform *service.Platform
	orchestrator := service.NewOrchestrator(vendor, status.Fresh, service.OrchestratorOptions{
		Interval:    cfg.Confirm.Interval,
		Timeout:     cfg.Confirm.Timeout,
		Clock:       clock,
		Logger:      logger,
		OnConfirmed: func(d model.Device) { platform.Apply(d) },
	})
	defer orchestrator.Close()

	leading := debounce.NewGroup[model.CommandKey, accessory.Dispatch](cfg.Debounce, true, clock)
	defer leading.Stop()
	trailing := debounce.NewGroup[model.CommandKey, accessory.Dispatch](cfg.Debounce, false, clock)
	defer trailing.Stop()

	factory := accessory.NewFactory(accessory.Deps{
		Commander:   orchestrator,
		Leading:     leading,
		Trailing:    trailing,
		State:       persistence.NewJSONStateRepository(cfg.StatePath),
		Clock:       clock,
		AutoLock:    cfg.Lock.AutoLock,
		SendTimeout: cfg.Dwelo.RequestTimeout,
		Logger:      logger,
	})

	publisher, closePublisher, err := newPublisher(cfg.MQTT, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	platform = service.NewPlatform(vendor, status, factory, service.PlatformOptions{
		RefreshInterval: cfg.RefreshInterval,
		Publisher:       publisher,
		Clock:           clock,
		Logger:          logger,
	})
	defer platform.Close()

	if err := platform.WaitForDiscovery(ctx); err != nil {
		return err
	}
	logger.Info("devices discovered", "accessories", len(platform.Accessories()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return platform.Run(ctx) })

	if cfg.HomeKit.Enabled {
		hk := homekit.NewServer(cfg.HomeKit, platform, logger)
		g.Go(func() error {
			if err := hk.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return ctx.Err()
		})
	}

	if cfg.Hue.Enabled {
		ip := cfg.Hue.LocalIP
		if ip == "" {
			ip = getLocalIP()
		}
		if ip == "" {
			return errors.New("could not determine local IP, set hue.local_ip")
		}
		port, err := listenPort(cfg.Hue.ListenAddr)
		if err != nil {
			return err
		}
		bridge := service.NewBridgeService(platform, orchestrator, persistence.NewYAMLConfigRepository(resolveConfigPath()), logger)
		hue := http.NewServer(bridge, ip, port, logger)
		discovery := ssdp.NewServer(ip, port, hue.UDN(), logger)
		g.Go(func() error { return hue.ListenAndServe(ctx, cfg.Hue.ListenAddr) })
		g.Go(func() error {
			if err := discovery.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("ssdp stopped", "error", err)
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func listenPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("hue.listen_addr: %w", err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("hue.listen_addr: %w", err)
	}
	return port, nil
}

func newPublisher(cfg model.MQTTConfig, logger *slog.Logger) (ports.StatePublisher, func(), error) {
	if !cfg.Enabled {
		return mqtt.Noop{}, func() {}, nil
	}
	p, err := mqtt.NewPublisher(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

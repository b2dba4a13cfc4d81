package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"dwelo-bridge/internal/domain/accessory"
	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/domain/translator"
	"dwelo-bridge/internal/ports"
)

// AccessoryNamespace seeds the stable UUIDs frontends derive from device ids.
var AccessoryNamespace = uuid.MustParse("6f1c2a5e-3d0b-4e8a-9a51-0d3f8b7c2e41")

// AccessoryUUID is the stable identity of a Dwelo device across restarts.
func AccessoryUUID(deviceID string) uuid.UUID {
	return uuid.NewSHA1(AccessoryNamespace, []byte("dwelo:"+deviceID))
}

// BridgeService presents the platform's accessories as Hue lights.
type BridgeService struct {
	platform          *Platform
	commands          *Orchestrator
	configRepo        ports.ConfigRepository
	translatorFactory *translator.Factory
	logger            *slog.Logger
}

func NewBridgeService(platform *Platform, commands *Orchestrator, configRepo ports.ConfigRepository, logger *slog.Logger) *BridgeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BridgeService{
		platform:          platform,
		commands:          commands,
		configRepo:        configRepo,
		translatorFactory: translator.NewFactory(),
		logger:            logger.With("component", "hue"),
	}
}

func (s *BridgeService) GetLights(ctx context.Context) ([]*model.Light, error) {
	adapters := s.platform.Accessories()
	lights := make([]*model.Light, 0, len(adapters))
	for _, a := range adapters {
		lights = append(lights, s.light(a))
	}
	return lights, nil
}

func (s *BridgeService) GetLight(ctx context.Context, id string) (*model.Light, error) {
	a, err := s.platform.Accessory(id)
	if err != nil {
		return nil, err
	}
	return s.light(a), nil
}

// UpdateLightState turns a Hue state body into intents on the accessory. The
// first rejected intent stops the update.
func (s *BridgeService) UpdateLightState(ctx context.Context, id string, body map[string]any) error {
	a, err := s.platform.Accessory(id)
	if err != nil {
		return err
	}

	store := a.Characteristics()
	t := s.translatorFactory.GetTranslator(a.Info().Type)
	intents := t.ToIntents(store.Snapshot(), translator.ParseUpdate(body))
	if len(intents) == 0 {
		return fmt.Errorf("%w: no supported fields in update", accessory.ErrUnsupported)
	}

	for _, in := range intents {
		if err := store.Intent(in.Key, in.Value); err != nil {
			s.logger.Warn("hue intent rejected", "device", id, "key", string(in.Key), "error", err)
			return err
		}
	}
	return nil
}

// GetAccessories lists every accessory with its characteristic values and
// whether a command for it is still being confirmed.
func (s *BridgeService) GetAccessories(ctx context.Context) ([]model.AccessoryView, error) {
	adapters := s.platform.Accessories()
	views := make([]model.AccessoryView, 0, len(adapters))
	for _, a := range adapters {
		info := a.Info()
		state := make(map[string]any)
		for k, v := range a.Characteristics().Snapshot() {
			state[string(k)] = v
		}
		views = append(views, model.AccessoryView{
			ID:         info.ID,
			Name:       info.Name,
			Type:       info.Type,
			UUID:       AccessoryUUID(info.ID).String(),
			Confirming: s.commands != nil && s.commands.Active(info.ID),
			State:      state,
		})
	}
	return views, nil
}

func (s *BridgeService) GetConfig(ctx context.Context) (*model.Config, error) {
	return s.configRepo.Get(ctx)
}

func (s *BridgeService) light(a accessory.Adapter) *model.Light {
	info := a.Info()
	t := s.translatorFactory.GetTranslator(info.Type)
	return &model.Light{
		ID:       info.ID,
		Name:     info.Name,
		UniqueID: AccessoryUUID(info.ID).String(),
		Type:     info.Type,
		State:    t.ToHue(a.Characteristics().Snapshot()),
		Meta:     t.GetMetadata(),
	}
}

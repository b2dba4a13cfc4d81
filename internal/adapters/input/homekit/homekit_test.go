package homekit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	haccessory "github.com/brutella/hap/accessory"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwelo-bridge/internal/domain/accessory"
	"dwelo-bridge/internal/domain/debounce"
	"dwelo-bridge/internal/domain/model"
)

type recordingCommander struct {
	mu   sync.Mutex
	cmds []model.Command
}

func (r *recordingCommander) SendAndConfirm(ctx context.Context, deviceID string, cmd model.Command, stop model.StopCondition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return nil
}

func (r *recordingCommander) sent() []model.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Command(nil), r.cmds...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFactory(t *testing.T, commander *recordingCommander) *accessory.Factory {
	t.Helper()
	clock := clockwork.NewFakeClock()
	leading := debounce.NewGroup[model.CommandKey, accessory.Dispatch](time.Second, true, clock)
	trailing := debounce.NewGroup[model.CommandKey, accessory.Dispatch](time.Second, false, clock)
	t.Cleanup(leading.Stop)
	t.Cleanup(trailing.Stop)
	return accessory.NewFactory(accessory.Deps{
		Commander:   commander,
		Leading:     leading,
		Trailing:    trailing,
		Clock:       clock,
		SendTimeout: time.Second,
		Logger:      testLogger(),
	})
}

func TestSwitch_FollowsStoreAndForwardsWrites(t *testing.T) {
	commander := &recordingCommander{}
	a, err := newFactory(t, commander).New(model.DeviceInfo{ID: "1", Name: "Porch", Type: model.DeviceTypeSwitch})
	require.NoError(t, err)

	b := newBinder(a.Characteristics(), testLogger())
	sw := newSwitch(a.Info(), b)
	b.start()
	assert.False(t, sw.Switch.On.Value())

	a.Reconcile(model.Device{ID: "1", Sensors: model.Sensors{model.SensorSwitch: {Value: "On"}}})
	assert.True(t, sw.Switch.On.Value())

	b.intent(model.On, false)
	assert.False(t, sw.Switch.On.Value())
	assert.Equal(t, []model.Command{{Name: "off"}}, commander.sent())
}

func TestBinder_RejectedWriteRestoresValue(t *testing.T) {
	a, err := newFactory(t, &recordingCommander{}).New(model.DeviceInfo{ID: "3", Type: model.DeviceTypeLock})
	require.NoError(t, err)

	b := newBinder(a.Characteristics(), testLogger())
	acc := newLock(a.Info(), b)
	b.start()
	require.NotNil(t, acc)

	a.Reconcile(model.Device{ID: "3", Sensors: model.Sensors{
		model.SensorDoorLocked:   {Value: "True"},
		model.SensorBatteryLevel: {Value: "15"},
	}})

	// Current state is read-only.
	b.intent(model.LockCurrentState, model.LockUnsecured)
	assert.Equal(t, model.LockSecured, a.Characteristics().Int(model.LockCurrentState))
}

func TestNewAccessory_StableIDs(t *testing.T) {
	factory := newFactory(t, &recordingCommander{})
	a, err := factory.New(model.DeviceInfo{ID: "7", Type: model.DeviceTypeDimmer})
	require.NoError(t, err)

	first, err := NewAccessory(a, testLogger())
	require.NoError(t, err)
	second, err := NewAccessory(a, testLogger())
	require.NoError(t, err)

	assert.Equal(t, first.Id, second.Id)
	assert.Greater(t, first.Id, uint64(1))
	assert.NotEqual(t, accessoryID("7"), accessoryID("8"))
	assert.Equal(t, "Dwelo 7", first.Info.Name.Value())
}

func TestNewAccessory_Thermostat(t *testing.T) {
	a, err := newFactory(t, &recordingCommander{}).New(model.DeviceInfo{
		ID:   "9",
		Type: model.DeviceTypeThermostat,
		Metadata: map[string]any{
			"hvac_modes": []any{"Off", "Heat"},
		},
	})
	require.NoError(t, err)

	b := newBinder(a.Characteristics(), testLogger())
	th := newThermostat(a.Info(), a.(*accessory.Thermostat), b)
	b.start()

	assert.Equal(t, []int{model.ModeOff, model.ModeHeat}, th.Thermostat.TargetHeatingCoolingState.ValidVals)

	a.Reconcile(model.Device{ID: "9", Sensors: model.Sensors{
		model.SensorThermostatMode: {Value: "Heat"},
		model.SensorHeatSetpoint:   {Value: "68"},
		model.SensorTemperature:    {Value: "66", Unit: "F"},
	}})
	assert.Equal(t, model.ModeHeat, th.Thermostat.TargetHeatingCoolingState.Value())
	assert.InDelta(t, 20.0, th.Thermostat.TargetTemperature.Value(), 0.01)
}

type staticSource []accessory.Adapter

func (s staticSource) Accessories() []accessory.Adapter { return s }

func TestServer_BuildsSupportedAccessories(t *testing.T) {
	factory := newFactory(t, &recordingCommander{})
	sw, err := factory.New(model.DeviceInfo{ID: "1", Type: model.DeviceTypeSwitch})
	require.NoError(t, err)
	lock, err := factory.New(model.DeviceInfo{ID: "3", Type: model.DeviceTypeLock})
	require.NoError(t, err)

	s := NewServer(model.HomeKitConfig{Name: "Test"}, staticSource{sw, lock}, testLogger())
	accs := s.Accessories()

	require.Len(t, accs, 2)
	assert.Equal(t, uint8(haccessory.TypeDoorLock), uint8(accs[1].Type))
}

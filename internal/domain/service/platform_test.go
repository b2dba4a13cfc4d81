package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dwelo-bridge/internal/domain/accessory"
	"dwelo-bridge/internal/domain/debounce"
	"dwelo-bridge/internal/domain/model"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, deviceID string, state map[model.Characteristic]any) error {
	args := m.Called(ctx, deviceID, state)
	return args.Error(0)
}

func lockDevice(id, locked string) model.Device {
	return model.Device{
		ID:      id,
		Type:    model.DeviceTypeLock,
		Sensors: model.Sensors{model.SensorDoorLocked: {Value: locked}},
	}
}

func newDeps(commander *Orchestrator, clock clockwork.Clock) accessory.Deps {
	return accessory.Deps{
		Commander:   commander,
		Leading:     debounce.NewGroup[model.CommandKey, accessory.Dispatch](500*time.Millisecond, true, clock),
		Trailing:    debounce.NewGroup[model.CommandKey, accessory.Dispatch](500*time.Millisecond, false, clock),
		Clock:       clock,
		SendTimeout: time.Second,
		Logger:      testLogger(),
	}
}

func TestPlatform_LockConfirmedOnThirdFetch(t *testing.T) {
	dwelo := new(MockDwelo)
	dwelo.On("ListDevices", mock.Anything).Return([]model.DeviceInfo{
		{ID: "3", Name: "Front Door", Type: model.DeviceTypeLock},
	}, nil)
	dwelo.On("SendCommand", mock.Anything, "3", model.Command{Name: "lock"}).Return(nil)
	dwelo.On("FetchStatus", mock.Anything).Return(snapshotWith(lockDevice("3", "False")), nil).Twice()
	dwelo.On("FetchStatus", mock.Anything).Return(snapshotWith(lockDevice("3", "True")), nil)

	cache := NewStatusCache(dwelo.FetchStatus, 0, nil)
	var platform *Platform
	orch := NewOrchestrator(dwelo, cache.Fresh, OrchestratorOptions{
		Interval:    time.Millisecond,
		Timeout:     5 * time.Second,
		Logger:      testLogger(),
		OnConfirmed: func(d model.Device) { platform.Apply(d) },
	})
	defer orch.Close()
	platform = NewPlatform(dwelo, cache, accessory.NewFactory(newDeps(orch, clockwork.NewRealClock())), PlatformOptions{Logger: testLogger()})

	require.NoError(t, platform.Discover(context.Background()))
	lock, err := platform.Accessory("3")
	require.NoError(t, err)
	store := lock.Characteristics()

	require.NoError(t, store.Intent(model.LockTargetState, model.LockSecured))

	assert.Eventually(t, func() bool {
		return store.Int(model.LockCurrentState) == model.LockSecured
	}, 2*time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return !orch.Active("3") }, time.Second, time.Millisecond)

	dwelo.AssertNumberOfCalls(t, "FetchStatus", 3)
	dwelo.AssertNumberOfCalls(t, "SendCommand", 1)
}

func TestPlatform_DiscoverCachesAndSkipsUnsupported(t *testing.T) {
	dwelo := new(MockDwelo)
	dwelo.On("ListDevices", mock.Anything).Return([]model.DeviceInfo{
		{ID: "2", Type: model.DeviceTypeDimmer},
		{ID: "1", Type: model.DeviceTypeSwitch},
		{ID: "8", Type: "sensor"},
	}, nil).Once()
	dwelo.On("ListDevices", mock.Anything).Return([]model.DeviceInfo{
		{ID: "1", Type: model.DeviceTypeSwitch},
	}, nil).Once()

	orch := NewOrchestrator(dwelo, dwelo.FetchStatus, OrchestratorOptions{Logger: testLogger()})
	defer orch.Close()
	platform := NewPlatform(dwelo, NewStatusCache(dwelo.FetchStatus, time.Second, nil),
		accessory.NewFactory(newDeps(orch, clockwork.NewFakeClock())), PlatformOptions{Logger: testLogger()})

	require.NoError(t, platform.Discover(context.Background()))
	accessories := platform.Accessories()
	require.Len(t, accessories, 2)
	assert.Equal(t, "1", accessories[0].Info().ID)
	assert.Equal(t, "2", accessories[1].Info().ID)
	first := accessories[0]

	require.NoError(t, platform.Discover(context.Background()))
	accessories = platform.Accessories()
	require.Len(t, accessories, 1)
	assert.Same(t, first, accessories[0])

	_, err := platform.Accessory("2")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestPlatform_RefreshReconcilesAndPublishes(t *testing.T) {
	dwelo := new(MockDwelo)
	dwelo.On("ListDevices", mock.Anything).Return([]model.DeviceInfo{
		{ID: "1", Type: model.DeviceTypeSwitch},
		{ID: "3", Type: model.DeviceTypeLock},
	}, nil)
	dwelo.On("FetchStatus", mock.Anything).Return(snapshotWith(switchDevice("1", "On")), nil)

	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, "1", map[model.Characteristic]any{model.On: true}).Return(nil)

	orch := NewOrchestrator(dwelo, dwelo.FetchStatus, OrchestratorOptions{Logger: testLogger()})
	defer orch.Close()
	platform := NewPlatform(dwelo, NewStatusCache(dwelo.FetchStatus, time.Second, nil),
		accessory.NewFactory(newDeps(orch, clockwork.NewFakeClock())),
		PlatformOptions{Publisher: publisher, Logger: testLogger()})

	require.NoError(t, platform.Discover(context.Background()))
	require.NoError(t, platform.Refresh(context.Background()))
	require.NoError(t, platform.Refresh(context.Background()))

	sw, err := platform.Accessory("1")
	require.NoError(t, err)
	assert.True(t, sw.Characteristics().Bool(model.On))
	// The second refresh is served from the cache.
	dwelo.AssertNumberOfCalls(t, "FetchStatus", 1)
	publisher.AssertNumberOfCalls(t, "Publish", 2)
}

func TestPlatform_RunRefreshesOnEveryTick(t *testing.T) {
	dwelo := new(MockDwelo)
	dwelo.On("ListDevices", mock.Anything).Return([]model.DeviceInfo{{ID: "1", Type: model.DeviceTypeSwitch}}, nil)

	var fetches int32
	fetch := func(ctx context.Context) (*model.Snapshot, error) {
		atomic.AddInt32(&fetches, 1)
		return snapshotWith(switchDevice("1", "Off")), nil
	}

	clock := clockwork.NewFakeClock()
	orch := NewOrchestrator(dwelo, fetch, OrchestratorOptions{Logger: testLogger()})
	defer orch.Close()
	platform := NewPlatform(dwelo, NewStatusCache(fetch, 0, clock),
		accessory.NewFactory(newDeps(orch, clock)),
		PlatformOptions{RefreshInterval: 30 * time.Second, Clock: clock, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- platform.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))

	clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&fetches) == 2 }, time.Second, time.Millisecond)
	dwelo.AssertNumberOfCalls(t, "ListDevices", 1)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPlatform_WaitForDiscoveryRetries(t *testing.T) {
	dwelo := new(MockDwelo)
	dwelo.On("ListDevices", mock.Anything).Return([]model.DeviceInfo(nil), errors.New("dwelo API error 503")).Once()
	dwelo.On("ListDevices", mock.Anything).Return([]model.DeviceInfo{{ID: "1", Type: model.DeviceTypeSwitch}}, nil)

	clock := clockwork.NewFakeClock()
	orch := NewOrchestrator(dwelo, dwelo.FetchStatus, OrchestratorOptions{Logger: testLogger()})
	defer orch.Close()
	platform := NewPlatform(dwelo, NewStatusCache(dwelo.FetchStatus, 0, clock),
		accessory.NewFactory(newDeps(orch, clock)), PlatformOptions{Clock: clock, Logger: testLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- platform.WaitForDiscovery(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(5 * time.Second)

	require.NoError(t, <-done)
	assert.Len(t, platform.Accessories(), 1)
	dwelo.AssertNumberOfCalls(t, "ListDevices", 2)
}

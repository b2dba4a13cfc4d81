package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amimof/huego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dwelo-bridge/internal/domain/accessory"
	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/domain/service"
)

type MockBridge struct {
	mock.Mock
}

func (m *MockBridge) GetLights(ctx context.Context) ([]*model.Light, error) {
	args := m.Called(ctx)
	lights, _ := args.Get(0).([]*model.Light)
	return lights, args.Error(1)
}

func (m *MockBridge) GetLight(ctx context.Context, id string) (*model.Light, error) {
	args := m.Called(ctx, id)
	light, _ := args.Get(0).(*model.Light)
	return light, args.Error(1)
}

func (m *MockBridge) UpdateLightState(ctx context.Context, id string, body map[string]any) error {
	args := m.Called(ctx, id, body)
	return args.Error(0)
}

func (m *MockBridge) GetAccessories(ctx context.Context) ([]model.AccessoryView, error) {
	args := m.Called(ctx)
	views, _ := args.Get(0).([]model.AccessoryView)
	return views, args.Error(1)
}

func (m *MockBridge) GetConfig(ctx context.Context) (*model.Config, error) {
	args := m.Called(ctx)
	cfg, _ := args.Get(0).(*model.Config)
	return cfg, args.Error(1)
}

func newTestServer(bridge *MockBridge) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httptest.NewServer(NewServer(bridge, "192.168.1.20", 80, logger).Handler())
}

func porch() *model.Light {
	return &model.Light{
		ID:       "1",
		Name:     "Porch",
		UniqueID: "uid-1",
		Type:     model.DeviceTypeSwitch,
		State:    &huego.State{On: true, Reachable: true},
		Meta:     model.HueMetadata{Type: "On/Off plug-in unit", ModelID: "LOM001", ManufacturerName: "Dwelo"},
	}
}

func TestServer_GetLights(t *testing.T) {
	bridge := new(MockBridge)
	bridge.On("GetLights", mock.Anything).Return([]*model.Light{porch()}, nil)
	srv := newTestServer(bridge)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/admin/lights")
	require.NoError(t, err)
	defer resp.Body.Close()

	var lights map[string]huego.Light
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lights))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, lights, "1")
	assert.Equal(t, "Porch", lights["1"].Name)
	assert.Equal(t, "uid-1", lights["1"].UniqueID)
	assert.True(t, lights["1"].State.On)
}

func TestServer_Register(t *testing.T) {
	srv := newTestServer(new(MockBridge))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api", "application/json", strings.NewReader(`{"devicetype":"echo"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `[{"success":{"username":"admin"}}]`, string(body))
}

func TestServer_SetLightState(t *testing.T) {
	bridge := new(MockBridge)
	bridge.On("UpdateLightState", mock.Anything, "1", map[string]any{"on": false}).Return(nil)
	srv := newTestServer(bridge)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/admin/lights/1/state", strings.NewReader(`{"on":false}`))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"success":{"/lights/1/state/on":false}}]`, string(body))
	bridge.AssertExpectations(t)
}

func TestServer_ErrorStatus(t *testing.T) {
	bridge := new(MockBridge)
	bridge.On("GetLight", mock.Anything, "9").Return(nil, fmt.Errorf("%w: 9", service.ErrUnknownDevice))
	bridge.On("UpdateLightState", mock.Anything, "3", mock.Anything).Return(fmt.Errorf("%w: bri", accessory.ErrUnsupported))
	srv := newTestServer(bridge)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/admin/lights/9")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/admin/lights/3/state", strings.NewReader(`{"bri":10}`))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/admin/lights/3/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_AdminDevices(t *testing.T) {
	bridge := new(MockBridge)
	bridge.On("GetAccessories", mock.Anything).Return([]model.AccessoryView{
		{ID: "3", Name: "Front Door", Type: model.DeviceTypeLock, Confirming: true, State: map[string]any{"LockCurrentState": 1}},
	}, nil)
	srv := newTestServer(bridge)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/devices")
	require.NoError(t, err)
	defer resp.Body.Close()

	var views []model.AccessoryView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 1)
	assert.True(t, views[0].Confirming)
	assert.Equal(t, model.DeviceTypeLock, views[0].Type)
}

func TestServer_ConfigHidesSecrets(t *testing.T) {
	bridge := new(MockBridge)
	bridge.On("GetConfig", mock.Anything).Return(&model.Config{
		Dwelo: model.DweloConfig{Token: "secret-token", GatewayID: "42"},
	}, nil)
	srv := newTestServer(bridge)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/config")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"gateway_id":"42"`)
	assert.NotContains(t, string(body), "secret-token")
}

func TestServer_Description(t *testing.T) {
	srv := newTestServer(new(MockBridge))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/description.xml")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "<URLBase>http://192.168.1.20:80/</URLBase>")
	assert.Contains(t, string(body), "<UDN>uuid:")
}

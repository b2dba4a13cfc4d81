package dwelo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/ports"
)

var _ ports.DweloPort = (*Client)(nil)

type Client struct {
	baseURL       string
	token         string
	gatewayID     string
	applicationID string
	httpClient    *http.Client
	queue         *Queue
	logger        *slog.Logger
}

func NewClient(cfg model.DweloConfig, logger *slog.Logger) *Client {
	return NewClientWithRetry(cfg, DefaultRetryConfig(), logger)
}

func NewClientWithRetry(cfg model.DweloConfig, retry RetryConfig, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = model.DefaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	logger = logger.With("component", "dwelo")
	c := &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		token:         cfg.Token,
		gatewayID:     cfg.GatewayID,
		applicationID: cfg.ApplicationID,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
	c.queue = NewQueue(c.roundTrip, cfg.RequestDelay, retry, logger)
	return c
}

func (c *Client) Close() {
	c.queue.Close()
}

type deviceDTO struct {
	UID        json.Number    `json:"uid"`
	GivenName  string         `json:"givenName"`
	DeviceType string         `json:"deviceType"`
	GatewayID  json.Number    `json:"gatewayId"`
	IsActive   bool           `json:"isActive"`
	IsOnline   bool           `json:"isOnline"`
	Metadata   map[string]any `json:"device_metadata"`
}

type listDevicesResponse struct {
	Results      []deviceDTO `json:"results"`
	ResultsCount int         `json:"resultsCount"`
	TotalCount   int         `json:"totalCount"`
}

func (c *Client) ListDevices(ctx context.Context) ([]model.DeviceInfo, error) {
	query := url.Values{}
	query.Set("gatewayId", c.gatewayID)
	query.Set("limit", "5000")
	query.Set("offset", "0")

	var out listDevicesResponse
	if err := c.getJSON(ctx, "/v3/device", query, &out); err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	devices := make([]model.DeviceInfo, 0, len(out.Results))
	for _, d := range out.Results {
		devices = append(devices, model.DeviceInfo{
			ID:        d.UID.String(),
			Name:      d.GivenName,
			Type:      model.DeviceType(strings.ToLower(d.DeviceType)),
			GatewayID: d.GatewayID.String(),
			Online:    d.IsOnline,
			Active:    d.IsActive,
			Metadata:  d.Metadata,
		})
	}
	return devices, nil
}

type statusEntry struct {
	DeviceID json.Number   `json:"deviceId"`
	Sensors  model.Sensors `json:"sensors"`
}

type statusResponse struct {
	Switches    []statusEntry `json:"switches"`
	Dimmers     []statusEntry `json:"dimmers"`
	Locks       []statusEntry `json:"locks"`
	Thermostats []statusEntry `json:"thermostats"`
}

// FetchStatus reads the reported state of every device on the gateway in one
// call.
func (c *Client) FetchStatus(ctx context.Context) (*model.Snapshot, error) {
	var out statusResponse
	path := fmt.Sprintf("/v4/gateway/%s/status", url.PathEscape(c.gatewayID))
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching status: %w", err)
	}

	now := time.Now()
	snap := &model.Snapshot{FetchedAt: now, Devices: make(map[string]model.Device)}
	add := func(typ model.DeviceType, entries []statusEntry) {
		for _, e := range entries {
			id := e.DeviceID.String()
			snap.Devices[id] = model.Device{ID: id, Type: typ, Sensors: e.Sensors, FetchedAt: now}
		}
	}
	add(model.DeviceTypeSwitch, out.Switches)
	add(model.DeviceTypeDimmer, out.Dimmers)
	add(model.DeviceTypeLock, out.Locks)
	add(model.DeviceTypeThermostat, out.Thermostats)
	return snap, nil
}

// Sensor is one row of the per-device sensor listing.
type Sensor struct {
	DeviceID   json.Number `json:"deviceId"`
	GatewayID  json.Number `json:"gatewayId"`
	SensorType string      `json:"sensorType"`
	TimeIssued string      `json:"timeIssued"`
	UID        json.Number `json:"uid"`
	Value      string      `json:"value"`
}

type listSensorsResponse struct {
	Results []Sensor `json:"results"`
}

func (c *Client) Sensors(ctx context.Context, deviceID string) ([]Sensor, error) {
	query := url.Values{}
	query.Set("deviceId", deviceID)

	var out listSensorsResponse
	path := fmt.Sprintf("/v3/sensor/gateway/%s/", url.PathEscape(c.gatewayID))
	if err := c.getJSON(ctx, path, query, &out); err != nil {
		return nil, fmt.Errorf("listing sensors for device %s: %w", deviceID, err)
	}
	return out.Results, nil
}

type commandRequest struct {
	Command       string `json:"command"`
	CommandValue  any    `json:"commandValue,omitempty"`
	ApplicationID string `json:"applicationId,omitempty"`
}

func (c *Client) SendCommand(ctx context.Context, deviceID string, cmd model.Command) error {
	body, err := json.Marshal(commandRequest{
		Command:       cmd.Name,
		CommandValue:  cmd.Value,
		ApplicationID: c.applicationID,
	})
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	path := fmt.Sprintf("/v3/device/%s/command/", url.PathEscape(deviceID))
	if _, err := c.queue.Enqueue(ctx, request{method: http.MethodPost, path: path, body: body}); err != nil {
		return fmt.Errorf("sending %s to device %s: %w", cmd, deviceID, err)
	}
	c.logger.Debug("command accepted", "device", deviceID, "command", cmd.String())
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.queue.Enqueue(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// roundTrip performs a single HTTP exchange; the queue owns retries.
func (c *Client) roundTrip(ctx context.Context, r request) (response, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return response{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("reading response: %w", err)
	}
	return response{status: resp.StatusCode, body: data}, nil
}

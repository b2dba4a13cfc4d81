package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amimof/huego"
	"github.com/google/uuid"

	"dwelo-bridge/internal/domain/accessory"
	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/domain/service"
	"dwelo-bridge/internal/ports"
)

// Server emulates the subset of the Hue bridge API that voice assistants use,
// plus a small read-only admin surface.
type Server struct {
	bridge ports.BridgePort
	ip     string
	port   int
	udn    uuid.UUID
	logger *slog.Logger
}

func NewServer(bridge ports.BridgePort, ip string, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bridge: bridge,
		ip:     ip,
		port:   port,
		udn:    uuid.NewSHA1(service.AccessoryNamespace, []byte("hue-bridge:"+ip)),
		logger: logger.With("component", "http"),
	}
}

// UDN is the UPnP device name advertised in description.xml.
func (s *Server) UDN() uuid.UUID {
	return s.udn
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/description.xml", s.handleDescription)
	mux.HandleFunc("/api", s.handleAPI)
	mux.HandleFunc("/api/", s.handleAPI)
	mux.HandleFunc("/admin/devices", s.handleDevices)
	mux.HandleFunc("/admin/config", s.handleConfig)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("hue api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8" ?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
<specVersion>
<major>1</major>
<minor>0</minor>
</specVersion>
<URLBase>http://%s:%d/</URLBase>
<device>
<deviceType>urn:schemas-upnp-org:device:Basic:1</deviceType>
<friendlyName>Dwelo bridge (%s)</friendlyName>
<manufacturer>Royal Philips Electronics</manufacturer>
<manufacturerURL>http://www.philips.com</manufacturerURL>
<modelDescription>Philips hue Personal Wireless Lighting</modelDescription>
<modelName>Philips hue bridge 2012</modelName>
<modelNumber>929000226503</modelNumber>
<modelURL>http://www.meethue.com</modelURL>
<serialNumber>001788102201</serialNumber>
<UDN>uuid:%s</UDN>
<presentationURL>admin/devices</presentationURL>
</device>
</root>`, s.ip, s.port, s.ip, s.udn)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if r.Method == http.MethodPost && strings.Trim(path, "/") == "" {
		s.handleRegister(w, r)
		return
	}

	if len(parts) < 1 || parts[0] == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	subPath := parts[1:]
	if len(subPath) == 0 {
		s.handleFullState(w, r)
		return
	}

	switch {
	case subPath[0] == "lights" && len(subPath) == 1:
		s.handleGetLights(w, r)
	case subPath[0] == "lights" && len(subPath) == 2:
		s.handleGetLight(w, r, subPath[1])
	case subPath[0] == "lights" && len(subPath) == 3 && subPath[2] == "state":
		s.handleSetLightState(w, r, subPath[1])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, []map[string]any{{"success": map[string]string{"username": "admin"}}})
}

func (s *Server) handleFullState(w http.ResponseWriter, r *http.Request) {
	lights, err := s.lights(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, map[string]any{
		"lights": lights,
		"groups": map[string]any{},
		"config": map[string]any{
			"name":       "Dwelo bridge",
			"swversion":  "01003542",
			"apiversion": "1.11.0",
			"mac":        "00:17:88:10:22:01",
			"bridgeid":   "001788FFFE102201",
			"modelid":    "BSB001",
		},
	})
}

func (s *Server) handleGetLights(w http.ResponseWriter, r *http.Request) {
	lights, err := s.lights(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, lights)
}

func (s *Server) handleGetLight(w http.ResponseWriter, r *http.Request, id string) {
	light, err := s.bridge.GetLight(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, hueLight(light))
}

func (s *Server) handleSetLightState(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var stateUpdate map[string]any
	if err := json.NewDecoder(r.Body).Decode(&stateUpdate); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.bridge.UpdateLightState(r.Context(), id, stateUpdate); err != nil {
		s.fail(w, err)
		return
	}

	resp := []map[string]any{}
	for k, v := range stateUpdate {
		resp = append(resp, map[string]any{
			"success": map[string]any{
				fmt.Sprintf("/lights/%s/state/%s", id, k): v,
			},
		})
	}
	writeJSON(w, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	views, err := s.bridge.GetAccessories(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, views)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cfg, err := s.bridge.GetConfig(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, cfg)
}

func (s *Server) lights(ctx context.Context) (map[string]*huego.Light, error) {
	list, err := s.bridge.GetLights(ctx)
	if err != nil {
		return nil, err
	}
	lights := make(map[string]*huego.Light, len(list))
	for _, l := range list {
		lights[l.ID] = hueLight(l)
	}
	return lights, nil
}

func hueLight(l *model.Light) *huego.Light {
	return &huego.Light{
		Name:             l.Name,
		Type:             l.Meta.Type,
		State:            l.State,
		ModelID:          l.Meta.ModelID,
		UniqueID:         l.UniqueID,
		ManufacturerName: l.Meta.ManufacturerName,
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrUnknownDevice):
		status = http.StatusNotFound
	case errors.Is(err, accessory.ErrUnsupported), errors.Is(err, accessory.ErrReadOnly):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

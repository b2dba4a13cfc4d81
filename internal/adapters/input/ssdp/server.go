package ssdp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"
)

const multicastAddr = "239.255.255.250:1900"

// Server answers SSDP discovery so Hue clients find the HTTP emulation.
type Server struct {
	ip     string
	port   int
	udn    uuid.UUID
	logger *slog.Logger
}

func NewServer(ip string, port int, udn uuid.UUID, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ip: ip, port: port, udn: udn, logger: logger.With("component", "ssdp")}
}

// Start listens for M-SEARCH requests until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return err
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	s.logger.Info("ssdp listening", "addr", multicastAddr, "location", s.location())

	buf := make([]byte, 1024)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			continue
		}

		if wantsResponse(string(buf[:n])) {
			s.logger.Debug("answering search", "from", src.String())
			s.respond(src)
		}
	}
}

// Echo devices search for basic:1 or rootdevice; some clients use ssdp:all.
func wantsResponse(msg string) bool {
	if !strings.Contains(msg, "M-SEARCH") {
		return false
	}
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "urn:schemas-upnp-org:device:basic:1") ||
		strings.Contains(msg, "upnp:rootdevice") ||
		strings.Contains(msg, "ssdp:all")
}

func (s *Server) respond(dest *net.UDPAddr) {
	conn, err := net.DialUDP("udp4", nil, dest)
	if err != nil {
		s.logger.Warn("ssdp reply failed", "to", dest.String(), "error", err)
		return
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(s.response())); err != nil {
		s.logger.Warn("ssdp reply failed", "to", dest.String(), "error", err)
	}
}

func (s *Server) location() string {
	return fmt.Sprintf("http://%s:%d/description.xml", s.ip, s.port)
}

func (s *Server) response() string {
	return fmt.Sprintf("HTTP/1.1 200 OK\r\n"+
		"CACHE-CONTROL: max-age=100\r\n"+
		"EXT:\r\n"+
		"LOCATION: %s\r\n"+
		"SERVER: FreeRTOS/6.0.5, UPnP/1.1, IpBridge/1.17.0\r\n"+
		"ST: urn:schemas-upnp-org:device:basic:1\r\n"+
		"USN: uuid:%s::urn:schemas-upnp-org:device:basic:1\r\n\r\n", s.location(), s.udn)
}

package ssdp

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWantsResponse(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want bool
	}{
		{"basic device", "M-SEARCH * HTTP/1.1\r\nST: urn:schemas-upnp-org:device:basic:1\r\n", true},
		{"root device", "M-SEARCH * HTTP/1.1\r\nST: upnp:rootdevice\r\n", true},
		{"all", "M-SEARCH * HTTP/1.1\r\nST: ssdp:all\r\n", true},
		{"mixed case", "M-SEARCH * HTTP/1.1\r\nST: urn:schemas-upnp-org:device:Basic:1\r\n", true},
		{"other target", "M-SEARCH * HTTP/1.1\r\nST: urn:dial-multiscreen-org:service:dial:1\r\n", false},
		{"notify", "NOTIFY * HTTP/1.1\r\nNT: upnp:rootdevice\r\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wantsResponse(tt.msg))
		})
	}
}

func TestResponse(t *testing.T) {
	udn := uuid.MustParse("2f402f80-da50-11e1-9b23-001788102201")
	s := NewServer("10.0.0.5", 8080, udn, nil)

	resp := s.response()

	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, resp, "LOCATION: http://10.0.0.5:8080/description.xml\r\n")
	assert.Contains(t, resp, "USN: uuid:2f402f80-da50-11e1-9b23-001788102201::")
	assert.True(t, strings.HasSuffix(resp, "\r\n\r\n"))
}

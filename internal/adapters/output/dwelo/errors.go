package dwelo

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrTransient   = errors.New("dwelo: transient server error")
	ErrAuth        = errors.New("dwelo: authentication failed")
	ErrQueueClosed = errors.New("dwelo: request queue closed")
)

// StatusError is a non-2xx answer from the Dwelo API.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dwelo API error %d on %s %s: %s", e.Code, e.Method, e.Path, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized:
		return ErrAuth
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrTransient
	}
	return nil
}

func checkStatus(method, path string, code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return &StatusError{Method: method, Path: path, Code: code, Body: string(body)}
}

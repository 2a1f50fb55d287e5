package provider

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxBodySize caps how much of a backend response is read.
const maxBodySize = 8 << 20

// HTTPDoer is the part of *http.Client adapters use.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns the client adapters use when none is injected.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// ReadBody reads and closes the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// LooksLikeHTML reports whether body is an HTML document rather than structured data.
// Some backends answer a dead session with their login page.
func LooksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return false
	}
	head := strings.ToLower(string(trimmed[:min(len(trimmed), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html") ||
		strings.Contains(head, "<head") || strings.Contains(head, "<body")
}

// StatusFromHTTP maps an HTTP status onto a canonical status for backends that use them.
func StatusFromHTTP(code int) Status {
	switch {
	case code >= 200 && code < 300:
		return StatusOK
	case code == http.StatusUnauthorized:
		return StatusAuthExpired
	case code == http.StatusForbidden:
		return StatusDenied
	case code == http.StatusNotFound || code == http.StatusGone:
		return StatusNotFound
	}
	return StatusTransportError
}

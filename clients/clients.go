package clients

import (
	"net/http"
	"strings"
	"time"
)

type HTTP struct {
	c    *http.Client
	base string
}

// NewHTTP talks to the archive rooted at base. A zero timeout means 60s.
func NewHTTP(base string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &HTTP{c: &http.Client{Timeout: timeout}, base: base}
}

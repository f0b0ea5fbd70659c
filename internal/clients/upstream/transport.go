// Package upstream provides the process-wide connection pool used by every outbound call.
package upstream

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// UserAgent is sent on scraper and passthrough requests; several upstreams reject
// non-browser agents.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Pool limits of the shared transport.
const (
	MaxConnsPerHost     = 100
	MaxIdleConnsPerHost = 10
	IdleConnTimeout     = 60 * time.Second
)

// NewTransport builds the keep-alive transport shared across all proxy handlers.
// TLS verification is disabled: dashboards commonly point at self-signed LAN devices.
func NewTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxConnsPerHost:       MaxConnsPerHost,
		MaxIdleConns:          MaxConnsPerHost,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // self-signed home-lab targets
		},
	}
}

// NewClient wraps the transport in a client with the given overall timeout.
// A zero timeout leaves the client unbounded, for streaming responses.
func NewClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// NoRedirectClient returns a client that hands 3xx responses back to the caller.
func NoRedirectClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

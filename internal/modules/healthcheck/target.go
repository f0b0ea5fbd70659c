package healthcheck

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Type is the probe kind requested by a health-check widget.
type Type string

const (
	TypePing  Type = "ping"
	TypeHTTP  Type = "http"
	TypeHTTPS Type = "https"
	TypeTCP   Type = "tcp"
)

// Request is the query of GET /api/health-check.
type Request struct {
	Type string `validate:"required,oneof=ping http https tcp"`
	URL  string `validate:"required"`
	Port int    `validate:"omitempty,min=1,max=65535"`
}

// Target is a resolved probe destination.
type Target struct {
	Type Type
	URL  string // http/https only
	Host string // ping/tcp
	Port int    // tcp only
}

var errNoHost = errors.New("target has no host")

// ParseTarget resolves a validated request into a probe target.
func ParseTarget(req Request) (Target, error) {
	raw := strings.TrimSpace(req.URL)
	t := Target{Type: Type(req.Type)}

	switch t.Type {
	case TypeHTTP, TypeHTTPS:
		if !strings.Contains(raw, "://") {
			raw = req.Type + "://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return t, fmt.Errorf("invalid url: %w", err)
		}
		if u.Hostname() == "" {
			return t, errNoHost
		}
		if req.Port > 0 && u.Port() == "" {
			u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(req.Port))
		}
		t.URL = u.String()
		return t, nil

	case TypeTCP, TypePing:
		host, port := splitHost(raw)
		if host == "" {
			return t, errNoHost
		}
		t.Host = host
		if t.Type == TypeTCP {
			t.Port = req.Port
			if t.Port == 0 && port != "" {
				t.Port, _ = strconv.Atoi(port)
			}
		}
		return t, nil
	}

	return t, fmt.Errorf("unsupported type %q", req.Type)
}

// splitHost extracts host and optional port from a bare host, host:port or URL.
func splitHost(raw string) (string, string) {
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", ""
		}
		return u.Hostname(), u.Port()
	}

	if i := strings.IndexAny(raw, "/?#"); i >= 0 {
		raw = raw[:i]
	}
	if host, port, err := net.SplitHostPort(raw); err == nil {
		return host, port
	}
	return strings.Trim(raw, "[]"), ""
}

// Package healthcheck classifies dashboard health-check targets as up or down.
package healthcheck

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/zulu7/internal/clients/upstream"
	"github.com/aristath/zulu7/internal/metrics"
	probing "github.com/prometheus-community/pro-bing"
	"github.com/rs/zerolog"
)

// Status is the binary state rendered by the widget.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Probe timeouts.
const (
	HTTPTimeout = 5 * time.Second
	TCPTimeout  = 3 * time.Second
	PingTimeout = 2 * time.Second
)

// drainLimit caps how much of an HTTP body is read before closing.
const drainLimit = 64 << 10

// PingFunc sends one ICMP echo and reports whether a reply arrived.
type PingFunc func(ctx context.Context, host string, timeout time.Duration) (bool, error)

// Prober runs health checks. It never returns errors: every failure is down.
type Prober struct {
	http       *http.Client
	ping       PingFunc
	dial       func(ctx context.Context, network, addr string) (net.Conn, error)
	tcpTimeout time.Duration
	log        zerolog.Logger
}

// NewProber creates a prober on the shared transport. privileged selects raw ICMP
// sockets over unprivileged UDP echo.
func NewProber(transport http.RoundTripper, privileged bool, log zerolog.Logger) *Prober {
	return &Prober{
		http:       upstream.NoRedirectClient(transport, HTTPTimeout),
		ping:       icmpPing(privileged),
		dial:       (&net.Dialer{}).DialContext,
		tcpTimeout: TCPTimeout,
		log:        log.With().Str("component", "health_prober").Logger(),
	}
}

// SetPingFunc replaces the ICMP implementation. Used by tests.
func (p *Prober) SetPingFunc(fn PingFunc) {
	p.ping = fn
}

// Check probes t, re-checking once when the first result is down. Both TCP
// attempts share one TCPTimeout budget, so an unreachable host reports down
// after TCPTimeout while a refused port is still retried.
func (p *Prober) Check(ctx context.Context, t Target) Status {
	if t.Type == TypeTCP {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.tcpTimeout)
		defer cancel()
	}

	status := p.probe(ctx, t)
	if status == StatusDown && ctx.Err() == nil {
		p.log.Debug().Str("type", string(t.Type)).Str("host", t.Host).Str("url", t.URL).Msg("Target down, re-checking")
		status = p.probe(ctx, t)
	}

	metrics.HealthCheckResults.WithLabelValues(string(t.Type), string(status)).Inc()
	return status
}

func (p *Prober) probe(ctx context.Context, t Target) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Health probe panicked")
			status = StatusDown
		}
	}()

	switch t.Type {
	case TypeHTTP, TypeHTTPS:
		return p.probeHTTP(ctx, t.URL)
	case TypeTCP:
		return p.probeTCP(ctx, t.Host, t.Port)
	case TypePing:
		return p.probePing(ctx, t.Host)
	}
	return StatusDown
}

// Classify maps an HTTP status code to a health status. Auth-walled endpoints
// (401/403) are alive.
func Classify(code int) Status {
	if code >= 200 && code < 400 {
		return StatusUp
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return StatusUp
	}
	return StatusDown
}

func (p *Prober) probeHTTP(ctx context.Context, target string) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return StatusDown
	}
	req.Header.Set("User-Agent", upstream.UserAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		p.log.Debug().Err(err).Str("url", target).Msg("HTTP probe failed")
		return StatusDown
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))

	return Classify(resp.StatusCode)
}

func (p *Prober) probeTCP(ctx context.Context, host string, port int) Status {
	if port <= 0 {
		return StatusDown
	}

	ctx, cancel := context.WithTimeout(ctx, p.tcpTimeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		p.log.Debug().Err(err).Str("host", host).Int("port", port).Msg("TCP probe failed")
		return StatusDown
	}
	conn.Close()
	return StatusUp
}

func (p *Prober) probePing(ctx context.Context, host string) Status {
	ok, err := p.ping(ctx, host, PingTimeout)
	if err != nil {
		p.log.Debug().Err(err).Str("host", host).Msg("Ping probe failed")
		return StatusDown
	}
	if !ok {
		return StatusDown
	}
	return StatusUp
}

func icmpPing(privileged bool) PingFunc {
	return func(ctx context.Context, host string, timeout time.Duration) (bool, error) {
		pinger, err := probing.NewPinger(host)
		if err != nil {
			return false, err
		}
		pinger.Count = 1
		pinger.Timeout = timeout
		pinger.SetPrivileged(privileged)

		if err := pinger.RunWithContext(ctx); err != nil {
			return false, err
		}
		return pinger.Statistics().PacketsRecv > 0, nil
	}
}

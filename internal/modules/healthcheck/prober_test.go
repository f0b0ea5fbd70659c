package healthcheck

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/zulu7/internal/clients/upstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProber() *Prober {
	return NewProber(upstream.NewTransport(), false, zerolog.Nop())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		want Status
	}{
		{200, StatusUp},
		{204, StatusUp},
		{301, StatusUp},
		{399, StatusUp},
		{400, StatusDown},
		{401, StatusUp},
		{403, StatusUp},
		{404, StatusDown},
		{500, StatusDown},
		{503, StatusDown},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.code))
		})
	}
}

func TestProbeHTTP_StatusCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
		want Status
	}{
		{"ok", http.StatusOK, StatusUp},
		{"unauthorized counts as alive", http.StatusUnauthorized, StatusUp},
		{"forbidden counts as alive", http.StatusForbidden, StatusUp},
		{"server error", http.StatusInternalServerError, StatusDown},
		{"redirect not followed", http.StatusFound, StatusUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.code == http.StatusFound {
					w.Header().Set("Location", "http://127.0.0.1:1/unreachable")
				}
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			status := newProber().Check(context.Background(), Target{Type: TypeHTTP, URL: srv.URL})
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestCheck_RechecksOnceWhenDown(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	status := newProber().Check(context.Background(), Target{Type: TypeHTTP, URL: srv.URL})
	assert.Equal(t, StatusUp, status)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCheck_UpIsNotRechecked(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	newProber().Check(context.Background(), Target{Type: TypeHTTPS, URL: srv.URL})
	assert.Equal(t, int32(1), hits.Load())
}

func TestProbeHTTPS_SelfSigned(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	status := newProber().Check(context.Background(), Target{Type: TypeHTTPS, URL: srv.URL})
	assert.Equal(t, StatusUp, status)
}

func TestProbeTCP_OpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	status := newProber().Check(context.Background(), Target{Type: TypeTCP, Host: "127.0.0.1", Port: port})
	assert.Equal(t, StatusUp, status)
}

func TestProbeTCP_ClosedPortWithinTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	start := time.Now()
	status := newProber().Check(context.Background(), Target{Type: TypeTCP, Host: "127.0.0.1", Port: port})
	assert.Equal(t, StatusDown, status)
	assert.Less(t, time.Since(start), TCPTimeout)
}

func TestProbeTCP_UnreachableHostSharesOneTimeout(t *testing.T) {
	p := newProber()
	p.tcpTimeout = 150 * time.Millisecond

	var calls int32
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	status := p.Check(context.Background(), Target{Type: TypeTCP, Host: "10.255.255.1", Port: 22})

	assert.Equal(t, StatusDown, status)
	assert.Less(t, time.Since(start), 2*p.tcpTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestProbeTCP_RefusedPortIsRechecked(t *testing.T) {
	p := newProber()

	var calls int32
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	}

	status := p.Check(context.Background(), Target{Type: TypeTCP, Host: "127.0.0.1", Port: 22})

	assert.Equal(t, StatusDown, status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestProbeTCP_NoPort(t *testing.T) {
	status := newProber().Check(context.Background(), Target{Type: TypeTCP, Host: "127.0.0.1"})
	assert.Equal(t, StatusDown, status)
}

func TestProbePing_UsesPingFunc(t *testing.T) {
	p := newProber()

	var gotHost string
	p.SetPingFunc(func(ctx context.Context, host string, timeout time.Duration) (bool, error) {
		gotHost = host
		assert.Equal(t, PingTimeout, timeout)
		return true, nil
	})
	assert.Equal(t, StatusUp, p.Check(context.Background(), Target{Type: TypePing, Host: "192.168.1.1"}))
	assert.Equal(t, "192.168.1.1", gotHost)

	p.SetPingFunc(func(ctx context.Context, host string, timeout time.Duration) (bool, error) {
		return false, errors.New("socket: permission denied")
	})
	assert.Equal(t, StatusDown, p.Check(context.Background(), Target{Type: TypePing, Host: "192.168.1.1"}))
}

func TestProbe_PanicIsDown(t *testing.T) {
	p := newProber()
	p.SetPingFunc(func(ctx context.Context, host string, timeout time.Duration) (bool, error) {
		panic("boom")
	})
	assert.Equal(t, StatusDown, p.Check(context.Background(), Target{Type: TypePing, Host: "h"}))
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		want    Target
		wantErr bool
	}{
		{
			name: "http adds scheme",
			req:  Request{Type: "http", URL: "nas.local:5000/status"},
			want: Target{Type: TypeHTTP, URL: "http://nas.local:5000/status"},
		},
		{
			name: "https keeps url",
			req:  Request{Type: "https", URL: "https://example.com/health"},
			want: Target{Type: TypeHTTPS, URL: "https://example.com/health"},
		},
		{
			name: "http port param applied when url has none",
			req:  Request{Type: "http", URL: "router.lan", Port: 8443},
			want: Target{Type: TypeHTTP, URL: "http://router.lan:8443"},
		},
		{
			name: "tcp host and port param",
			req:  Request{Type: "tcp", URL: "10.0.0.5", Port: 22},
			want: Target{Type: TypeTCP, Host: "10.0.0.5", Port: 22},
		},
		{
			name: "tcp port from url",
			req:  Request{Type: "tcp", URL: "http://10.0.0.5:8123/lovelace"},
			want: Target{Type: TypeTCP, Host: "10.0.0.5", Port: 8123},
		},
		{
			name: "tcp port param wins",
			req:  Request{Type: "tcp", URL: "10.0.0.5:80", Port: 443},
			want: Target{Type: TypeTCP, Host: "10.0.0.5", Port: 443},
		},
		{
			name: "ping strips scheme and path",
			req:  Request{Type: "ping", URL: "https://printer.lan/index.html"},
			want: Target{Type: TypePing, Host: "printer.lan"},
		},
		{
			name: "ping bare host with path",
			req:  Request{Type: "ping", URL: "8.8.8.8/"},
			want: Target{Type: TypePing, Host: "8.8.8.8"},
		},
		{
			name:    "http without host",
			req:     Request{Type: "http", URL: "http://"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTarget_HTTPURLIsValid(t *testing.T) {
	got, err := ParseTarget(Request{Type: "http", URL: "example.com"})
	require.NoError(t, err)
	u, err := url.Parse(got.URL)
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "example.com", u.Host)
}

// Package streamer forwards /api/streamer/* to the camera streaming server, bridging
// websocket sessions used for live playback.
package streamer

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/aristath/zulu7/internal/metrics"
	"github.com/aristath/zulu7/internal/respond"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// maxMessageBytes bounds one websocket message in either direction.
const maxMessageBytes = 8 << 20

// Proxy relays requests to the streamer
type Proxy struct {
	target *url.URL
	prefix string
	rp     *httputil.ReverseProxy
	log    zerolog.Logger
}

// NewProxy creates a pass-through to target for requests under prefix.
func NewProxy(target, prefix string, transport http.RoundTripper, log zerolog.Logger) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid streamer url %q", target)
	}

	p := &Proxy{
		target: u,
		prefix: strings.TrimRight(prefix, "/"),
		log:    log.With().Str("component", "streamer_proxy").Str("target", u.String()).Logger(),
	}
	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = p.stripPrefix(pr.In.URL.Path)
			pr.Out.URL.RawPath = ""
			pr.SetURL(u)
			pr.SetXForwarded()
		},
		Transport:     transport,
		FlushInterval: -1,
		ErrorHandler:  p.handleError,
		ErrorLog:      stdlog.New(p.log, "", 0),
	}
	return p, nil
}

// RegisterRoutes registers the pass-through for every method
func (p *Proxy) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/streamer", p.ServeHTTP)
	r.HandleFunc("/streamer/*", p.ServeHTTP)
}

// ServeHTTP relays one request, upgrading to a websocket bridge when asked.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isWebsocketUpgrade(r) {
		p.bridge(w, r)
		return
	}
	p.rp.ServeHTTP(respond.Track(w), r)
}

func (p *Proxy) stripPrefix(path string) string {
	rest := strings.TrimPrefix(path, p.prefix)
	if rest == "" {
		return "/"
	}
	return rest
}

// upstreamURL maps an inbound request to the streamer, in ws/wss form.
func (p *Proxy) upstreamURL(r *http.Request) string {
	u := *p.target
	u.Path = strings.TrimRight(p.target.Path, "/") + p.stripPrefix(r.URL.Path)
	u.RawQuery = r.URL.RawQuery
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

func (p *Proxy) bridge(w http.ResponseWriter, r *http.Request) {
	upstreamURL := p.upstreamURL(r)

	upstream, _, err := websocket.Dial(r.Context(), upstreamURL, &websocket.DialOptions{
		Subprotocols: subprotocols(r),
	})
	if err != nil {
		p.log.Warn().Err(err).Str("url", upstreamURL).Msg("Streamer websocket dial failed")
		respond.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	accept := &websocket.AcceptOptions{InsecureSkipVerify: true}
	if sp := upstream.Subprotocol(); sp != "" {
		accept.Subprotocols = []string{sp}
	}
	client, err := websocket.Accept(w, r, accept)
	if err != nil {
		p.log.Warn().Err(err).Msg("Websocket upgrade failed")
		upstream.Close(websocket.StatusInternalError, "client upgrade failed")
		return
	}

	client.SetReadLimit(maxMessageBytes)
	upstream.SetReadLimit(maxMessageBytes)

	metrics.StreamerWebsocketSessions.Inc()
	defer metrics.StreamerWebsocketSessions.Dec()
	p.log.Debug().Str("url", upstreamURL).Msg("Websocket session opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errc := make(chan error, 2)
	go pipe(ctx, upstream, client, errc)
	go pipe(ctx, client, upstream, errc)

	err = <-errc
	cancel()

	status, reason := closeStatus(err)
	client.Close(status, reason)
	upstream.Close(status, reason)
	p.log.Debug().Err(err).Int("status", int(status)).Msg("Websocket session closed")
}

// pipe copies messages from src to dst until either side fails.
func pipe(ctx context.Context, dst, src *websocket.Conn, errc chan<- error) {
	for {
		typ, data, err := src.Read(ctx)
		if err != nil {
			errc <- err
			return
		}
		if err := dst.Write(ctx, typ, data); err != nil {
			errc <- err
			return
		}
	}
}

func closeStatus(err error) (websocket.StatusCode, string) {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Reason
	}
	return websocket.StatusGoingAway, ""
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

func subprotocols(r *http.Request) []string {
	var out []string
	for _, v := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, sp := range strings.Split(v, ",") {
			if sp = strings.TrimSpace(sp); sp != "" {
				out = append(out, sp)
			}
		}
	}
	return out
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	metrics.UpstreamRequests.WithLabelValues("streamer", "error").Inc()
	p.log.Warn().Err(err).Str("path", r.URL.Path).Msg("Streamer request failed")
	respond.Error(w, http.StatusInternalServerError, err.Error())
}

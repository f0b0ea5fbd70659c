// Package embed implements the reverse proxy that lets third-party pages render in
// dashboard iframes despite their anti-framing headers.
package embed

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
)

// ErrNoTarget is returned when neither ?url= nor the Referer names a target.
var ErrNoTarget = errors.New("no proxy target: pass ?url= or load from a proxied page")

type targetKey struct{}

// Proxy is the header-stripping reverse proxy.
type Proxy struct {
	mountPath string
	rp        *httputil.ReverseProxy
	log       zerolog.Logger
}

// NewProxy creates a proxy mounted at mountPath (e.g. "/api/proxy").
func NewProxy(transport http.RoundTripper, mountPath string, log zerolog.Logger) *Proxy {
	p := &Proxy{
		mountPath: mountPath,
		log:       log.With().Str("component", "embed_proxy").Logger(),
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite:        p.rewrite,
		Transport:      transport,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.handleError,
		ErrorLog:       stdlog.New(p.log, "", 0),
	}
	return p
}

// RegisterRoutes registers the proxy for every method
func (p *Proxy) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/proxy", p.ServeHTTP)
	r.HandleFunc("/proxy/*", p.ServeHTTP)
}

// ServeHTTP proxies requests addressed to the mount path.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.serve(w, r, strings.TrimPrefix(r.URL.Path, p.mountPath))
}

// Fallback serves sub-resources requested by a proxied page at paths outside the
// mount (e.g. <img src="/logo.png">) and hands everything else to next.
func (p *Proxy) Fallback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := p.refererTarget(r); ok {
			p.serve(w, r, r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Proxy) serve(w http.ResponseWriter, r *http.Request, relPath string) {
	target, err := p.ResolveTarget(r, relPath)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.WithValue(r.Context(), targetKey{}, target)
	p.rp.ServeHTTP(respond.Track(w), r.WithContext(ctx))
}

// ResolveTarget picks the upstream URL: an explicit ?url= wins, otherwise relPath is
// resolved against the origin of the page named in the Referer's ?url=.
func (p *Proxy) ResolveTarget(r *http.Request, relPath string) (*url.URL, error) {
	if raw := r.URL.Query().Get("url"); raw != "" {
		return parseTarget(raw)
	}

	base, ok := p.refererTarget(r)
	if !ok {
		return nil, ErrNoTarget
	}

	if relPath == "" {
		relPath = "/"
	}
	return base.ResolveReference(&url.URL{Path: relPath, RawQuery: r.URL.RawQuery}), nil
}

// refererTarget returns the origin of the proxied page that issued r.
func (p *Proxy) refererTarget(r *http.Request) (*url.URL, bool) {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return nil, false
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return nil, false
	}
	if refURL.Path != p.mountPath && !strings.HasPrefix(refURL.Path, p.mountPath+"/") {
		return nil, false
	}

	page, err := parseTarget(refURL.Query().Get("url"))
	if err != nil {
		return nil, false
	}
	return &url.URL{Scheme: page.Scheme, Host: page.Host}, true
}

func parseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: must be an absolute http(s) URL", raw)
	}
	return u, nil
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	target := pr.In.Context().Value(targetKey{}).(*url.URL)

	out := *target
	pr.Out.URL = &out
	pr.Out.Host = target.Host

	origin := target.Scheme + "://" + target.Host
	pr.Out.Header.Set("Referer", origin)
	pr.Out.Header.Set("Origin", origin)
}

func (p *Proxy) modifyResponse(resp *http.Response) error {
	metrics.UpstreamRequests.WithLabelValues("embed_proxy", "success").Inc()

	RewriteResponseHeaders(resp.Header)
	if resp.StatusCode >= 300 && resp.StatusCode < 400 && resp.Request != nil {
		rewriteLocation(resp.Header, resp.Request.URL, p.mountPath)
	}
	return nil
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	metrics.UpstreamRequests.WithLabelValues("embed_proxy", "error").Inc()

	target := ""
	if u, ok := r.Context().Value(targetKey{}).(*url.URL); ok {
		target = u.String()
	}
	p.log.Warn().Err(err).Str("target", target).Msg("Proxy upstream failed")

	respond.Error(w, http.StatusInternalServerError, err.Error())
}

package embed

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// framingDirective matches CSP directives that govern iframe embedding.
var framingDirective = regexp.MustCompile(`(?i)^(frame-ancestors|frame-src)(\s|$)`)

// StripFramingDirectives removes frame-ancestors and frame-src from a CSP value and
// keeps every other directive in order.
func StripFramingDirectives(policy string) string {
	parts := strings.Split(policy, ";")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		directive := strings.TrimSpace(part)
		if directive == "" || framingDirective.MatchString(directive) {
			continue
		}
		kept = append(kept, directive)
	}
	return strings.Join(kept, "; ")
}

// RewriteResponseHeaders removes anti-framing headers so the page renders inside an
// iframe on the dashboard origin.
func RewriteResponseHeaders(h http.Header) {
	h.Del("X-Frame-Options")

	if policies := h.Values("Content-Security-Policy"); len(policies) > 0 {
		h.Del("Content-Security-Policy")
		for _, p := range policies {
			if stripped := StripFramingDirectives(p); stripped != "" {
				h.Add("Content-Security-Policy", stripped)
			}
		}
	}

	h.Del("X-Content-Security-Policy")
	h.Del("X-Webkit-CSP")
	h.Set("Access-Control-Allow-Origin", "*")
}

// rewriteLocation keeps redirects inside the proxy.
func rewriteLocation(h http.Header, base *url.URL, mountPath string) {
	loc := h.Get("Location")
	if loc == "" {
		return
	}
	abs, err := base.Parse(loc)
	if err != nil || (abs.Scheme != "http" && abs.Scheme != "https") {
		return
	}
	h.Set("Location", mountPath+"?url="+url.QueryEscape(abs.String()))
}

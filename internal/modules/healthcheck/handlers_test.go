package healthcheck

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter() *chi.Mux {
	h := NewHandler(newProber(), zerolog.Nop())
	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return r
}

func checkStatus(t *testing.T, r http.Handler, query url.Values) (int, Response, http.Header) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health-check?"+query.Encode(), nil))

	var resp Response
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp, rec.Header()
}

func TestHandleCheck_Up(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstreamSrv.Close()

	code, resp, header := checkStatus(t, setupRouter(), url.Values{"type": {"http"}, "url": {upstreamSrv.URL}})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Contains(t, header.Get("Cache-Control"), "no-store")
}

func TestHandleCheck_DownIsStill200(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstreamSrv.Close()

	code, resp, _ := checkStatus(t, setupRouter(), url.Values{"type": {"http"}, "url": {upstreamSrv.URL}})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDown, resp.Status)
}

func TestHandleCheck_UnresolvableTargetIsDown(t *testing.T) {
	code, resp, _ := checkStatus(t, setupRouter(), url.Values{"type": {"tcp"}, "url": {"http://"}})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDown, resp.Status)
}

func TestHandleCheck_InvalidInput(t *testing.T) {
	r := setupRouter()

	tests := []struct {
		name  string
		query url.Values
	}{
		{"missing type", url.Values{"url": {"example.com"}}},
		{"unknown type", url.Values{"type": {"udp"}, "url": {"example.com"}}},
		{"missing url", url.Values{"type": {"http"}}},
		{"non-numeric port", url.Values{"type": {"tcp"}, "url": {"h"}, "port": {"ssh"}}},
		{"port out of range", url.Values{"type": {"tcp"}, "url": {"h"}, "port": {"99999"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := checkStatus(t, r, tt.query)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

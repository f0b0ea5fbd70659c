package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_WritesJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "url is required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "url is required", body.Error)
}

func TestError_SkippedAfterHeadersSent(t *testing.T) {
	rec := httptest.NewRecorder()
	tw := Track(rec)

	tw.WriteHeader(http.StatusOK)
	_, _ = tw.Write([]byte("partial"))
	Error(tw, http.StatusInternalServerError, "boom")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}

func TestTrack_Idempotent(t *testing.T) {
	rec := httptest.NewRecorder()
	tw := Track(rec)
	assert.Same(t, tw, Track(tw))
	assert.False(t, tw.Written())
}

func TestNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStore(rec)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestUpstreamError(t *testing.T) {
	rec := httptest.NewRecorder()
	UpstreamError(rec, zerolog.Nop(), "rss", errors.New("connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

// Package drive streams Google Drive files without an API key by following the public
// download redirects.
package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/zulu7/internal/clients/upstream"
	"github.com/aristath/zulu7/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultDownloadURL is the public direct-download endpoint.
const DefaultDownloadURL = "https://drive.google.com/uc"

// MaxRedirects is the number of redirect hops followed before giving up.
const MaxRedirects = 5

// RedirectLimitError is returned when the hop budget is exhausted.
type RedirectLimitError struct {
	Limit int
}

func (e *RedirectLimitError) Error() string {
	return "Too many redirects"
}

// ErrHTMLInterstitial means Drive answered with its warning page instead of file bytes.
// Large files get a virus-scan confirmation page that cannot be bypassed here.
var ErrHTMLInterstitial = errors.New("Google Drive returned an HTML page instead of the file (virus scan warning or restricted sharing); the file cannot be streamed directly")

// Downloader resolves a Drive file id to a streaming upstream response.
type Downloader struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewDownloader creates a downloader on the shared transport. The client has no
// overall timeout so large videos can stream for as long as the caller reads.
func NewDownloader(transport http.RoundTripper, log zerolog.Logger) *Downloader {
	return &Downloader{
		client:  upstream.NoRedirectClient(transport, 0),
		baseURL: DefaultDownloadURL,
		log:     log.With().Str("component", "drive_downloader").Logger(),
	}
}

// SetBaseURL points the downloader at another endpoint. Used by tests.
func (d *Downloader) SetBaseURL(base string) {
	d.baseURL = base
}

// DownloadURL returns the first-hop URL for fileID.
func (d *Downloader) DownloadURL(fileID string) string {
	params := url.Values{}
	params.Set("export", "download")
	params.Set("id", fileID)
	return d.baseURL + "?" + params.Encode()
}

// Open follows up to MaxRedirects hops and returns the final response. The caller
// owns the body. rangeHeader is forwarded on every hop when non-empty.
func (d *Downloader) Open(ctx context.Context, fileID, rangeHeader string) (*http.Response, error) {
	start := time.Now()
	resp, err := d.open(ctx, fileID, rangeHeader)
	metrics.ObserveUpstream("drive_download", time.Since(start).Seconds(), err)
	return resp, err
}

func (d *Downloader) open(ctx context.Context, fileID, rangeHeader string) (*http.Response, error) {
	current, err := url.Parse(d.DownloadURL(fileID))
	if err != nil {
		return nil, fmt.Errorf("invalid download url: %w", err)
	}

	for hops := 0; ; hops++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", upstream.UserAgent)
		req.Header.Set("Accept-Encoding", "identity")
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to reach Google Drive: %w", err)
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			resp.Body.Close()

			if location == "" {
				return nil, fmt.Errorf("Google Drive redirect %d without Location", resp.StatusCode)
			}
			if hops >= MaxRedirects {
				return nil, &RedirectLimitError{Limit: MaxRedirects}
			}

			next, err := current.Parse(location)
			if err != nil {
				return nil, fmt.Errorf("invalid redirect location %q: %w", location, err)
			}
			d.log.Debug().Int("hop", hops+1).Str("location", next.String()).Msg("Following Drive redirect")
			current = next
			continue
		}

		if strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
			resp.Body.Close()
			return nil, ErrHTMLInterstitial
		}

		if resp.StatusCode >= 400 && resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
			resp.Body.Close()
			return nil, fmt.Errorf("Google Drive returned status %d", resp.StatusCode)
		}

		return resp, nil
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

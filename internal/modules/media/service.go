package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/zulu7/internal/cache"
	"github.com/aristath/zulu7/internal/clients/upstream"
	"github.com/aristath/zulu7/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultDriveURL hosts the folder pages that are scraped for file ids.
const DefaultDriveURL = "https://drive.google.com"

const (
	listingTimeout  = 15 * time.Second
	maxListingBytes = 10 << 20
)

// Service builds media listings, caching them by source URL.
type Service struct {
	client   *http.Client
	listings *cache.TTL[[]File]
	driveURL string
	log      zerolog.Logger
}

// NewService creates a new media listing service
func NewService(transport http.RoundTripper, listings *cache.TTL[[]File], log zerolog.Logger) *Service {
	return &Service{
		client:   upstream.NewClient(transport, listingTimeout),
		listings: listings,
		driveURL: DefaultDriveURL,
		log:      log.With().Str("service", "media").Logger(),
	}
}

// SetDriveURL points folder scraping at another host. Used by tests.
func (s *Service) SetDriveURL(driveURL string) {
	s.driveURL = strings.TrimRight(driveURL, "/")
}

// List returns the media files found at sourceURL.
func (s *Service) List(ctx context.Context, sourceURL *url.URL) ([]File, error) {
	key := sourceURL.String()
	if files, ok := s.listings.Get(key); ok {
		return files, nil
	}

	var (
		files []File
		err   error
	)
	start := time.Now()
	if folderID, ok := DriveFolderID(sourceURL); ok {
		files, err = s.listDriveFolder(ctx, folderID)
		metrics.ObserveUpstream("drive_folder", time.Since(start).Seconds(), err)
	} else {
		files, err = s.listDirectory(ctx, sourceURL)
		metrics.ObserveUpstream("media_directory", time.Since(start).Seconds(), err)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("url", key).Msg("Media listing failed")
		return nil, err
	}

	s.log.Debug().Str("url", key).Int("files", len(files)).Msg("Media listing refreshed")
	s.listings.Set(key, files)
	return files, nil
}

func (s *Service) listDriveFolder(ctx context.Context, folderID string) ([]File, error) {
	body, err := s.get(ctx, s.driveURL+"/drive/folders/"+url.PathEscape(folderID))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	page, err := io.ReadAll(io.LimitReader(body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read folder page: %w", err)
	}
	return ParseDriveFolder(string(page), folderID), nil
}

func (s *Service) listDirectory(ctx context.Context, dirURL *url.URL) ([]File, error) {
	body, err := s.get(ctx, dirURL.String())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	files, err := ParseDirectory(io.LimitReader(body, maxListingBytes), dirURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory listing: %w", err)
	}
	return files, nil
}

func (s *Service) get(ctx context.Context, reqURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", upstream.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("listing returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Package publish stores shareable dashboard snapshots as flat JSON files.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aristath/zulu7/internal/metrics"
	"github.com/aristath/zulu7/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidID is returned for ids that are not plain alphanumeric strings.
	ErrInvalidID = errors.New("invalid config id")
	// ErrNotFound is returned when no config exists for an id.
	ErrNotFound = errors.New("config not found")
	// ErrNotObject is returned when a publish body is not a JSON object.
	ErrNotObject = errors.New("config must be a JSON object")
)

// Server-maintained fields of a stored config.
const (
	fieldTimestamp    = "timestamp"
	fieldLastAccessed = "lastAccessed"
	fieldIsUsed       = "isUsed"
)

// Mirror is an off-host copy of the config directory.
type Mirror interface {
	Upload(ctx context.Context, key string, body []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Store persists published configs under dir as <key>.json.
type Store struct {
	dir    string
	mirror Mirror
	now    func() time.Time
	log    zerolog.Logger

	mu sync.Mutex
}

// NewStore creates a store rooted at dir, creating it if needed. mirror may be nil.
func NewStore(dir string, mirror Mirror, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	return &Store{
		dir:    dir,
		mirror: mirror,
		now:    time.Now,
		log:    log.With().Str("component", "config_store").Logger(),
	}, nil
}

// SetClock replaces the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Publish stores doc under a new random key and returns the key.
func (s *Store) Publish(ctx context.Context, doc map[string]json.RawMessage) (string, error) {
	if doc == nil {
		return "", ErrNotObject
	}

	key := strings.ReplaceAll(uuid.NewString(), "-", "")

	stored := make(map[string]json.RawMessage, len(doc)+3)
	for k, v := range doc {
		stored[k] = v
	}

	s.mu.Lock()
	ts := s.now().UnixMilli()
	stored[fieldTimestamp] = mustRaw(ts)
	stored[fieldLastAccessed] = mustRaw(ts)
	stored[fieldIsUsed] = mustRaw(false)
	body, err := s.write(key, stored)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	metrics.PublishedConfigsCreated.Inc()
	s.log.Info().Str("key", key).Int("bytes", len(body)).Msg("Published config")

	if s.mirror != nil {
		if err := s.mirror.Upload(ctx, mirrorKey(key), body); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to mirror published config")
		}
	}
	return key, nil
}

// Load returns the config for id, marking it as used and bumping lastAccessed.
func (s *Store) Load(ctx context.Context, id string) ([]byte, error) {
	if err := validation.Var("id", id, "required,alphanum"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		raw, err = s.restore(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return nil, fmt.Errorf("stored config %s is corrupt", id)
	}
	doc[fieldLastAccessed] = mustRaw(s.now().UnixMilli())
	doc[fieldIsUsed] = mustRaw(true)

	return s.write(id, doc)
}

// restore pulls a config missing locally from the mirror. Caller holds s.mu.
func (s *Store) restore(ctx context.Context, id string) ([]byte, error) {
	if s.mirror == nil {
		return nil, ErrNotFound
	}

	raw, err := s.mirror.Download(ctx, mirrorKey(id))
	if err != nil {
		s.log.Debug().Err(err).Str("key", id).Msg("Config not available from mirror")
		return nil, ErrNotFound
	}

	s.log.Info().Str("key", id).Msg("Restored config from mirror")
	return raw, nil
}

// Sweep deletes configs idle for longer than maxAge and returns how many were removed.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list config directory: %w", err)
	}

	purged := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".json")

		removed, err := s.removeIfExpired(key, maxAge)
		if err != nil {
			s.log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping config")
			continue
		}
		if !removed {
			continue
		}

		purged++
		metrics.PublishedConfigsPurged.Inc()
		s.log.Info().Str("key", key).Msg("Deleted expired config")

		if s.mirror != nil {
			if err := s.mirror.Delete(ctx, mirrorKey(key)); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("Failed to delete mirrored config")
			}
		}
	}
	return purged, nil
}

// removeIfExpired checks and deletes one config under a single hold of s.mu, so a
// concurrent Load either refreshes it first or finds it gone.
func (s *Store) removeIfExpired(key string, maxAge time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	expired, err := expiredAt(raw, s.now().Add(-maxAge).UnixMilli())
	if err != nil || !expired {
		return false, err
	}

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to delete expired config: %w", err)
	}
	return true, nil
}

func expiredAt(raw []byte, cutoff int64) (bool, error) {
	var stamps struct {
		Timestamp    *int64 `json:"timestamp"`
		LastAccessed *int64 `json:"lastAccessed"`
	}
	if err := json.Unmarshal(raw, &stamps); err != nil {
		return false, err
	}

	last := stamps.LastAccessed
	if last == nil {
		last = stamps.Timestamp
	}
	if last == nil {
		return false, fmt.Errorf("no timestamp")
	}
	return *last < cutoff, nil
}

func (s *Store) write(key string, doc map[string]json.RawMessage) ([]byte, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(s.path(key), body, 0644); err != nil {
		return nil, fmt.Errorf("failed to write config: %w", err)
	}
	return body, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func mirrorKey(key string) string {
	return "published_configs/" + key + ".json"
}

func mustRaw(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

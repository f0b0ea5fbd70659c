package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Save writes every fresh entry to w as msgpack.
func (c *TTL[V]) Save(w io.Writer) error {
	c.mu.RLock()
	now := c.now()
	fresh := make(map[string]Entry[V], len(c.entries))
	for k, e := range c.entries {
		if now.Sub(e.StoredAt) < c.ttl {
			fresh[k] = e
		}
	}
	c.mu.RUnlock()

	if err := msgpack.NewEncoder(w).Encode(fresh); err != nil {
		return fmt.Errorf("failed to encode %s cache snapshot: %w", c.name, err)
	}
	return nil
}

// Load merges a snapshot produced by Save. Entries already stale are skipped and
// entries present in memory win over snapshot ones.
func (c *TTL[V]) Load(r io.Reader) (int, error) {
	var snapshot map[string]Entry[V]
	if err := msgpack.NewDecoder(r).Decode(&snapshot); err != nil {
		return 0, fmt.Errorf("failed to decode %s cache snapshot: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	loaded := 0
	for k, e := range snapshot {
		if now.Sub(e.StoredAt) >= c.ttl {
			continue
		}
		if _, exists := c.entries[k]; exists {
			continue
		}
		c.entries[k] = e
		loaded++
	}
	return loaded, nil
}

// SaveFile atomically writes a snapshot to path.
func (c *TTL[V]) SaveFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := c.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFile reads a snapshot from path. A missing file returns an error wrapping
// fs.ErrNotExist.
func (c *TTL[V]) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()
	return c.Load(f)
}

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
)

// Snapshot is the durable session snapshot restored at bootstrap. It is a
// hint only; bootstrap always verifies it against the server before trusting
// it.
type Snapshot struct {
	User            kogu.UserProfile `json:"user"`
	AccessToken     string           `json:"access_token"`
	IsAuthenticated bool             `json:"is_authenticated"`
}

// SnapshotCache persists the session snapshot across process restarts.
type SnapshotCache interface {
	// Load returns the stored snapshot. The bool is false when no snapshot
	// exists.
	Load() (Snapshot, bool, error)
	Save(Snapshot) error
	Invalidate() error
}

// FileCache stores the snapshot as a JSON file readable only by the owner.
type FileCache struct {
	path string
}

// NewFileCache builds a cache at path. Parent directories are created on the
// first Save.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Load() (Snapshot, bool, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("client: read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// A corrupt snapshot is the same as no snapshot.
		return Snapshot{}, false, nil
	}
	return snapshot, true, nil
}

func (c *FileCache) Save(snapshot Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("client: encode snapshot: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("client: create snapshot dir: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("client: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("client: replace snapshot: %w", err)
	}
	return nil
}

func (c *FileCache) Invalidate() error {
	err := os.Remove(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemCache is an in-memory SnapshotCache for tests.
type MemCache struct {
	mu       sync.Mutex
	snapshot Snapshot
	present  bool
}

// NewMemCache returns an empty cache.
func NewMemCache() *MemCache {
	return &MemCache{}
}

func (c *MemCache) Load() (Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot, c.present, nil
}

func (c *MemCache) Save(snapshot Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snapshot
	c.present = true
	return nil
}

func (c *MemCache) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = Snapshot{}
	c.present = false
	return nil
}

// Package filecache keeps the last good snapshot on local disk.
package filecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	"example.com/runlog/internal/domain"
)

const defaultKey = "data.json"

// cachedSnapshot is the on-disk document; it carries the remote version alongside the entries.
type cachedSnapshot struct {
	ActivityEntries []domain.ActivityEntry `json:"activityEntries"`
	WeightEntries   []domain.WeightEntry   `json:"weightEntries"`
	Version         int64                  `json:"version"`
}

// Cache is a LocalCache. Save mirrors unconditionally; the cache never arbitrates versions.
type Cache struct {
	d   *diskv.Diskv
	key string
}

// New opens (or creates) a cache rooted at basePath.
func New(basePath string) *Cache {
	return &Cache{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			CacheSizeMax:      1024 * 1024,
		}),
		key: defaultKey,
	}
}

// Load reads the cached snapshot.
func (c *Cache) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	if !c.d.Has(c.key) {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	raw, err := c.d.Read(c.key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Snapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("read cache: %w", err)
	}

	var doc cachedSnapshot
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode cache: %w", err)
	}
	return domain.Snapshot{
		ActivityEntries: doc.ActivityEntries,
		WeightEntries:   doc.WeightEntries,
		Version:         doc.Version,
	}.Normalize(), nil
}

// Save overwrites the cached snapshot.
func (c *Cache) Save(ctx context.Context, snap domain.Snapshot, _ domain.Mutation) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	snap = snap.Normalize()
	raw, err := json.Marshal(cachedSnapshot{
		ActivityEntries: snap.ActivityEntries,
		WeightEntries:   snap.WeightEntries,
		Version:         snap.Version,
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := c.d.Write(c.key, raw); err != nil {
		return domain.Snapshot{}, fmt.Errorf("write cache: %w", err)
	}
	return snap, nil
}

// Clear removes the cached snapshot.
func (c *Cache) Clear() error {
	if !c.d.Has(c.key) {
		return nil
	}
	return c.d.Erase(c.key)
}

// keys like "snapshots/data.json" map to nested directories.
func keyToPathTransform(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pk *diskv.PathKey) string {
	return strings.Join(append(append([]string{}, pk.Path...), pk.FileName), "/")
}

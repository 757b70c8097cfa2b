package memcache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

// manifestEntry is one module's durable cache record. Compressed bytes are
// not embedded in the manifest; they live in a sibling ".blob" file named
// by manifestEntry.File, the same split the teacher's checkpoint format
// uses for large payloads alongside a small YAML index.
type manifestEntry struct {
	Name     string    `yaml:"name"`
	FilePath string    `yaml:"file_path"`
	Blob     string    `yaml:"blob"`
	IsPacked bool      `yaml:"is_packed"`
	RawLen   int       `yaml:"raw_len"`
	StoredAt time.Time `yaml:"stored_at"`
	TTL      string    `yaml:"ttl,omitempty"`
}

type manifest struct {
	Entries []manifestEntry `yaml:"entries"`
}

// Durable wraps a Cache with a YAML manifest persisted under dir, surviving
// process restarts for the `pyanalyze analyze` one-shot CLI mode. The
// manifest is loaded into the in-memory Cache when the Durable is opened;
// Restore reads only that in-memory Cache, never the disk.
type Durable struct {
	*Cache

	mu  sync.Mutex
	dir string
}

// NewDurable creates a durable cache rooted at dir, loading any existing
// manifest written by a previous process.
func NewDurable(codec Codec, maxSize int64, ttl time.Duration, dir string) (*Durable, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("memcache: create cache dir: %w", err)
	}

	d := &Durable{Cache: New(codec, maxSize, ttl), dir: dir}

	if err := d.loadManifest(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Durable) manifestPath() string { return filepath.Join(d.dir, "manifest.yaml") }

func (d *Durable) loadManifest() error {
	raw, err := os.ReadFile(d.manifestPath())
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("memcache: read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("memcache: parse manifest: %w", err)
	}

	for _, entry := range m.Entries {
		blobBytes, err := os.ReadFile(filepath.Join(d.dir, entry.Blob))
		if err != nil {
			continue // missing blob file: skip this entry, it was never usable.
		}

		module := &pyast.Module{Name: entry.Name, FilePath: entry.FilePath}

		rawLen := entry.RawLen
		if !entry.IsPacked {
			rawLen = len(blobBytes)
		}

		d.mu.Lock()
		d.inner.Put(cacheKey(module), blob{
			compressed: blobBytes,
			rawLen:     rawLen,
			isPacked:   entry.IsPacked,
			storedAt:   entry.StoredAt,
			ttl:        d.ttl,
		})
		d.mu.Unlock()
	}

	return nil
}

// Store persists to the in-memory cache and appends the blob + manifest
// entry to disk.
func (d *Durable) Store(ctx context.Context, module *pyast.Module, analysis hostapi.Analysis) error {
	if err := d.Cache.Store(ctx, module, analysis); err != nil {
		return err
	}

	key := cacheKey(module)

	d.mu.Lock()
	b, ok := d.inner.Get(key)
	d.mu.Unlock()

	if !ok {
		return nil
	}

	sum := sha256.Sum256([]byte(key.String()))
	blobName := fmt.Sprintf("%x.blob", sum)

	if err := os.WriteFile(filepath.Join(d.dir, blobName), b.compressed, 0o600); err != nil {
		return fmt.Errorf("memcache: write blob: %w", err)
	}

	return d.appendManifest(manifestEntry{
		Name:     module.Name,
		FilePath: module.FilePath,
		Blob:     blobName,
		IsPacked: b.isPacked,
		RawLen:   b.rawLen,
		StoredAt: b.storedAt,
	})
}

func (d *Durable) appendManifest(entry manifestEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var m manifest

	if raw, err := os.ReadFile(d.manifestPath()); err == nil {
		_ = yaml.Unmarshal(raw, &m)
	}

	m.Entries = append(m.Entries, entry)

	out, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("memcache: marshal manifest: %w", err)
	}

	if err := os.WriteFile(d.manifestPath(), out, 0o600); err != nil {
		return fmt.Errorf("memcache: write manifest: %w", err)
	}

	return nil
}

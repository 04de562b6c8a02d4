package describe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Entry is the stored description of one image.
type Entry struct {
	Caption string   `json:"caption"`
	Objects []string `json:"objects"`
}

// Catalog maps image filenames to their descriptions. It is safe for
// concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

// LoadCatalog reads the catalog at path. A missing file yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewCatalog(), nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c := NewCatalog()
	if len(raw) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c.entries); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	if c.entries == nil {
		c.entries = make(map[string]Entry)
	}
	return c, nil
}

// Save writes the catalog to path, replacing the file atomically.
func (c *Catalog) Save(path string) error {
	c.mu.RLock()
	raw, err := json.MarshalIndent(c.entries, "", "    ")
	c.mu.RUnlock()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalog-*")
	if err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("save catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Has reports whether filename was already described.
func (c *Catalog) Has(filename string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[filename]
	return ok
}

// Lookup returns the description stored for filename.
func (c *Catalog) Lookup(filename string) (Description, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[filename]
	if !ok {
		return Description{}, false
	}
	return NewDescription(e.Caption, e.Objects), true
}

// Put stores d under filename.
func (c *Catalog) Put(filename string, d Description) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[filename] = Entry{Caption: d.Caption, Objects: append([]string(nil), d.Labels...)}
}

// Filenames lists described images in sorted order.
func (c *Catalog) Filenames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of described images.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

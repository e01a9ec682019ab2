package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/healthsync/symptom-triage/internal/oracle"
	"gopkg.in/yaml.v3"
)

// ErrCatalogStale is returned by LoadCatalog when the cache file is older
// than the configured expiry.
var ErrCatalogStale = errors.New("symptom catalog cache is stale")

// catalogAge is the patient age used when listing the oracle vocabulary.
const catalogAge = 30

// Entry pairs a lower-cased symptom name with its oracle identifier.
type Entry struct {
	Name string
	ID   string
}

// Catalog is the canonical symptom name table. It is immutable once built.
type Catalog struct {
	entries []Entry
	byName  map[string]string
}

// NewCatalog builds a catalog, keeping the first id seen for each name.
func NewCatalog(entries []Entry) *Catalog {
	c := &Catalog{byName: make(map[string]string, len(entries))}
	for _, e := range entries {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if name == "" || e.ID == "" {
			continue
		}
		if _, dup := c.byName[name]; dup {
			continue
		}
		c.byName[name] = e.ID
		c.entries = append(c.entries, Entry{Name: name, ID: e.ID})
	}
	return c
}

// Lookup finds an exact lower-cased name.
func (c *Catalog) Lookup(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	id, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// Names lists symptom names in catalog order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		names = append(names, e.Name)
	}
	return names
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// LoadCatalog reads a cache file of [name, id] pairs. JSON and YAML files
// are both accepted. A zero expiry disables the staleness check.
func LoadCatalog(path string, expiry time.Duration) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if expiry > 0 && time.Since(info.ModTime()) >= expiry {
		return nil, fmt.Errorf("%w: %s modified %s", ErrCatalogStale, path, info.ModTime().Format(time.RFC3339))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	// JSON is a subset of YAML, so one decoder handles both formats.
	var pairs [][]string
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("catalog %s: entry %d has %d fields, want 2", path, i, len(p))
		}
		entries = append(entries, Entry{Name: p[0], ID: p[1]})
	}
	return NewCatalog(entries), nil
}

// Save writes the catalog as [name, id] pairs, as YAML when the file has a
// .yaml or .yml extension and as JSON otherwise.
func (c *Catalog) Save(path string) error {
	pairs := make([][2]string, 0, c.Len())
	for _, e := range c.entries {
		pairs = append(pairs, [2]string{e.Name, e.ID})
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(pairs)
	default:
		data, err = json.Marshal(pairs)
	}
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return os.Rename(tmp, path)
}

// SymptomLister lists the oracle vocabulary.
type SymptomLister interface {
	Symptoms(ctx context.Context, age int) ([]oracle.Symptom, error)
}

// SyncCatalog fetches the oracle vocabulary and writes it to path.
func SyncCatalog(ctx context.Context, src SymptomLister, path string) (*Catalog, error) {
	symptoms, err := src.Symptoms(ctx, catalogAge)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch symptoms: %w", err)
	}

	entries := make([]Entry, 0, len(symptoms))
	for _, s := range symptoms {
		entries = append(entries, Entry{Name: s.Name, ID: s.ID})
	}
	c := NewCatalog(entries)

	if err := c.Save(path); err != nil {
		return nil, err
	}
	return c, nil
}

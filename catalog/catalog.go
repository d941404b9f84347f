// Package catalog resolves logical test identifiers to runnable units. The
// catalog is loaded from a YAML manifest that also carries the explicit
// coordinator-affinity and memory-hungry membership lists, so no selection
// table lives in ambient process state.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/suitectl/suitectl/types"
)

// Config contains catalog configuration.
type Config struct {
	Log          *slog.Logger
	ManifestFile string
	// TestDir is the base directory for relative unit files. Defaults to the
	// manifest's directory.
	TestDir string
}

// Catalog maps test identifiers to runnable files and carries the explicit
// scheduling membership sets from the manifest.
type Catalog struct {
	config Config

	mu           sync.RWMutex
	order        []string
	units        map[string]string // id -> resolved absolute path
	affine       map[string]bool
	memoryHungry map[string]bool
}

// CatalogError is the fatal pre-run error raised when one or more requested
// identifiers cannot be resolved. Partial resolution is not permitted.
type CatalogError struct {
	Missing []string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog error: unresolved test identifiers: %s", strings.Join(e.Missing, ", "))
}

// IsCatalogError checks if the error is or wraps a CatalogError.
func IsCatalogError(err error) bool {
	var catErr *CatalogError
	return err != nil && errors.As(err, &catErr)
}

type unitEntry struct {
	ID   string `yaml:"id"`
	File string `yaml:"file"`
}

type manifest struct {
	Units        []unitEntry `yaml:"units"`
	Affine       []string    `yaml:"affine"`
	MemoryHungry []string    `yaml:"memory_hungry"`
}

// New loads and validates the catalog manifest.
func New(cfg Config) (*Catalog, error) {
	if cfg.ManifestFile == "" {
		return nil, fmt.Errorf("catalog manifest file is required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
		cfg.Log.Error("No logger provided, using default")
	}

	c := &Catalog{
		config:       cfg,
		units:        make(map[string]string),
		affine:       make(map[string]bool),
		memoryHungry: make(map[string]bool),
	}
	if err := c.load(cfg.ManifestFile); err != nil {
		return nil, fmt.Errorf("failed to load catalog manifest: %w", err)
	}

	cfg.Log.Debug("Catalog loaded",
		"manifest", cfg.ManifestFile,
		"units", len(c.order),
		"affine", len(c.affine),
		"memoryHungry", len(c.memoryHungry))
	return c, nil
}

func (c *Catalog) load(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifest file: %w", err)
	}

	// Validate the raw document against the embedded schema before decoding
	// into the typed manifest.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing manifest file: %w", err)
	}
	if err := validateManifest(doc); err != nil {
		return err
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parsing manifest file: %w", err)
	}

	baseDir := c.config.TestDir
	if baseDir == "" {
		baseDir = filepath.Dir(path)
	}

	for _, entry := range m.Units {
		if _, exists := c.units[entry.ID]; exists {
			return fmt.Errorf("duplicate unit id %q in manifest", entry.ID)
		}
		file := entry.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}
		c.order = append(c.order, entry.ID)
		c.units[entry.ID] = file
	}

	for _, id := range m.Affine {
		if _, exists := c.units[id]; !exists {
			return fmt.Errorf("affine list references unknown unit id %q", id)
		}
		c.affine[id] = true
	}
	for _, id := range m.MemoryHungry {
		if _, exists := c.units[id]; !exists {
			return fmt.Errorf("memory_hungry list references unknown unit id %q", id)
		}
		c.memoryHungry[id] = true
	}

	return nil
}

// Resolve maps the requested identifiers to TestUnits. Identical identifiers
// are deduplicated preserving first-seen order. Either every identifier
// resolves to an existing file or a CatalogError enumerating all misses is
// returned before any execution starts. An empty request selects every unit
// in manifest order.
func (c *Catalog) Resolve(requested []string) ([]types.TestUnit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(requested) == 0 {
		requested = c.order
	}

	seen := make(map[string]bool, len(requested))
	var units []types.TestUnit
	var missing []string

	for _, id := range requested {
		if seen[id] {
			continue
		}
		seen[id] = true

		path, ok := c.units[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			c.config.Log.Debug("Unit file not found", "id", id, "path", path, "error", err)
			missing = append(missing, id)
			continue
		}
		units = append(units, types.TestUnit{ID: id, Path: path})
	}

	if len(missing) > 0 {
		return nil, &CatalogError{Missing: missing}
	}
	return units, nil
}

// UnitIDs returns every catalogued identifier in manifest order.
func (c *Catalog) UnitIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// AffineSet returns a copy of the coordinator-affine membership set.
func (c *Catalog) AffineSet() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copySet(c.affine)
}

// MemoryHungrySet returns a copy of the memory-hungry membership set.
func (c *Catalog) MemoryHungrySet() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copySet(c.memoryHungry)
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

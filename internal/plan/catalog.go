// internal/plan/catalog.go
package plan

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/pact-foundation/pactengine/internal/engine"
)

/*
 * A Catalog holds the plan documents of one directory, keyed by file name
 * without its extension ("get-items.yaml" is "get-items"). Loading is
 * parallel; a file that fails to load is reported and the others are kept.
 * Readers always see either the old or the new plan of a file.
 */

const loadWorkers = 4

// LoadFile reads a plan document, picking the format from the extension.
func LoadFile(path string) (*engine.ExecutionPlanNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	node, err := Decode(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return node, nil
}

// IsPlanFile reports whether the name has a plan document extension.
func IsPlanFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return !strings.HasPrefix(filepath.Base(name), ".")
	}
	return false
}

// PlanName returns the catalog key of a plan file.
func PlanName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Catalog is a concurrency safe set of named plans.
type Catalog struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	plans map[string]*engine.ExecutionPlanNode
}

// NewCatalog returns an empty catalog for dir.
func NewCatalog(dir string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{dir: dir, logger: logger, plans: make(map[string]*engine.ExecutionPlanNode)}
}

// Dir returns the directory the catalog loads from.
func (c *Catalog) Dir() string { return c.dir }

type loaded struct {
	name string
	plan *engine.ExecutionPlanNode
}

// Load reads every plan document in the directory, replacing the catalog
// contents. The returned error joins the failures of individual files.
func (c *Catalog) Load() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read plan directory: %w", err)
	}

	p := pool.NewWithResults[loaded]().WithErrors().WithMaxGoroutines(loadWorkers)
	for _, entry := range entries {
		if entry.IsDir() || !IsPlanFile(entry.Name()) {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		p.Go(func() (loaded, error) {
			node, err := LoadFile(path)
			if err != nil {
				return loaded{}, err
			}
			return loaded{name: PlanName(path), plan: node}, nil
		})
	}
	results, err := p.Wait()

	plans := make(map[string]*engine.ExecutionPlanNode, len(results))
	for _, r := range results {
		plans[r.name] = r.plan
	}
	c.mu.Lock()
	c.plans = plans
	c.mu.Unlock()

	c.logger.Info("loaded plans", "dir", c.dir, "count", len(plans))
	if err != nil {
		c.logger.Warn(fmt.Sprintf("Some plans could not be loaded: %v", err))
	}
	return err
}

// Reload refreshes the plan of one file. A file that no longer exists is
// removed from the catalog.
func (c *Catalog) Reload(path string) error {
	if !IsPlanFile(path) {
		return nil
	}
	name := PlanName(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.mu.Lock()
		delete(c.plans, name)
		c.mu.Unlock()
		c.logger.Info("removed plan", "name", name)
		return nil
	}

	node, err := LoadFile(path)
	if err != nil {
		return err
	}
	c.Put(name, node)
	c.logger.Info("reloaded plan", "name", name, "nodes", node.CountNodes())
	return nil
}

// Put stores a plan under name.
func (c *Catalog) Put(name string, node *engine.ExecutionPlanNode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[name] = node
}

// Get returns the plan stored under name.
func (c *Catalog) Get(name string) (*engine.ExecutionPlanNode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	node, ok := c.plans[name]
	return node, ok
}

// Names returns the plan names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.plans))
	for name := range c.plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

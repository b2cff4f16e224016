package algorithms

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
)

// DefaultAlgorithm is used when a caller does not name one.
const DefaultAlgorithm = "bubble"

// Info describes a registered definition.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalog manages the available algorithm definitions.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]ports.Definition
}

// NewCatalog creates a new empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		defs: make(map[string]ports.Definition),
	}
}

// Default returns a new catalog holding every built-in definition.
func Default() *Catalog {
	c := NewCatalog()
	for _, def := range Builtins() {
		c.Register(def)
	}
	return c
}

// Builtins returns fresh instances of the built-in definitions.
func Builtins() []ports.Definition {
	return []ports.Definition{
		Bubble(),
		Insertion(),
		Merge(),
		Quick(),
		BinarySearch(),
		BFS(),
		DFS(),
		Dijkstra(),
		LCS(),
		KMP(),
	}
}

// Register adds a definition to the catalog.
// If one with the same name exists, it is overwritten.
func (c *Catalog) Register(def ports.Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[def.Name()] = def
}

// Get looks up a definition by name.
func (c *Catalog) Get(name string) (ports.Definition, error) {
	if name == "" {
		name = DefaultAlgorithm
	}
	c.mu.RLock()
	def, ok := c.defs[name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAlgorithm, name)
	}
	return def, nil
}

// Names returns the registered names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns name and description of every definition, sorted by name.
func (c *Catalog) List() []Info {
	names := c.Names()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		if def, ok := c.defs[name]; ok {
			out = append(out, Info{Name: name, Description: def.Describe()})
		}
	}
	return out
}

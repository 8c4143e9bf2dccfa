package capability

import (
	"fmt"
	"sort"
	"sync"

	"postern/pkg/logging"
)

// Entry is a registered capability: its definition plus the compiled
// validator for its input schema.
type Entry struct {
	Definition Definition
	Validator  Validator
}

// Registry holds the set of capabilities currently exposed by the gateway.
// Build replaces the whole set atomically after each discovery cycle.
type Registry struct {
	compiler Compiler

	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewRegistry creates an empty registry using compiler for schemas.
func NewRegistry(compiler Compiler) *Registry {
	return &Registry{
		compiler: compiler,
		entries:  make(map[string]*Entry),
	}
}

// Build compiles each definition's input schema and replaces the registry
// contents with the ones that compile. Tools whose schemas fail to compile
// are skipped with a warning. If none survive, Build fails and the previous
// contents stay in place.
func (r *Registry) Build(defs []Definition) error {
	entries := make(map[string]*Entry, len(defs))
	order := make([]string, 0, len(defs))

	for i := range defs {
		def := defs[i]
		if _, exists := entries[def.Name]; exists {
			logging.Warn("Registry", "Skipping duplicate tool %q", def.Name)
			continue
		}
		validator, err := r.compiler.Compile(def.InputSchema)
		if err != nil {
			logging.Warn("Registry", "Skipping tool %q: %v", def.Name, err)
			continue
		}
		entries[def.Name] = &Entry{Definition: def, Validator: validator}
		order = append(order, def.Name)
	}

	if len(entries) == 0 {
		return fmt.Errorf("No valid tools: all %d discovered tools failed schema compilation", len(defs))
	}

	r.mu.Lock()
	r.entries = entries
	r.order = order
	r.mu.Unlock()

	logging.Info("Registry", "Registered %d of %d discovered tools", len(entries), len(defs))
	return nil
}

// Lookup returns the entry for name, or false if no such capability is
// registered.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// Names returns the registered capability names in discovery order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// SortedNames returns the registered capability names sorted alphabetically.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}

// Entries returns all registered entries in discovery order.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, r.entries[name])
	}
	return entries
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

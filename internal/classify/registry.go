package classify

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps benchmark types to classifiers. Keys are matched
// case-insensitively. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu          sync.RWMutex
	classifiers map[string]Classifier
}

func NewRegistry() *Registry {
	return &Registry{classifiers: make(map[string]Classifier)}
}

// Register adds a classifier under its own Name. Registering a second
// classifier for the same benchmark type is an error; replacing a
// classifier silently would make batch results depend on load order.
func (r *Registry) Register(c Classifier) error {
	key := strings.ToLower(strings.TrimSpace(c.Name()))
	if key == "" {
		return fmt.Errorf("classifier has an empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classifiers[key]; exists {
		return fmt.Errorf("classifier %q already registered", key)
	}
	r.classifiers[key] = c
	return nil
}

// Lookup returns the classifier for a benchmark type, if any.
func (r *Registry) Lookup(benchmarkType string) (Classifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classifiers[strings.ToLower(benchmarkType)]
	return c, ok
}

// Names lists the registered benchmark types, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classifiers))
	for k := range r.classifiers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

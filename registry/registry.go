// Package registry maintains the mapping of logical entity classes to
// the files that back them. The registry is the only place that knows
// the physical layout under the data root.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/contentforge/forge/codec"
	"github.com/contentforge/forge/pkg/apierror"
)

// Mapping binds a logical name to a relative file path.
type Mapping struct {
	Name string
	Path string
}

// Registry is the persisted name -> path table.
type Registry struct {
	mu       sync.RWMutex
	filePath string
	entries  []Mapping
}

// DefaultMappings are the entity classes seeded on first start.
func DefaultMappings() []Mapping {
	return []Mapping{
		{Name: "users", Path: "data/users.txt"},
		{Name: "projects", Path: "data/projects.txt"},
		{Name: "collections", Path: "data/collections.txt"},
		{Name: "configs", Path: "data/configs.txt"},
		{Name: "data", Path: "data/projects"},
		{Name: "events", Path: "data/events.txt"},
		{Name: "medias", Path: "data/medias.txt"},
		{Name: "routes", Path: "data/routes"},
		{Name: "constraints", Path: "data/constraints.txt"},
		{Name: "encryption_key", Path: "data/encryption_key.txt"},
	}
}

// New creates a Registry backed by the file at filePath. The file is
// loaded if present; otherwise the default mappings are seeded and
// written out.
func New(filePath string) (*Registry, error) {
	r := &Registry{filePath: filePath}
	if err := r.Load(); err != nil {
		return nil, err
	}
	if len(r.entries) == 0 {
		r.entries = DefaultMappings()
		if err := r.Save(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Load reads the mapping file. Missing file leaves the registry empty.
func (r *Registry) Load() error {
	text, err := codec.Fetch(r.filePath, "")
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = r.entries[:0]
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, path, ok := strings.Cut(line, "=")
		if !ok {
			return apierror.Internalf("registry: malformed mapping line %q", line)
		}
		r.entries = append(r.entries, Mapping{Name: name, Path: path})
	}
	return nil
}

// Save writes the mapping file.
func (r *Registry) Save() error {
	r.mu.RLock()
	lines := make([]string, 0, len(r.entries))
	for _, m := range r.entries {
		lines = append(lines, fmt.Sprintf("%s=%s", m.Name, m.Path))
	}
	r.mu.RUnlock()
	return codec.Save(r.filePath, strings.Join(lines, "\n"), "")
}

// Get returns the relative path for a logical name.
func (r *Registry) Get(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.entries {
		if m.Name == name {
			return m.Path, nil
		}
	}
	return "", apierror.Internalf("registry: mapping not found: %s", name)
}

// Exists reports whether a logical name is mapped.
func (r *Registry) Exists(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// Add registers a new mapping and persists the table.
func (r *Registry) Add(name, path string) error {
	if r.Exists(name) {
		return apierror.Conflictf("registry: mapping already exists: %s", name)
	}
	r.mu.Lock()
	r.entries = append(r.entries, Mapping{Name: name, Path: path})
	r.mu.Unlock()
	return r.Save()
}

// Update changes the path of an existing mapping and persists the table.
func (r *Registry) Update(name, path string) error {
	r.mu.Lock()
	found := false
	for i := range r.entries {
		if r.entries[i].Name == name {
			r.entries[i].Path = path
			found = true
			break
		}
	}
	r.mu.Unlock()
	if !found {
		return apierror.Internalf("registry: mapping not found: %s", name)
	}
	return r.Save()
}

// Remove deletes a mapping and persists the table.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	found := false
	for i := range r.entries {
		if r.entries[i].Name == name {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			found = true
			break
		}
	}
	r.mu.Unlock()
	if !found {
		return apierror.Internalf("registry: mapping not found: %s", name)
	}
	return r.Save()
}

package component

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/c360/sitekit/errors"
)

// Loader produces the implementation of one variant of a type. It runs once
// per (section, componentName) because resolver results are cached.
type Loader func(ctx context.Context, name ParsedName) (Renderable, error)

// Registry is the static catalog of component types, sections and loaders.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]Descriptor
	sections map[string]struct{}
	loaders  map[string]Loader
}

// NewRegistry creates a registry with the default section registered.
func NewRegistry() *Registry {
	return &Registry{
		types:    make(map[string]Descriptor),
		sections: map[string]struct{}{DefaultSection: {}},
		loaders:  make(map[string]Loader),
	}
}

// Register adds a component type. TypeIDs are unique.
func (r *Registry) Register(d Descriptor) error {
	if d.TypeID == "" || d.TypeID == UnknownType {
		return errors.WrapInvalid(fmt.Errorf("type id %q", d.TypeID), "Registry", "Register", "type id validation")
	}
	if d.StorageSubPath == "" {
		return errors.WrapInvalid(fmt.Errorf("type %s has no storage sub-path", d.TypeID),
			"Registry", "Register", "storage path validation")
	}
	if d.DefaultVariantName == "" {
		d.DefaultVariantName = NormalizeName(d.TypeID, 1)
	}
	if d.DisplayName == "" {
		d.DisplayName = d.TypeID
	}
	d.DeepMergeKeys = slices.Clone(d.DeepMergeKeys)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[d.TypeID]; exists {
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrDuplicateType, d.TypeID),
			"Registry", "Register", "duplicate type check")
	}
	r.types[d.TypeID] = d
	return nil
}

// RegisterSection adds a section namespace.
func (r *Registry) RegisterSection(section string) error {
	if section == "" {
		return errors.WrapInvalid(errors.ErrUnknownSection, "Registry", "RegisterSection", "section validation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sections[section] = struct{}{}
	return nil
}

// RegisterLoader binds the implementation loader for a registered type.
func (r *Registry) RegisterLoader(typeID string, loader Loader) error {
	if loader == nil {
		return errors.WrapInvalid(fmt.Errorf("nil loader for %s", typeID), "Registry", "RegisterLoader", "loader validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[typeID]; !ok {
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrUnknownType, typeID),
			"Registry", "RegisterLoader", "type lookup")
	}
	r.loaders[typeID] = loader
	return nil
}

// Describe returns the descriptor for typeID.
func (r *Registry) Describe(typeID string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[typeID]
	if ok {
		d.DeepMergeKeys = slices.Clone(d.DeepMergeKeys)
	}
	return d, ok
}

// IsValidType reports whether typeID is registered.
func (r *Registry) IsValidType(typeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[typeID]
	return ok
}

// IsValidSection reports whether section is registered.
func (r *Registry) IsValidSection(section string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sections[section]
	return ok
}

// Loader returns the loader bound to typeID.
func (r *Registry) Loader(typeID string) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loaders[typeID]
	return l, ok
}

// Types returns all descriptors ordered by type id.
func (r *Registry) Types() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.types))
	for _, id := range slices.Sorted(maps.Keys(r.types)) {
		out = append(out, r.types[id])
	}
	return out
}

// Sections returns the registered sections in sorted order.
func (r *Registry) Sections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.sections))
}

// DefaultData returns a fresh default configuration for typeID. Unknown
// types and types without a factory yield an empty, non-nil map.
func (r *Registry) DefaultData(typeID string) map[string]any {
	d, ok := r.Describe(typeID)
	if !ok || d.DefaultData == nil {
		return map[string]any{}
	}
	data := d.DefaultData()
	if data == nil {
		return map[string]any{}
	}
	return data
}

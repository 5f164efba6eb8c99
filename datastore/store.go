package datastore

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/metric"
	"github.com/c360/sitekit/pkg/datamap"
)

// Op names a kind of store mutation.
type Op string

// Delta operations.
const (
	OpSeed    Op = "seed"
	OpSet     Op = "set"
	OpUpdate  Op = "update"
	OpPage    Op = "page"
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpReorder Op = "reorder"
)

// Delta describes one committed mutation.
type Delta struct {
	Seq        uint64         `json:"seq"`
	Op         Op             `json:"op"`
	Page       string         `json:"page,omitempty"`
	TypeID     string         `json:"type,omitempty"`
	InstanceID string         `json:"id,omitempty"`
	Path       string         `json:"path,omitempty"`
	Value      any            `json:"value,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Order      []string       `json:"order,omitempty"`
}

// IsZero reports whether the delta is the empty no-op result.
func (d Delta) IsZero() bool {
	return d.Seq == 0
}

// Store is the editor state of one tenant.
type Store struct {
	registry *component.Registry
	logger   *slog.Logger
	metrics  *metric.Metrics

	mu      sync.Mutex
	data    map[string]map[string]map[string]any
	pages   map[string][]component.Instance
	current string
	seq     uint64

	subMu  sync.RWMutex
	subs   map[uint64]chan Delta
	nextID uint64
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics counts deltas by operation.
func WithMetrics(metrics *metric.Metrics) Option {
	return func(s *Store) {
		s.metrics = metrics
	}
}

// New creates an empty store. registry supplies default data and may be nil.
func New(registry *component.Registry, opts ...Option) *Store {
	s := &Store{
		registry: registry,
		logger:   slog.Default().With("component", "datastore"),
		data:     make(map[string]map[string]map[string]any),
		pages:    make(map[string][]component.Instance),
		subs:     make(map[uint64]chan Delta),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) defaults(typeID string) map[string]any {
	if s.registry == nil {
		return map[string]any{}
	}
	return s.registry.DefaultData(typeID)
}

// lookup must be called with mu held.
func (s *Store) lookup(typeID, instanceID string) (map[string]any, bool) {
	byID, ok := s.data[typeID]
	if !ok {
		return nil, false
	}
	d, ok := byID[instanceID]
	return d, ok
}

// put must be called with mu held. data is owned by the store afterwards.
func (s *Store) put(typeID, instanceID string, data map[string]any) {
	byID, ok := s.data[typeID]
	if !ok {
		byID = make(map[string]map[string]any)
		s.data[typeID] = byID
	}
	byID[instanceID] = data
}

// commit assigns the next sequence number and publishes d. Must be called with mu held.
func (s *Store) commit(d Delta) Delta {
	s.seq++
	d.Seq = s.seq
	s.metrics.RecordDelta(string(d.Op))
	s.publish(d)
	return d
}

// EnsureVariant seeds an instance when it has no data yet. initial is used
// when non-empty, otherwise the type's defaults. A second call for an
// instance that already holds data is a no-op and returns a zero Delta.
func (s *Store) EnsureVariant(typeID, instanceID string, initial map[string]any) Delta {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.lookup(typeID, instanceID); ok && len(existing) > 0 {
		return Delta{}
	}

	seed := datamap.Copy(initial)
	if len(initial) == 0 {
		seed = s.defaults(typeID)
	}
	s.put(typeID, instanceID, seed)
	return s.commit(Delta{Op: OpSeed, TypeID: typeID, InstanceID: instanceID, Data: datamap.Copy(seed)})
}

// GetData returns a copy of the instance data, or the type's defaults when
// the instance was never seeded. The result is never nil.
func (s *Store) GetData(typeID, instanceID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.lookup(typeID, instanceID); ok {
		return datamap.Copy(d)
	}
	return s.defaults(typeID)
}

// Snapshot returns the store-wide data of an instance, the third merge layer.
func (s *Store) Snapshot(typeID, instanceID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.lookup(typeID, instanceID)
	if !ok {
		return nil, false
	}
	return datamap.Copy(d), true
}

// Current returns the data held by the current page's list entry, the
// fourth merge layer.
func (s *Store) Current(typeID, instanceID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(s.current, instanceID)
	if i < 0 {
		return nil, false
	}
	inst := s.pages[s.current][i]
	if inst.Type != typeID || inst.Data == nil {
		return nil, false
	}
	return datamap.Copy(inst.Data), true
}

// SetData replaces the instance data and mirrors it into the current page list.
func (s *Store) SetData(typeID, instanceID string, data map[string]any) Delta {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := datamap.Copy(data)
	s.put(typeID, instanceID, stored)
	s.syncCurrent(typeID, instanceID, stored)
	return s.commit(Delta{Op: OpSet, Page: s.current, TypeID: typeID, InstanceID: instanceID, Data: datamap.Copy(stored)})
}

// UpdateByPath sets one dot-path field of the instance data, creating
// intermediate objects. An instance without data starts from its defaults.
func (s *Store) UpdateByPath(typeID, instanceID, path string, value any) (Delta, error) {
	if _, err := datamap.SplitPath(path); err != nil {
		return Delta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base, ok := s.lookup(typeID, instanceID)
	if !ok {
		base = s.defaults(typeID)
	}
	updated := datamap.Copy(base)
	if err := datamap.Set(updated, path, datamap.CopyValue(value)); err != nil {
		return Delta{}, err
	}

	s.put(typeID, instanceID, updated)
	s.syncCurrent(typeID, instanceID, updated)
	return s.commit(Delta{
		Op:         OpUpdate,
		Page:       s.current,
		TypeID:     typeID,
		InstanceID: instanceID,
		Path:       path,
		Value:      datamap.CopyValue(value),
	}), nil
}

// syncCurrent mirrors data into the current page list entry. Must be called with mu held.
func (s *Store) syncCurrent(typeID, instanceID string, data map[string]any) {
	i := s.indexOf(s.current, instanceID)
	if i < 0 || s.pages[s.current][i].Type != typeID {
		return
	}
	s.pages[s.current][i].Data = datamap.Copy(data)
}

// indexOf must be called with mu held.
func (s *Store) indexOf(slug, instanceID string) int {
	return slices.IndexFunc(s.pages[slug], func(inst component.Instance) bool {
		return inst.ID == instanceID
	})
}

func copyInstance(inst component.Instance) component.Instance {
	out := inst
	out.Data = datamap.Copy(inst.Data)
	if inst.Layout != nil {
		l := *inst.Layout
		out.Layout = &l
	}
	return out
}

func copyInstances(list []component.Instance) []component.Instance {
	out := make([]component.Instance, len(list))
	for i, inst := range list {
		out[i] = copyInstance(inst)
	}
	return out
}

// SetPageComponents installs the component list of a page.
func (s *Store) SetPageComponents(slug string, list []component.Instance) Delta {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages[slug] = copyInstances(list)
	order := make([]string, len(list))
	for i, inst := range list {
		order[i] = inst.ID
	}
	return s.commit(Delta{Op: OpPage, Page: slug, Order: order})
}

// PageComponents returns a copy of the page's component list.
func (s *Store) PageComponents(slug string) ([]component.Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.pages[slug]
	if !ok {
		return nil, false
	}
	return copyInstances(list), true
}

// Instance returns one entry of a page list.
func (s *Store) Instance(slug, instanceID string) (component.Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(slug, instanceID)
	if i < 0 {
		return component.Instance{}, false
	}
	return copyInstance(s.pages[slug][i]), true
}

// SetCurrentPage selects the page whose list receives data writes.
func (s *Store) SetCurrentPage(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = slug
}

// CurrentPage returns the selected page slug.
func (s *Store) CurrentPage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// AddInstance appends inst to a page with the next free position and seeds
// its data.
func (s *Store) AddInstance(slug string, inst component.Instance) (component.Instance, Delta, error) {
	if inst.ID == "" || inst.Type == "" {
		return component.Instance{}, Delta{}, errors.WrapInvalid(
			fmt.Errorf("instance requires id and type"), "Store", "AddInstance", "instance validation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(slug, inst.ID) >= 0 {
		return component.Instance{}, Delta{}, errors.WrapInvalid(
			fmt.Errorf("instance %s already on page %s", inst.ID, slug), "Store", "AddInstance", "duplicate check")
	}

	next := 0
	for _, existing := range s.pages[slug] {
		next = max(next, existing.Position+1)
	}
	added := copyInstance(inst)
	added.Position = next
	if len(added.Data) == 0 {
		added.Data = s.defaults(inst.Type)
	}

	s.pages[slug] = append(s.pages[slug], added)
	if existing, ok := s.lookup(inst.Type, inst.ID); !ok || len(existing) == 0 {
		s.put(inst.Type, inst.ID, datamap.Copy(added.Data))
	}

	d := s.commit(Delta{Op: OpAdd, Page: slug, TypeID: added.Type, InstanceID: added.ID, Data: datamap.Copy(added.Data)})
	return copyInstance(added), d, nil
}

// RemoveInstance drops an instance from a page. Positions of the remaining
// instances are left as they are.
func (s *Store) RemoveInstance(slug, instanceID string) (Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(slug, instanceID)
	if i < 0 {
		return Delta{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s on page %s", errors.ErrInstanceMissing, instanceID, slug),
			"Store", "RemoveInstance", "instance lookup")
	}
	removed := s.pages[slug][i]
	s.pages[slug] = slices.Delete(s.pages[slug], i, i+1)
	if byID, ok := s.data[removed.Type]; ok {
		delete(byID, instanceID)
	}
	return s.commit(Delta{Op: OpRemove, Page: slug, TypeID: removed.Type, InstanceID: instanceID}), nil
}

// Reorder assigns positions 0..n-1 following order, which must name every
// instance on the page exactly once.
func (s *Store) Reorder(slug string, order []string) (Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.pages[slug]
	if len(order) != len(list) {
		return Delta{}, errors.WrapInvalid(
			fmt.Errorf("order has %d ids, page %s has %d instances", len(order), slug, len(list)),
			"Store", "Reorder", "order validation")
	}

	byID := make(map[string]component.Instance, len(list))
	for _, inst := range list {
		byID[inst.ID] = inst
	}
	reordered := make([]component.Instance, 0, len(order))
	for pos, id := range order {
		inst, ok := byID[id]
		if !ok {
			return Delta{}, errors.WrapInvalid(
				fmt.Errorf("%w: %s on page %s", errors.ErrInstanceMissing, id, slug),
				"Store", "Reorder", "order validation")
		}
		delete(byID, id)
		inst.Position = pos
		reordered = append(reordered, inst)
	}

	s.pages[slug] = reordered
	return s.commit(Delta{Op: OpReorder, Page: slug, Order: slices.Clone(order)}), nil
}

// Seq returns the sequence number of the last committed delta.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

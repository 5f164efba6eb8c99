package editor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/datastore"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/merge"
	"github.com/c360/sitekit/metric"
	"github.com/c360/sitekit/page"
	"github.com/c360/sitekit/tenantstore"
)

// Session is the editor state of one tenant. All methods are safe for
// concurrent use; operations on a session are serialized.
type Session struct {
	tenantID string

	registry  *component.Registry
	resolver  *component.Resolver
	assembler *page.Assembler
	persist   tenantstore.Store
	fallbacks *component.FallbackFactory
	logger    *slog.Logger
	metrics   *metric.Metrics

	mu     sync.Mutex
	blob   *page.TenantBlob
	store  *datastore.Store
	engine *merge.Engine
	opened map[string]bool

	stopForward func()
}

// TenantID returns the tenant the session edits.
func (s *Session) TenantID() string {
	return s.tenantID
}

// Store exposes the session's data store.
func (s *Session) Store() *datastore.Store {
	return s.store
}

// Subscribe streams the session's deltas.
func (s *Session) Subscribe(buffer int) (<-chan datastore.Delta, func()) {
	return s.store.Subscribe(buffer)
}

// openLocked installs slug into the store on first use and makes it the
// current page. Must be called with mu held.
func (s *Session) openLocked(slug string) {
	if !s.opened[slug] {
		list := s.assembler.Assemble(s.blob, slug)
		s.store.SetPageComponents(slug, list)
		for _, inst := range list {
			s.store.EnsureVariant(inst.Type, inst.ID, inst.Data)
		}
		s.opened[slug] = true
		s.logger.Debug("Opened page", "page", slug, "components", len(list))
	}
	s.store.SetCurrentPage(slug)
}

// Open loads slug and returns its ordered component list. A slug the tenant
// has never saved opens as an empty page.
func (s *Session) Open(_ context.Context, slug string) ([]component.Instance, error) {
	if err := tenantstore.ValidateSlug(slug); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.openLocked(slug)
	list, _ := s.store.PageComponents(slug)
	return list, nil
}

// instanceLocked opens slug and returns one of its instances. Must be called with mu held.
func (s *Session) instanceLocked(slug, id string) (component.Instance, error) {
	if err := tenantstore.ValidateSlug(slug); err != nil {
		return component.Instance{}, err
	}
	s.openLocked(slug)
	inst, ok := s.store.Instance(slug, id)
	if !ok {
		return component.Instance{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s on page %s", errors.ErrInstanceMissing, id, slug),
			"Session", "Instance", "instance lookup")
	}
	return inst, nil
}

func (s *Session) mergeLocked(ctx context.Context, slug string, inst component.Instance, props map[string]any) merge.Configuration {
	return s.engine.Merge(ctx, merge.Request{
		TypeID:        inst.Type,
		InstanceID:    inst.ID,
		ComponentName: inst.ComponentName,
		PageSlug:      slug,
		Tenant:        s.blob,
		Props:         props,
	})
}

// Config returns the merged configuration of one instance.
func (s *Session) Config(ctx context.Context, slug, id string, props map[string]any) (merge.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.instanceLocked(slug, id)
	if err != nil {
		return nil, err
	}
	return s.mergeLocked(ctx, slug, inst, props), nil
}

// Render writes the markup of every visible component of slug in order. A
// component whose render fails is replaced by an error placeholder.
func (s *Session) Render(ctx context.Context, slug string, w io.Writer) error {
	if err := tenantstore.ValidateSlug(slug); err != nil {
		return err
	}

	s.mu.Lock()
	s.openLocked(slug)
	list, _ := s.store.PageComponents(slug)
	configs := make([]merge.Configuration, len(list))
	for i, inst := range list {
		configs[i] = s.mergeLocked(ctx, slug, inst, nil)
	}
	s.mu.Unlock()

	for i, inst := range list {
		impl := s.resolver.Resolve(ctx, component.DefaultSection, inst.ComponentName)

		var buf bytes.Buffer
		if err := component.RenderVisible(&buf, impl, configs[i]); err != nil {
			s.logger.Warn("Component render failed", "page", slug, "id", inst.ID, "error", err)
			buf.Reset()
			if err := s.fallbacks.Error(err.Error(), inst.ComponentName).Render(&buf, nil); err != nil {
				return errors.Wrap(err, "Session", "Render", "render error placeholder")
			}
		}
		if _, err := buf.WriteTo(w); err != nil {
			return errors.WrapTransient(err, "Session", "Render", "write output")
		}
	}
	return nil
}

// UpdateByPath sets one field of an instance's data.
func (s *Session) UpdateByPath(_ context.Context, slug, id, path string, value any) (datastore.Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.instanceLocked(slug, id)
	if err != nil {
		return datastore.Delta{}, err
	}
	return s.store.UpdateByPath(inst.Type, inst.ID, path, value)
}

// SetData replaces an instance's data.
func (s *Session) SetData(_ context.Context, slug, id string, data map[string]any) (datastore.Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.instanceLocked(slug, id)
	if err != nil {
		return datastore.Delta{}, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return s.store.SetData(inst.Type, inst.ID, data), nil
}

// Add appends a new section to slug. An empty componentName selects the
// type's default variant; nil data selects the type's defaults.
func (s *Session) Add(_ context.Context, slug, typeID, componentName string, data map[string]any) (component.Instance, datastore.Delta, error) {
	desc, ok := s.registry.Describe(typeID)
	if !ok {
		return component.Instance{}, datastore.Delta{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownType, typeID), "Session", "Add", "type lookup")
	}
	if componentName == "" {
		componentName = desc.DefaultVariantName
	}
	parsed, err := component.ParseName(componentName)
	if err != nil {
		return component.Instance{}, datastore.Delta{}, errors.WrapInvalid(err, "Session", "Add", "component name")
	}
	if parsed.BaseType != typeID {
		return component.Instance{}, datastore.Delta{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s is not a %s variant", errors.ErrInvalidComponentName, componentName, typeID),
			"Session", "Add", "component name")
	}
	if err := tenantstore.ValidateSlug(slug); err != nil {
		return component.Instance{}, datastore.Delta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.openLocked(slug)
	return s.store.AddInstance(slug, component.Instance{
		ID:            typeID + "-" + uuid.NewString(),
		Type:          typeID,
		ComponentName: componentName,
		Data:          data,
	})
}

// Remove deletes a section from slug.
func (s *Session) Remove(_ context.Context, slug, id string) (datastore.Delta, error) {
	if err := tenantstore.ValidateSlug(slug); err != nil {
		return datastore.Delta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.openLocked(slug)
	return s.store.RemoveInstance(slug, id)
}

// Reorder rearranges the sections of slug.
func (s *Session) Reorder(_ context.Context, slug string, order []string) (datastore.Delta, error) {
	if err := tenantstore.ValidateSlug(slug); err != nil {
		return datastore.Delta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.openLocked(slug)
	return s.store.Reorder(slug, order)
}

// Save persists slug's whole component list, with each instance's data taken
// from the store. On failure nothing in the session changes and the same
// save can be retried.
func (s *Session) Save(ctx context.Context, slug string) ([]component.Instance, error) {
	if err := tenantstore.ValidateSlug(slug); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.openLocked(slug)
	list, _ := s.store.PageComponents(slug)
	for i := range list {
		list[i].Data = s.store.GetData(list[i].Type, list[i].ID)
	}

	if err := s.persist.SavePage(ctx, s.tenantID, slug, list); err != nil {
		s.metrics.RecordSave("failure")
		s.logger.Error("Failed to save page", "page", slug, "error", err)
		return nil, err
	}
	s.metrics.RecordSave("success")

	s.blob.SetPage(slug, list)
	s.logger.Info("Saved page", "page", slug, "components", len(list))
	return list, nil
}

// close stops delta forwarding and ends every live subscription.
func (s *Session) close() {
	if s.stopForward != nil {
		s.stopForward()
	}
	s.store.Close()
}

package tenantstore

import (
	"context"
	"encoding/json"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/page"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// LoadSeedFile reads a JSON object mapping tenant ids to documents.
func (m *MemoryStore) LoadSeedFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapFatal(err, "MemoryStore", "LoadSeedFile", "read seed file")
	}
	var docs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &docs); err != nil {
		return errors.WrapInvalid(err, "MemoryStore", "LoadSeedFile", "decode seed file")
	}
	for _, id := range slices.Sorted(maps.Keys(docs)) {
		if err := m.Put(context.Background(), id, docs[id]); err != nil {
			return err
		}
	}
	return nil
}

// Put stores a raw document after checking that it parses.
func (m *MemoryStore) Put(_ context.Context, tenantID string, raw []byte) error {
	if err := ValidateTenantID(tenantID); err != nil {
		return err
	}
	if _, err := page.ParseTenantComponentBlob(raw); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[tenantID] = slices.Clone(raw)
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, tenantID string) (*page.TenantBlob, error) {
	m.mu.RLock()
	raw, ok := m.docs[tenantID]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(tenantID)
	}
	return page.ParseTenantComponentBlob(raw)
}

// SavePage implements Store. Saving to an unknown tenant creates it.
func (m *MemoryStore) SavePage(_ context.Context, tenantID, slug string, list []component.Instance) error {
	if err := validateSave(tenantID, slug, list); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := applyPage(m.docs[tenantID], slug, list)
	if err != nil {
		return err
	}
	m.docs[tenantID] = next
	return nil
}

// Tenants implements Store.
func (m *MemoryStore) Tenants(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.docs)), nil
}

// Raw returns a copy of the stored document of tenantID.
func (m *MemoryStore) Raw(tenantID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.docs[tenantID]
	if !ok {
		return nil, notFound(tenantID)
	}
	return slices.Clone(raw), nil
}

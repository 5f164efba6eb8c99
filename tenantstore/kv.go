package tenantstore

import (
	"context"
	"log/slog"
	"slices"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/natsclient"
	"github.com/c360/sitekit/page"
)

// DefaultBucket holds one key per tenant.
const DefaultBucket = "sitekit_tenants"

// KVStore keeps documents in a NATS JetStream key-value bucket. Saves are
// read-modify-write cycles guarded by the entry revision.
type KVStore struct {
	kv     *natsclient.KVStore
	logger *slog.Logger
}

// NewKVStore creates or opens bucket and returns a store over it.
func NewKVStore(ctx context.Context, client *natsclient.Client, bucket string) (*KVStore, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "KVStore", "NewKVStore", "nats client cannot be nil")
	}
	if bucket == "" {
		bucket = DefaultBucket
	}

	kvBucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Tenant component documents",
		History:     10,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "KVStore", "NewKVStore", "create KV bucket")
	}

	return &KVStore{
		kv:     client.NewKVStore(kvBucket),
		logger: slog.Default().With("component", "tenantstore", "backend", "kv", "bucket", bucket),
	}, nil
}

// Load implements Store.
func (s *KVStore) Load(ctx context.Context, tenantID string) (*page.TenantBlob, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	entry, err := s.kv.Get(ctx, tenantID)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, notFound(tenantID)
		}
		return nil, errors.WrapTransient(err, "KVStore", "Load", "get from KV")
	}
	return page.ParseTenantComponentBlob(entry.Value)
}

// Put implements Seeder.
func (s *KVStore) Put(ctx context.Context, tenantID string, raw []byte) error {
	if err := ValidateTenantID(tenantID); err != nil {
		return err
	}
	if _, err := page.ParseTenantComponentBlob(raw); err != nil {
		return err
	}
	if _, err := s.kv.Put(ctx, tenantID, slices.Clone(raw)); err != nil {
		return errors.WrapTransient(err, "KVStore", "Put", "put to KV")
	}
	return nil
}

// SavePage implements Store.
func (s *KVStore) SavePage(ctx context.Context, tenantID, slug string, list []component.Instance) error {
	if err := validateSave(tenantID, slug, list); err != nil {
		return err
	}

	err := s.kv.UpdateWithRetry(ctx, tenantID, func(current []byte) ([]byte, error) {
		return applyPage(current, slug, list)
	})
	switch {
	case err == nil:
		s.logger.Debug("Saved page", "tenant", tenantID, "page", slug, "components", len(list))
		return nil
	case errors.Is(err, natsclient.ErrKVMaxRetriesExceeded):
		return errors.WrapTransient(errors.Join(errors.ErrSaveConflict, err), "KVStore", "SavePage", "revision conflict")
	case errors.IsInvalid(err):
		return err
	default:
		return errors.WrapTransient(err, "KVStore", "SavePage", "update in KV")
	}
}

// Tenants implements Store.
func (s *KVStore) Tenants(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "KVStore", "Tenants", "list KV keys")
	}
	slices.Sort(keys)
	return keys, nil
}

// Package tenantstore persists tenant component documents. Backends share
// one contract: Load returns the decoded document of a tenant and SavePage
// replaces one page's component list as a whole, leaving the stored
// document untouched when the save fails.
package tenantstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/page"
)

// Store is a tenant document backend.
type Store interface {
	// Load returns the tenant's document or an error wrapping ErrTenantNotFound.
	Load(ctx context.Context, tenantID string) (*page.TenantBlob, error)
	// SavePage replaces the component list of one page.
	SavePage(ctx context.Context, tenantID, slug string, list []component.Instance) error
	// Tenants lists the stored tenant ids.
	Tenants(ctx context.Context) ([]string, error)
}

// Seeder is implemented by backends that accept raw documents.
type Seeder interface {
	Put(ctx context.Context, tenantID string, raw []byte) error
}

var (
	tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,62}$`)
	slugPattern     = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_/-]{0,127}$`)
)

// ValidateTenantID checks that id can be used as a storage key.
func ValidateTenantID(id string) error {
	if !tenantIDPattern.MatchString(id) {
		return errors.WrapInvalid(fmt.Errorf("%w: tenant id %q", errors.ErrInvalidData, id),
			"TenantStore", "ValidateTenantID", "tenant id validation")
	}
	return nil
}

// ValidateSlug checks a page slug.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return errors.WrapInvalid(fmt.Errorf("%w: page slug %q", errors.ErrInvalidData, slug),
			"TenantStore", "ValidateSlug", "slug validation")
	}
	return nil
}

func notFound(tenantID string) error {
	return fmt.Errorf("%w: %s", errors.ErrTenantNotFound, tenantID)
}

// applyPage decodes current (which may be empty), replaces slug and
// encodes the document again.
func applyPage(current []byte, slug string, list []component.Instance) ([]byte, error) {
	blob, err := page.ParseTenantComponentBlob(current)
	if err != nil {
		return nil, err
	}
	blob.SetPage(slug, list)
	return json.Marshal(blob)
}

func validateSave(tenantID, slug string, list []component.Instance) error {
	if err := ValidateTenantID(tenantID); err != nil {
		return err
	}
	if err := ValidateSlug(slug); err != nil {
		return err
	}
	seen := make(map[string]bool, len(list))
	for _, inst := range list {
		if inst.ID == "" || inst.Type == "" {
			return errors.WrapInvalid(fmt.Errorf("%w: instance without id or type", errors.ErrInvalidData),
				"TenantStore", "SavePage", "instance validation")
		}
		if seen[inst.ID] {
			return errors.WrapInvalid(fmt.Errorf("%w: duplicate instance id %s", errors.ErrInvalidData, inst.ID),
				"TenantStore", "SavePage", "instance validation")
		}
		seen[inst.ID] = true
		if inst.Layout != nil {
			if err := inst.Layout.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

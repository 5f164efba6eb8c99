// Package page turns a tenant's persisted component document into ordered,
// normalized page component lists, and back.
package page

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/pkg/datamap"
)

const (
	componentsKey = "components"
	settingsKey   = "componentSettings"
)

// TenantBlob is the decoded component document of one tenant.
type TenantBlob struct {
	// Pages holds the persisted records per page slug, in stored order.
	Pages map[string][]component.Record
	// Extra keeps top-level fields the editor does not interpret so that a
	// save writes them back unchanged.
	Extra map[string]json.RawMessage
}

// NewTenantBlob returns an empty blob.
func NewTenantBlob() *TenantBlob {
	return &TenantBlob{
		Pages: make(map[string][]component.Record),
		Extra: make(map[string]json.RawMessage),
	}
}

// ParseTenantComponentBlob decodes a tenant document. The components field
// may be array-style, [[slug, [records...]], ...], or object-style, where
// each slug maps to {components: [...]} or directly to a record list. Legacy
// componentSettings entries whose id is not on the page are appended in id
// order; for ids already present they fill in missing data.
func ParseTenantComponentBlob(raw []byte) (*TenantBlob, error) {
	blob := NewTenantBlob()
	if len(raw) == 0 {
		return blob, nil
	}

	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"TenantBlob", "Parse", "document decode")
	}

	switch doc := root.(type) {
	case nil:
		return blob, nil
	case []any:
		if err := blob.parseComponents(doc); err != nil {
			return nil, err
		}
		return blob, nil
	case map[string]any:
		if comps, ok := doc[componentsKey]; ok && comps != nil {
			if err := blob.parseComponents(comps); err != nil {
				return nil, err
			}
		}
		if settings, ok := doc[settingsKey].(map[string]any); ok {
			if err := blob.applySettings(settings); err != nil {
				return nil, err
			}
		}
		var extra map[string]json.RawMessage
		if err := json.Unmarshal(raw, &extra); err != nil {
			return nil, errors.WrapInvalid(err, "TenantBlob", "Parse", "extra fields decode")
		}
		delete(extra, componentsKey)
		delete(extra, settingsKey)
		blob.Extra = extra
		return blob, nil
	default:
		return nil, errors.WrapInvalid(fmt.Errorf("%w: document is %T", errors.ErrParsingFailed, root),
			"TenantBlob", "Parse", "document shape")
	}
}

func invalidShape(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrParsingFailed}, args...)...),
		"TenantBlob", "Parse", "components shape")
}

func (b *TenantBlob) parseComponents(v any) error {
	switch comps := v.(type) {
	case []any:
		for i, entry := range comps {
			pair, ok := entry.([]any)
			if !ok || len(pair) != 2 {
				return invalidShape("entry %d is not a [slug, components] pair", i)
			}
			slug, ok := pair[0].(string)
			if !ok || slug == "" {
				return invalidShape("entry %d has no slug", i)
			}
			list, ok := pair[1].([]any)
			if !ok && pair[1] != nil {
				return invalidShape("entry %d (%s) components are %T", i, slug, pair[1])
			}
			if err := b.addRecords(slug, list); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, slug := range slices.Sorted(maps.Keys(comps)) {
			var list []any
			switch page := comps[slug].(type) {
			case []any:
				list = page
			case map[string]any:
				inner, ok := page[componentsKey].([]any)
				if !ok && page[componentsKey] != nil {
					return invalidShape("page %s components are %T", slug, page[componentsKey])
				}
				list = inner
			case nil:
			default:
				return invalidShape("page %s is %T", slug, page)
			}
			if err := b.addRecords(slug, list); err != nil {
				return err
			}
		}
	default:
		return invalidShape("components field is %T", v)
	}
	return nil
}

func (b *TenantBlob) addRecords(slug string, list []any) error {
	records := b.Pages[slug]
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return invalidShape("page %s record %d is %T", slug, i, item)
		}
		records = append(records, recordFromMap(m))
	}
	if records == nil {
		records = []component.Record{}
	}
	b.Pages[slug] = records
	return nil
}

func (b *TenantBlob) applySettings(settings map[string]any) error {
	for _, slug := range slices.Sorted(maps.Keys(settings)) {
		byID, ok := settings[slug].(map[string]any)
		if !ok {
			return invalidShape("componentSettings for %s is %T", slug, settings[slug])
		}
		records := b.Pages[slug]
		for _, id := range slices.Sorted(maps.Keys(byID)) {
			entry, _ := byID[id].(map[string]any)
			rec := settingsRecord(id, entry)

			i := slices.IndexFunc(records, func(r component.Record) bool { return r.ID == id })
			if i < 0 {
				records = append(records, rec)
				continue
			}
			if len(records[i].Data) == 0 {
				records[i].Data = rec.Data
			}
		}
		b.Pages[slug] = records
	}
	return nil
}

// settingsRecord reads a legacy settings entry, which is either a record
// shape or the bare data object.
func settingsRecord(id string, entry map[string]any) component.Record {
	_, hasType := entry["type"]
	_, hasName := entry["componentName"]
	_, hasData := entry["data"]
	if hasType || hasName || hasData {
		rec := recordFromMap(entry)
		rec.ID = id
		return rec
	}
	return component.Record{ID: id, Data: entry}
}

func recordFromMap(m map[string]any) component.Record {
	rec := component.Record{
		ID:            stringField(m["id"]),
		Type:          stringField(m["type"]),
		ComponentName: stringField(m["componentName"]),
	}
	if data, ok := m["data"].(map[string]any); ok {
		rec.Data = data
	}
	if pos, ok := intField(m["position"]); ok {
		rec.Position = &pos
	}
	if l, ok := m["layout"].(map[string]any); ok {
		row, _ := intField(l["row"])
		col, _ := intField(l["col"])
		span, _ := intField(l["span"])
		if span != 1 {
			span = 2
		}
		rec.Layout = &component.Layout{Row: row, Col: col, Span: span}
	}
	return rec
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func intField(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	}
	return 0, false
}

// Slugs returns the page slugs in sorted order.
func (b *TenantBlob) Slugs() []string {
	if b == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(b.Pages))
}

// HasPage reports whether the blob holds a list for slug.
func (b *TenantBlob) HasPage(slug string) bool {
	if b == nil {
		return false
	}
	_, ok := b.Pages[slug]
	return ok
}

// Lookup returns the tenant-saved data of a component, the second merge
// layer. An id match anywhere wins over a (type, componentName) match;
// within each pass the given page is searched before the others.
func (b *TenantBlob) Lookup(slug, typeID, componentName, instanceID string) (map[string]any, bool) {
	if b == nil {
		return nil, false
	}

	order := []string{slug}
	for _, s := range b.Slugs() {
		if s != slug {
			order = append(order, s)
		}
	}

	if instanceID != "" {
		for _, s := range order {
			for _, rec := range b.Pages[s] {
				if rec.ID == instanceID && rec.Data != nil {
					return rec.Data, true
				}
			}
		}
	}

	if componentName == "" {
		return nil, false
	}
	for _, s := range order {
		for _, rec := range b.Pages[s] {
			if rec.ComponentName != componentName || rec.Data == nil {
				continue
			}
			if rec.Type == typeID || rec.Type == "" || rec.Type == component.UnknownType {
				return rec.Data, true
			}
		}
	}
	return nil, false
}

// SetPage replaces a page's records with the given instances.
func (b *TenantBlob) SetPage(slug string, list []component.Instance) {
	records := make([]component.Record, len(list))
	for i, inst := range list {
		pos := inst.Position
		records[i] = component.Record{
			ID:            inst.ID,
			Type:          inst.Type,
			ComponentName: inst.ComponentName,
			Data:          inst.Data,
			Position:      &pos,
			Layout:        inst.Layout,
		}
	}
	b.Pages[slug] = records
}

// MarshalJSON writes the blob in object style. Legacy settings are not
// written back; parsing already folded them into the page lists.
func (b *TenantBlob) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Extra)+1)
	for k, v := range b.Extra {
		out[k] = v
	}
	pages := make(map[string]any, len(b.Pages))
	for slug, records := range b.Pages {
		pages[slug] = map[string]any{componentsKey: records}
	}
	out[componentsKey] = pages
	return json.Marshal(out)
}

// Clone returns a deep copy of the blob.
func (b *TenantBlob) Clone() *TenantBlob {
	out := NewTenantBlob()
	if b == nil {
		return out
	}
	for k, v := range b.Extra {
		out.Extra[k] = slices.Clone(v)
	}
	for slug, records := range b.Pages {
		cp := make([]component.Record, len(records))
		for i, rec := range records {
			if rec.Data != nil {
				rec.Data = datamap.Copy(rec.Data)
			}
			if rec.Position != nil {
				pos := *rec.Position
				rec.Position = &pos
			}
			if rec.Layout != nil {
				l := *rec.Layout
				rec.Layout = &l
			}
			cp[i] = rec
		}
		out.Pages[slug] = cp
	}
	return out
}

// Package merge computes the configuration a component renders with by
// layering, lowest precedence first: type defaults, tenant-saved data, the
// store snapshot, the current page entry and call-site props.
package merge

import (
	"encoding/json"

	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/pkg/datamap"
)

// MergeConfiguration folds layers left to right. Top-level keys listed in
// deepKeys merge recursively, key by key, so a later layer only overrides
// the nested fields it sets; every other key is replaced wholesale. Nil
// layers contribute nothing. Inputs are never modified and the result
// shares no maps or slices with them.
func MergeConfiguration(layers []map[string]any, deepKeys []string) map[string]any {
	deep := make(map[string]bool, len(deepKeys))
	for _, k := range deepKeys {
		deep[k] = true
	}

	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			src, isMap := v.(map[string]any)
			dst, hasMap := out[k].(map[string]any)
			if deep[k] && isMap && hasMap {
				mergeDeep(dst, src)
				continue
			}
			out[k] = datamap.CopyValue(v)
		}
	}
	return out
}

// mergeDeep merges src into dst, which must be owned by the caller.
func mergeDeep(dst, src map[string]any) {
	for k, v := range src {
		srcMap, isMap := v.(map[string]any)
		dstMap, hasMap := dst[k].(map[string]any)
		if isMap && hasMap {
			mergeDeep(dstMap, srcMap)
			continue
		}
		dst[k] = datamap.CopyValue(v)
	}
}

// MergeInto merges layers and decodes the result into T through its JSON
// form, for callers that want a typed view of a configuration.
func MergeInto[T any](layers []map[string]any, deepKeys []string) (T, error) {
	var out T
	merged := MergeConfiguration(layers, deepKeys)

	raw, err := json.Marshal(merged)
	if err != nil {
		return out, errors.WrapInvalid(err, "Merge", "MergeInto", "configuration encode")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.WrapInvalid(err, "Merge", "MergeInto", "configuration decode")
	}
	return out, nil
}

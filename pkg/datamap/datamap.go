// Package datamap provides helpers for the JSON-shaped configuration maps
// that flow through the editor: deep copies and dot-path access.
package datamap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/sitekit/errors"
)

// Copy returns a deep copy of m. Nested maps and slices are copied; scalar
// leaves are shared. A nil map copies to an empty one.
func Copy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CopyValue(v)
	}
	return out
}

// CopyValue deep-copies a single JSON-shaped value.
func CopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Copy(t)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CopyValue(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Copy(val)
		}
		return out
	default:
		return v
	}
}

// SplitPath splits a dot path, rejecting empty paths and empty segments.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidPath, "DataMap", "SplitPath", "empty path")
	}
	parts := strings.Split(path, ".")
	for i, p := range parts {
		if p == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %q has an empty segment at %d", errors.ErrInvalidPath, path, i),
				"DataMap", "SplitPath", "segment validation")
		}
	}
	return parts, nil
}

// Get returns the value at a dot path. Numeric segments index into lists.
func Get(m map[string]any, path string) (any, bool) {
	parts, err := SplitPath(path)
	if err != nil {
		return nil, false
	}
	var cur any = m
	for _, p := range parts {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[p]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, ok := index(p)
			if !ok || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at a dot path, creating intermediate maps. A numeric
// segment on a list addresses an element; the index one past the end
// appends. Intermediate scalars are replaced by maps. m is modified in place.
func Set(m map[string]any, path string, value any) error {
	if m == nil {
		return errors.WrapInvalid(fmt.Errorf("nil target map"), "DataMap", "Set", "target validation")
	}
	parts, err := SplitPath(path)
	if err != nil {
		return err
	}
	_, err = setIn(m, parts, value, path)
	return err
}

// setIn returns the container with value written, which differs from the
// input when a list grows or a scalar is replaced.
func setIn(container any, parts []string, value any, path string) (any, error) {
	p, rest := parts[0], parts[1:]

	switch node := container.(type) {
	case map[string]any:
		if len(rest) == 0 {
			node[p] = value
			return node, nil
		}
		child, err := setIn(node[p], rest, value, path)
		if err != nil {
			return nil, err
		}
		node[p] = child
		return node, nil

	case []map[string]any:
		list := make([]any, len(node))
		for i, v := range node {
			list[i] = v
		}
		return setIn(list, parts, value, path)

	case []any:
		idx, ok := index(p)
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %q: segment %q is not a list index", errors.ErrInvalidPath, path, p),
				"DataMap", "Set", "list indexing")
		}
		if idx > len(node) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %q: index %d out of range for list of %d", errors.ErrInvalidPath, path, idx, len(node)),
				"DataMap", "Set", "list indexing")
		}
		if idx == len(node) {
			node = append(node, nil)
		}
		if len(rest) == 0 {
			node[idx] = value
			return node, nil
		}
		child, err := setIn(node[idx], rest, value, path)
		if err != nil {
			return nil, err
		}
		node[idx] = child
		return node, nil

	default:
		return setIn(make(map[string]any), parts, value, path)
	}
}

func index(segment string) (int, bool) {
	n, err := strconv.Atoi(segment)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

package component

import (
	"fmt"
	"io"

	"github.com/c360/sitekit/errors"
)

// UnknownType is the sentinel type of a record whose real type could not be inferred.
const UnknownType = "unknown"

// DefaultSection is the only section registered out of the box.
const DefaultSection = "homepage"

// DataFactory produces a fresh default configuration for a component type.
type DataFactory func() map[string]any

// Descriptor describes one component type. Descriptors are immutable once
// registered; the registry hands out copies.
type Descriptor struct {
	TypeID             string      `json:"typeId"`
	DisplayName        string      `json:"displayName"`
	StorageSubPath     string      `json:"storageSubPath"`
	DefaultVariantName string      `json:"defaultVariantName"`
	Category           string      `json:"category"`
	DeepMergeKeys      []string    `json:"deepMergeKeys,omitempty"`
	DefaultData        DataFactory `json:"-"`
}

// Layout places an instance on the page grid. Span is 1 (half) or 2 (full width).
type Layout struct {
	Row  int `json:"row"`
	Col  int `json:"col"`
	Span int `json:"span"`
}

// Validate checks the span constraint.
func (l Layout) Validate() error {
	if l.Span != 1 && l.Span != 2 {
		return errors.WrapInvalid(fmt.Errorf("span %d", l.Span), "Layout", "Validate", "span must be 1 or 2")
	}
	if l.Row < 0 || l.Col < 0 {
		return errors.WrapInvalid(fmt.Errorf("row %d col %d", l.Row, l.Col), "Layout", "Validate", "negative grid position")
	}
	return nil
}

// Instance is one placed component on a page.
type Instance struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	ComponentName string         `json:"componentName"`
	Data          map[string]any `json:"data"`
	Position      int            `json:"position"`
	Layout        *Layout        `json:"layout,omitempty"`
}

// Record is a component entry as persisted, before normalization. Any field
// may be missing in records written by older editors.
type Record struct {
	ID            string         `json:"id"`
	Type          string         `json:"type,omitempty"`
	ComponentName string         `json:"componentName,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Position      *int           `json:"position,omitempty"`
	Layout        *Layout        `json:"layout,omitempty"`
}

// Renderable is a resolved component implementation.
type Renderable interface {
	// ComponentName is the variant name the implementation was resolved for.
	ComponentName() string
	// Render writes the component's markup for the merged configuration.
	Render(w io.Writer, cfg map[string]any) error
}

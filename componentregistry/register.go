// Package componentregistry registers the built-in component catalog with a
// component.Registry: the type descriptors, their default data and a
// template-backed loader for every implemented variant.
package componentregistry

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/c360/sitekit/component"
	pkgerrors "github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/pkg/datamap"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the parsed form of catalog.yaml.
type Catalog struct {
	Sections []string    `yaml:"sections"`
	Types    []TypeEntry `yaml:"types"`
}

// TypeEntry declares one component type.
type TypeEntry struct {
	TypeID             string         `yaml:"typeId"`
	DisplayName        string         `yaml:"displayName"`
	StorageSubPath     string         `yaml:"storageSubPath"`
	DefaultVariantName string         `yaml:"defaultVariantName"`
	Category           string         `yaml:"category"`
	Variants           int            `yaml:"variants"`
	DeepMergeKeys      []string       `yaml:"deepMergeKeys"`
	DefaultData        map[string]any `yaml:"defaultData"`
}

// Descriptor converts the entry into a registry descriptor whose data
// factory returns a fresh deep copy on every call.
func (e TypeEntry) Descriptor() component.Descriptor {
	defaults := e.DefaultData
	return component.Descriptor{
		TypeID:             e.TypeID,
		DisplayName:        e.DisplayName,
		StorageSubPath:     e.StorageSubPath,
		DefaultVariantName: e.DefaultVariantName,
		Category:           e.Category,
		DeepMergeKeys:      e.DeepMergeKeys,
		DefaultData: func() map[string]any {
			return datamap.Copy(defaults)
		},
	}
}

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, pkgerrors.WrapInvalid(err, "ComponentRegistry", "ParseCatalog", "catalog decode")
	}
	for i := range cat.Types {
		if cat.Types[i].DefaultData == nil {
			cat.Types[i].DefaultData = map[string]any{}
		}
		if cat.Types[i].Variants < 1 {
			return nil, pkgerrors.WrapInvalid(
				fmt.Errorf("type %s declares %d variants", cat.Types[i].TypeID, cat.Types[i].Variants),
				"ComponentRegistry", "ParseCatalog", "variant count validation")
		}
	}
	return &cat, nil
}

// Register registers the built-in catalog with registry.
func Register(registry *component.Registry) error {
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	cat, err := LoadCatalog()
	if err != nil {
		return err
	}
	return RegisterCatalog(registry, cat)
}

// RegisterCatalog registers every section and type of cat.
func RegisterCatalog(registry *component.Registry, cat *Catalog) error {
	for _, section := range cat.Sections {
		if err := registry.RegisterSection(section); err != nil {
			return pkgerrors.WrapInvalid(err, "ComponentRegistry", "RegisterCatalog", "section registration")
		}
	}

	for _, entry := range cat.Types {
		if err := registry.Register(entry.Descriptor()); err != nil {
			return pkgerrors.WrapInvalid(err, "ComponentRegistry", "RegisterCatalog",
				fmt.Sprintf("%s type registration", entry.TypeID))
		}
		if err := registry.RegisterLoader(entry.TypeID, templateLoader(entry)); err != nil {
			return pkgerrors.WrapInvalid(err, "ComponentRegistry", "RegisterCatalog",
				fmt.Sprintf("%s loader registration", entry.TypeID))
		}
	}
	return nil
}

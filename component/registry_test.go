package component

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sitekit/errors"
)

func heroDescriptor() Descriptor {
	return Descriptor{
		TypeID:             "hero",
		DisplayName:        "Hero",
		StorageSubPath:     "hero",
		DefaultVariantName: "hero1",
		Category:           "banner",
		DeepMergeKeys:      []string{"texts"},
		DefaultData: func() map[string]any {
			return map[string]any{"texts": map[string]any{"title": "Welcome"}}
		},
	}
}

func TestRegistry_RegisterAndDescribe(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(heroDescriptor()))

	d, ok := reg.Describe("hero")
	require.True(t, ok)
	assert.Equal(t, "Hero", d.DisplayName)
	assert.Equal(t, "hero", d.StorageSubPath)
	assert.True(t, reg.IsValidType("hero"))
	assert.False(t, reg.IsValidType("carousel"))

	_, ok = reg.Describe("carousel")
	assert.False(t, ok)
}

func TestRegistry_DescriptorIsCopied(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(heroDescriptor()))

	d, _ := reg.Describe("hero")
	d.DeepMergeKeys[0] = "mutated"
	d.DisplayName = "changed"

	again, _ := reg.Describe("hero")
	assert.Equal(t, []string{"texts"}, again.DeepMergeKeys)
	assert.Equal(t, "Hero", again.DisplayName)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
	}{
		{"empty type id", Descriptor{StorageSubPath: "x"}},
		{"sentinel type id", Descriptor{TypeID: UnknownType, StorageSubPath: "x"}},
		{"missing sub-path", Descriptor{TypeID: "footer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.desc)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestRegistry_DuplicateType(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(heroDescriptor()))

	err := reg.Register(heroDescriptor())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrDuplicateType)
}

func TestRegistry_DefaultsFilled(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Descriptor{TypeID: "footer", StorageSubPath: "footer"}))

	d, ok := reg.Describe("footer")
	require.True(t, ok)
	assert.Equal(t, "footer1", d.DefaultVariantName)
	assert.Equal(t, "footer", d.DisplayName)
}

func TestRegistry_Sections(t *testing.T) {
	reg := NewRegistry()
	assert.True(t, reg.IsValidSection(DefaultSection))
	assert.False(t, reg.IsValidSection("blog"))

	require.NoError(t, reg.RegisterSection("blog"))
	assert.True(t, reg.IsValidSection("blog"))
	assert.Equal(t, []string{"blog", "homepage"}, reg.Sections())

	assert.Error(t, reg.RegisterSection(""))
}

func TestRegistry_DefaultData(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(heroDescriptor()))

	first := reg.DefaultData("hero")
	first["texts"].(map[string]any)["title"] = "mutated"

	second := reg.DefaultData("hero")
	assert.Equal(t, "Welcome", second["texts"].(map[string]any)["title"])

	unknown := reg.DefaultData("nope")
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
}

func TestRegistry_Loaders(t *testing.T) {
	reg := NewRegistry()
	loader := func(context.Context, ParsedName) (Renderable, error) { return nil, nil }

	err := reg.RegisterLoader("hero", loader)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownType)

	require.NoError(t, reg.Register(heroDescriptor()))
	require.NoError(t, reg.RegisterLoader("hero", loader))
	assert.Error(t, reg.RegisterLoader("hero", nil))

	_, ok := reg.Loader("hero")
	assert.True(t, ok)
}

func TestRegistry_TypesSorted(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Descriptor{TypeID: "team", StorageSubPath: "team"}))
	require.NoError(t, reg.Register(Descriptor{TypeID: "footer", StorageSubPath: "footer"}))
	require.NoError(t, reg.Register(heroDescriptor()))

	var ids []string
	for _, d := range reg.Types() {
		ids = append(ids, d.TypeID)
	}
	assert.Equal(t, []string{"footer", "hero", "team"}, ids)
}

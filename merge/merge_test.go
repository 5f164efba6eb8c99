package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConfiguration_Precedence(t *testing.T) {
	defaults := map[string]any{"content": map[string]any{"title": "D"}}
	tenant := map[string]any{"content": map[string]any{"title": "T"}}
	props := map[string]any{"content": map[string]any{"title": "P"}}

	got := MergeConfiguration([]map[string]any{defaults, tenant, nil, nil, props}, []string{"content"})
	assert.Equal(t, map[string]any{"content": map[string]any{"title": "P"}}, got)
}

func TestMergeConfiguration_DeepMergeKeepsSiblings(t *testing.T) {
	tenant := map[string]any{"content": map[string]any{"title": "T", "subtitle": "S"}}
	props := map[string]any{"content": map[string]any{"title": "P"}}

	got := MergeConfiguration([]map[string]any{nil, tenant, props}, []string{"content"})
	assert.Equal(t, map[string]any{"content": map[string]any{"title": "P", "subtitle": "S"}}, got)
}

func TestMergeConfiguration_ShallowKeysReplace(t *testing.T) {
	tenant := map[string]any{"content": map[string]any{"title": "T", "subtitle": "S"}}
	props := map[string]any{"content": map[string]any{"title": "P"}}

	got := MergeConfiguration([]map[string]any{tenant, props}, nil)
	assert.Equal(t, map[string]any{"content": map[string]any{"title": "P"}}, got)
}

func TestMergeConfiguration_NestedRecursion(t *testing.T) {
	a := map[string]any{"colors": map[string]any{"button": map[string]any{"bg": "red", "fg": "white"}}}
	b := map[string]any{"colors": map[string]any{"button": map[string]any{"bg": "blue"}}}

	got := MergeConfiguration([]map[string]any{a, b}, []string{"colors"})
	button := got["colors"].(map[string]any)["button"].(map[string]any)
	assert.Equal(t, "blue", button["bg"])
	assert.Equal(t, "white", button["fg"])
}

func TestMergeConfiguration_ScalarOverridesObject(t *testing.T) {
	a := map[string]any{"texts": map[string]any{"title": "x"}}
	b := map[string]any{"texts": nil}

	got := MergeConfiguration([]map[string]any{a, b}, []string{"texts"})
	assert.Nil(t, got["texts"])
}

func TestMergeConfiguration_DoesNotMutateInputs(t *testing.T) {
	a := map[string]any{"texts": map[string]any{"title": "A"}, "items": []any{"x"}}
	b := map[string]any{"texts": map[string]any{"subtitle": "B"}}

	got := MergeConfiguration([]map[string]any{a, b}, []string{"texts"})
	got["texts"].(map[string]any)["title"] = "changed"
	got["items"].([]any)[0] = "changed"

	assert.Equal(t, map[string]any{"title": "A"}, a["texts"])
	assert.Equal(t, []any{"x"}, a["items"])
	assert.Equal(t, map[string]any{"subtitle": "B"}, b["texts"])
}

func TestMergeConfiguration_Empty(t *testing.T) {
	got := MergeConfiguration(nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

type heroConfig struct {
	Visible bool `json:"visible"`
	Texts   struct {
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
	} `json:"texts"`
}

func TestMergeInto(t *testing.T) {
	layers := []map[string]any{
		{"visible": true, "texts": map[string]any{"title": "D", "subtitle": "DS"}},
		{"texts": map[string]any{"title": "P"}},
	}

	cfg, err := MergeInto[heroConfig](layers, []string{"texts"})
	require.NoError(t, err)
	assert.True(t, cfg.Visible)
	assert.Equal(t, "P", cfg.Texts.Title)
	assert.Equal(t, "DS", cfg.Texts.Subtitle)

	_, err = MergeInto[heroConfig]([]map[string]any{{"visible": "yes"}}, nil)
	assert.Error(t, err)
}

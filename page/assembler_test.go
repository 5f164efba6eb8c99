package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sitekit/component"
)

func newAssembler() *Assembler {
	return NewAssembler(component.NewNormalizer(nil, nil, nil), nil)
}

func TestAssemble_OrdersAndLayouts(t *testing.T) {
	blob, err := ParseTenantComponentBlob([]byte(`{"components": {"homepage": [
		{"id": "c", "type": "footer", "componentName": "footer1", "position": 5},
		{"id": "a", "type": "header", "componentName": "header1", "position": 0},
		{"id": "b1", "type": "hero", "componentName": "hero1", "position": 2},
		{"id": "b2", "type": "hero", "componentName": "hero2", "position": 2}
	]}}`))
	require.NoError(t, err)

	list := newAssembler().Assemble(blob, "homepage")
	require.Len(t, list, 4)

	ids := []string{list[0].ID, list[1].ID, list[2].ID, list[3].ID}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, ids, "stable on ties")
	for i, inst := range list {
		require.NotNil(t, inst.Layout)
		assert.Equal(t, component.Layout{Row: i, Col: 0, Span: 2}, *inst.Layout)
	}
}

func TestAssemble_KeepsExistingLayouts(t *testing.T) {
	blob, err := ParseTenantComponentBlob([]byte(`{"components": {"homepage": [
		{"id": "a", "type": "hero", "componentName": "hero1", "layout": {"row": 0, "col": 1, "span": 1}},
		{"id": "b", "type": "hero", "componentName": "hero2"}
	]}}`))
	require.NoError(t, err)

	list := newAssembler().Assemble(blob, "homepage")
	require.Len(t, list, 2)
	require.NotNil(t, list[0].Layout)
	assert.Equal(t, 1, list[0].Layout.Col)
	assert.Nil(t, list[1].Layout)
}

func TestAssemble_MissingPositionDefaultsToIndex(t *testing.T) {
	blob, err := ParseTenantComponentBlob([]byte(`{"components": {"homepage": [
		{"id": "x", "componentName": "hero3"},
		{"id": "22821795-1"},
		{"id": "y", "type": "unknown", "componentName": "hero3", "position": 1}
	]}}`))
	require.NoError(t, err)

	list := newAssembler().Assemble(blob, "homepage")
	require.Len(t, list, 3)
	assert.Equal(t, "x", list[0].ID)
	assert.Equal(t, 0, list[0].Position)
	assert.Equal(t, "hero", list[0].Type)

	assert.Equal(t, "22821795-1", list[1].ID)
	assert.Equal(t, "hero", list[1].Type, "legacy homepage position 1")
	assert.Equal(t, "hero1", list[1].ComponentName)

	assert.Equal(t, "y", list[2].ID)
	assert.Equal(t, "hero", list[2].Type)
	assert.Equal(t, "hero3", list[2].ComponentName)
}

func TestAssemble_AbsentSlug(t *testing.T) {
	list := newAssembler().Assemble(NewTenantBlob(), "nowhere")
	assert.NotNil(t, list)
	assert.Empty(t, list)

	assert.Empty(t, newAssembler().Assemble(nil, "homepage"))
}

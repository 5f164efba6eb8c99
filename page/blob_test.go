package page

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sitekit/errors"
)

const arrayStyle = `{
  "siteName": "Acme Homes",
  "components": [
    ["homepage", [
      {"id": "header-1", "type": "header", "componentName": "header1", "position": 0},
      {"id": "hero-1", "type": "hero", "componentName": "hero2", "position": 1,
       "data": {"texts": {"title": "Tenant title"}}}
    ]],
    ["about", [
      {"id": "team-9", "componentName": "team2", "data": {"texts": {"title": "Our people"}}}
    ]]
  ]
}`

const objectStyle = `{
  "components": {
    "homepage": {"components": [{"id": "a", "type": "hero", "componentName": "hero1"}]},
    "contact": [{"id": "b", "type": "contactMap", "componentName": "contactMap1"}],
    "empty": null
  },
  "componentSettings": {
    "homepage": {
      "z-legacy": {"texts": {"title": "Z"}},
      "a": {"texts": {"title": "Filled"}},
      "m-legacy": {"type": "footer", "componentName": "footer1", "data": {"texts": {"copyright": "M"}}}
    }
  }
}`

func TestParse_ArrayStyle(t *testing.T) {
	blob, err := ParseTenantComponentBlob([]byte(arrayStyle))
	require.NoError(t, err)

	assert.Equal(t, []string{"about", "homepage"}, blob.Slugs())
	require.Len(t, blob.Pages["homepage"], 2)
	hero := blob.Pages["homepage"][1]
	assert.Equal(t, "hero-1", hero.ID)
	require.NotNil(t, hero.Position)
	assert.Equal(t, 1, *hero.Position)
	assert.Contains(t, blob.Extra, "siteName")
}

func TestParse_ObjectStyleWithSettings(t *testing.T) {
	blob, err := ParseTenantComponentBlob([]byte(objectStyle))
	require.NoError(t, err)

	assert.True(t, blob.HasPage("empty"))
	assert.Empty(t, blob.Pages["empty"])
	require.Len(t, blob.Pages["contact"], 1)

	home := blob.Pages["homepage"]
	require.Len(t, home, 3)
	assert.Equal(t, "a", home[0].ID)
	assert.Equal(t, "Filled", home[0].Data["texts"].(map[string]any)["title"])
	assert.Equal(t, "m-legacy", home[1].ID, "appended in sorted id order")
	assert.Equal(t, "footer", home[1].Type)
	assert.Equal(t, "z-legacy", home[2].ID)
	assert.Equal(t, "Z", home[2].Data["texts"].(map[string]any)["title"])
}

func TestParse_RootArray(t *testing.T) {
	blob, err := ParseTenantComponentBlob([]byte(`[["homepage", [{"id": "x"}]]]`))
	require.NoError(t, err)
	assert.Len(t, blob.Pages["homepage"], 1)
}

func TestParse_Empty(t *testing.T) {
	for _, raw := range []string{"", "null", "{}"} {
		blob, err := ParseTenantComponentBlob([]byte(raw))
		require.NoError(t, err, raw)
		assert.Empty(t, blob.Pages, raw)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad json", `{"components": [`},
		{"scalar root", `42`},
		{"pair too short", `{"components": [["homepage"]]}`},
		{"slug not string", `{"components": [[1, []]]}`},
		{"record not object", `{"components": {"homepage": [1]}}`},
		{"components scalar", `{"components": "x"}`},
		{"settings not object", `{"componentSettings": {"homepage": 3}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTenantComponentBlob([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestParse_LenientFields(t *testing.T) {
	blob, err := ParseTenantComponentBlob([]byte(
		`{"components": {"homepage": [{"id": 12, "position": "3", "layout": {"row": 1, "col": 1, "span": 1}}]}}`))
	require.NoError(t, err)

	rec := blob.Pages["homepage"][0]
	assert.Equal(t, "12", rec.ID)
	require.NotNil(t, rec.Position)
	assert.Equal(t, 3, *rec.Position)
	require.NotNil(t, rec.Layout)
	assert.Equal(t, 1, rec.Layout.Span)
}

func TestLookup(t *testing.T) {
	blob, err := ParseTenantComponentBlob([]byte(arrayStyle))
	require.NoError(t, err)

	data, ok := blob.Lookup("homepage", "hero", "hero2", "hero-1")
	require.True(t, ok)
	assert.Equal(t, "Tenant title", data["texts"].(map[string]any)["title"])

	data, ok = blob.Lookup("homepage", "team", "team2", "new-id")
	require.True(t, ok, "falls back to other pages by type and name")
	assert.Equal(t, "Our people", data["texts"].(map[string]any)["title"])

	_, ok = blob.Lookup("homepage", "footer", "footer1", "nope")
	assert.False(t, ok)

	var nilBlob *TenantBlob
	_, ok = nilBlob.Lookup("homepage", "hero", "hero1", "x")
	assert.False(t, ok)
}

func TestMarshal_RoundTrip(t *testing.T) {
	blob, err := ParseTenantComponentBlob([]byte(objectStyle))
	require.NoError(t, err)

	raw, err := json.Marshal(blob)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), settingsKey)

	again, err := ParseTenantComponentBlob(raw)
	require.NoError(t, err)
	assert.Len(t, again.Pages["homepage"], 3)
	assert.Equal(t, "z-legacy", again.Pages["homepage"][2].ID)
}

func TestClone(t *testing.T) {
	blob, err := ParseTenantComponentBlob([]byte(arrayStyle))
	require.NoError(t, err)

	clone := blob.Clone()
	clone.Pages["homepage"][1].Data["texts"].(map[string]any)["title"] = "changed"
	*clone.Pages["homepage"][1].Position = 9

	assert.Equal(t, "Tenant title", blob.Pages["homepage"][1].Data["texts"].(map[string]any)["title"])
	assert.Equal(t, 1, *blob.Pages["homepage"][1].Position)
}

package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sitekit/errors"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantBase string
		wantVar  int
		wantErr  bool
	}{
		{"simple", "header1", "header", 1, false},
		{"multi digit", "hero12", "hero", 12, false},
		{"camel case", "halfTextHalfImage3", "halfTextHalfImage", 3, false},
		{"multiple digit groups", "abc12def34", "abc12def", 34, false},
		{"no digits", "header", "", 0, true},
		{"only digits", "123", "", 0, true},
		{"zero variant", "hero0", "", 0, true},
		{"empty", "", "", 0, true},
		{"leading digit", "1hero2", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var perr *ParseError
				assert.ErrorAs(t, err, &perr)
				assert.ErrorIs(t, err, errors.ErrInvalidComponentName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, got.BaseType)
			assert.Equal(t, tt.wantVar, got.Variant)
		})
	}
}

func TestNormalizeName_RoundTrip(t *testing.T) {
	for _, base := range []string{"header", "hero", "propertySlider", "x"} {
		for _, n := range []int{1, 2, 9, 10, 42} {
			got, err := ParseName(NormalizeName(base, n))
			require.NoError(t, err)
			assert.Equal(t, ParsedName{BaseType: base, Variant: n}, got)
		}
	}
}

func TestParsedName_String(t *testing.T) {
	assert.Equal(t, "team2", ParsedName{BaseType: "team", Variant: 2}.String())
}

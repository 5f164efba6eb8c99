package component

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/c360/sitekit/errors"
)

// ParsedName is a component name split into its type and variant number.
type ParsedName struct {
	BaseType string
	Variant  int
}

// String returns the canonical component name.
func (p ParsedName) String() string {
	return NormalizeName(p.BaseType, p.Variant)
}

// ParseError reports a component name that does not follow "<letters><digits>".
type ParseError struct {
	Name   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid component name %q: %s", e.Name, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidComponentName.
func (e *ParseError) Unwrap() error {
	return errors.ErrInvalidComponentName
}

// ParseName splits name at its trailing digit run. Everything before the run
// is the base type, so "abc12def34" parses to {"abc12def", 34}.
func ParseName(name string) (ParsedName, error) {
	end := len(name)
	start := end
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}

	if start == end {
		return ParsedName{}, &ParseError{Name: name, Reason: "missing trailing variant number"}
	}
	if start == 0 {
		return ParsedName{}, &ParseError{Name: name, Reason: "missing base type"}
	}
	if !unicode.IsLetter(rune(name[0])) {
		return ParsedName{}, &ParseError{Name: name, Reason: "base type must start with a letter"}
	}

	variant, err := strconv.Atoi(name[start:])
	if err != nil {
		return ParsedName{}, &ParseError{Name: name, Reason: "variant number out of range"}
	}
	if variant < 1 {
		return ParsedName{}, &ParseError{Name: name, Reason: "variant number must be at least 1"}
	}

	return ParsedName{BaseType: name[:start], Variant: variant}, nil
}

// NormalizeName is the inverse of ParseName.
func NormalizeName(baseType string, variant int) string {
	return baseType + strconv.Itoa(variant)
}

// trimVariant strips the trailing digit run from name.
func trimVariant(name string) string {
	end := len(name)
	for end > 0 && name[end-1] >= '0' && name[end-1] <= '9' {
		end--
	}
	return name[:end]
}

package service

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/sitekit/errors"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Request body schemas
const (
	schemaUpdatePath   = "update_path"
	schemaReplaceData  = "replace_data"
	schemaAddComponent = "add_component"
	schemaReorder      = "reorder"
)

// bodyValidator checks request bodies against the embedded JSON schemas.
type bodyValidator struct {
	schemas map[string]*gojsonschema.Schema
}

func newBodyValidator() (*bodyValidator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, errors.WrapFatal(err, "bodyValidator", "newBodyValidator", "read embedded schemas")
	}

	v := &bodyValidator{schemas: make(map[string]*gojsonschema.Schema, len(entries))}
	for _, entry := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, errors.WrapFatal(err, "bodyValidator", "newBodyValidator", "read schema "+entry.Name())
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, errors.WrapFatal(err, "bodyValidator", "newBodyValidator", "compile schema "+entry.Name())
		}
		v.schemas[strings.TrimSuffix(entry.Name(), ".json")] = schema
	}
	return v, nil
}

// Validate checks body against the named schema. Violations are returned as
// one invalid error listing every problem.
func (v *bodyValidator) Validate(name string, body []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return errors.WrapFatal(fmt.Errorf("no schema named %q", name), "bodyValidator", "Validate", "schema lookup")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"bodyValidator", "Validate", "decode body")
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidData, strings.Join(problems, "; ")),
		"bodyValidator", "Validate", "validate "+name)
}

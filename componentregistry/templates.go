package componentregistry

import (
	"context"
	"fmt"
	"html/template"
	"io"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/errors"
)

var sectionTemplate = template.Must(template.New("section").Funcs(template.FuncMap{
	"text": lookupText,
	"color": func(cfg map[string]any, key string) string {
		return lookupString(cfg, "colors", key)
	},
}).Parse(
	`<section class="sitekit-{{.Type}} sitekit-{{.Name}}" data-variant="{{.Variant}}"` +
		` style="background:{{color .Config "background"}};color:{{color .Config "text"}}">` +
		`{{with text .Config "title"}}<h2>{{.}}</h2>{{end}}` +
		`{{with text .Config "subtitle"}}<p class="subtitle">{{.}}</p>{{end}}` +
		`{{with text .Config "body"}}<div class="body">{{.}}</div>{{end}}` +
		`{{with text .Config "button"}}<a class="button">{{.}}</a>{{end}}` +
		`</section>`))

// variantRenderer renders one numbered variant of a catalog type.
type variantRenderer struct {
	typeID string
	name   component.ParsedName
}

func (v *variantRenderer) ComponentName() string {
	return v.name.String()
}

func (v *variantRenderer) Render(w io.Writer, cfg map[string]any) error {
	err := sectionTemplate.Execute(w, map[string]any{
		"Type":    v.typeID,
		"Name":    v.name.String(),
		"Variant": v.name.Variant,
		"Config":  cfg,
	})
	if err != nil {
		return errors.Wrap(err, "VariantRenderer", "Render", v.name.String())
	}
	return nil
}

// templateLoader returns a loader that implements variants 1..entry.Variants.
func templateLoader(entry TypeEntry) component.Loader {
	return func(ctx context.Context, name component.ParsedName) (component.Renderable, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if name.Variant > entry.Variants {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s/%s", errors.ErrLoadFailed, entry.StorageSubPath, name),
				"ComponentRegistry", "Load", "variant lookup")
		}
		return &variantRenderer{typeID: entry.TypeID, name: name}, nil
	}
}

func lookupText(cfg map[string]any, key string) string {
	return lookupString(cfg, "texts", key)
}

func lookupString(cfg map[string]any, group, key string) string {
	m, ok := cfg[group].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

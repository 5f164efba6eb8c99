package component

import (
	"html/template"
	"io"
	"maps"

	"github.com/c360/sitekit/metric"
)

// FallbackKind labels why a placeholder was produced.
type FallbackKind string

// Fallback kinds.
const (
	FallbackUnknown    FallbackKind = "unknown"
	FallbackLoadFailed FallbackKind = "load_failed"
	FallbackSimple     FallbackKind = "simple"
	FallbackError      FallbackKind = "error"
	FallbackPending    FallbackKind = "pending"
)

var fallbackStyles = map[FallbackKind]struct{ Border, Background, Heading string }{
	FallbackUnknown:    {"#e53e3e", "#fff5f5", "Unknown component"},
	FallbackLoadFailed: {"#dd6b20", "#fffaf0", "Component failed to load"},
	FallbackSimple:     {"#718096", "#f7fafc", "Component unavailable"},
	FallbackError:      {"#c53030", "#fed7d7", "Component error"},
	FallbackPending:    {"#3182ce", "#ebf8ff", "Component loading"},
}

var fallbackTemplate = template.Must(template.New("fallback").Parse(
	`<div class="sitekit-fallback sitekit-fallback-{{.Kind}}" style="border:2px dashed {{.Border}};background:{{.Background}};padding:16px;margin:8px 0">` +
		`<strong>{{.Heading}}</strong>` +
		`{{if .DisplayName}}<div>{{.DisplayName}}</div>{{end}}` +
		`{{if .Name}}<div>Component: <code>{{.Name}}</code></div>{{end}}` +
		`{{if .Path}}<div>Path: <code>{{.Path}}</code></div>{{end}}` +
		`{{if .Message}}<div>{{.Message}}</div>{{end}}` +
		`{{if .Title}}<h2>{{.Title}}</h2>{{end}}` +
		`{{if .Subtitle}}<p>{{.Subtitle}}</p>{{end}}` +
		`</div>`))

// Fallback is the placeholder rendered in place of a component that could
// not be resolved. It always renders; it never fails the page.
type Fallback struct {
	Kind        FallbackKind
	Name        string
	DisplayName string
	Path        string
	Message     string

	props map[string]any
}

// ComponentName implements Renderable.
func (f *Fallback) ComponentName() string {
	return f.Name
}

// Render implements Renderable. Load-failed placeholders echo texts.title and
// texts.subtitle, preferring the render configuration over the captured props.
func (f *Fallback) Render(w io.Writer, cfg map[string]any) error {
	style := fallbackStyles[f.Kind]
	view := struct {
		Kind, Border, Background, Heading string
		Name, DisplayName, Path, Message  string
		Title, Subtitle                   string
	}{
		Kind:        string(f.Kind),
		Border:      style.Border,
		Background:  style.Background,
		Heading:     style.Heading,
		Name:        f.Name,
		DisplayName: f.DisplayName,
		Path:        f.Path,
		Message:     f.Message,
	}
	if f.Kind == FallbackLoadFailed {
		view.Title = firstText(cfg, f.props, "title")
		view.Subtitle = firstText(cfg, f.props, "subtitle")
	}
	return fallbackTemplate.Execute(w, view)
}

func firstText(cfg, props map[string]any, key string) string {
	for _, src := range []map[string]any{cfg, props} {
		texts, ok := src["texts"].(map[string]any)
		if !ok {
			continue
		}
		if s, ok := texts[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// FallbackFactory builds placeholders and counts them.
type FallbackFactory struct {
	metrics *metric.Metrics
}

// NewFallbackFactory creates a factory. metrics may be nil.
func NewFallbackFactory(metrics *metric.Metrics) *FallbackFactory {
	return &FallbackFactory{metrics: metrics}
}

func (f *FallbackFactory) build(fb *Fallback) *Fallback {
	if f != nil {
		f.metrics.RecordFallback(string(fb.Kind))
	}
	return fb
}

// UnknownType is used when the section or base type is not registered.
func (f *FallbackFactory) UnknownType(baseName, componentName, attemptedPath string) *Fallback {
	return f.build(&Fallback{
		Kind:        FallbackUnknown,
		Name:        componentName,
		DisplayName: baseName,
		Path:        attemptedPath,
		Message:     "No component type named " + baseName + " is registered.",
	})
}

// LoadFailed is used when a registered type has no implementation for the variant.
func (f *FallbackFactory) LoadFailed(displayName, componentName, path string, props map[string]any) *Fallback {
	return f.build(&Fallback{
		Kind:        FallbackLoadFailed,
		Name:        componentName,
		DisplayName: displayName,
		Path:        path,
		props:       maps.Clone(props),
	})
}

// Simple is a bare placeholder carrying a message.
func (f *FallbackFactory) Simple(message string) *Fallback {
	return f.build(&Fallback{Kind: FallbackSimple, Message: message})
}

// Error reports a failure that happened while rendering or resolving componentName.
func (f *FallbackFactory) Error(errText, componentName string) *Fallback {
	return f.build(&Fallback{Kind: FallbackError, Name: componentName, Message: errText})
}

// Pending is returned while a load is still in flight.
func (f *FallbackFactory) Pending(componentName, path string) *Fallback {
	return f.build(&Fallback{Kind: FallbackPending, Name: componentName, Path: path})
}

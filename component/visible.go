package component

import "io"

// Visible reports whether a merged configuration should render. A missing
// "visible" key means visible.
func Visible(cfg map[string]any) bool {
	v, ok := cfg["visible"]
	if !ok {
		return true
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "false"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	return true
}

// RenderVisible renders impl with cfg unless cfg hides the component.
func RenderVisible(w io.Writer, impl Renderable, cfg map[string]any) error {
	if !Visible(cfg) {
		return nil
	}
	return impl.Render(w, cfg)
}

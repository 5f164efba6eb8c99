package page

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/c360/sitekit/component"
)

// Assembler builds the ordered component list of a page.
type Assembler struct {
	normalizer *component.Normalizer
	logger     *slog.Logger
}

// NewAssembler creates an assembler. logger may be nil.
func NewAssembler(normalizer *component.Normalizer, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default().With("component", "assembler")
	}
	return &Assembler{normalizer: normalizer, logger: logger}
}

// Assemble normalizes the records stored for slug and orders them by
// position, ties keeping stored order. A page without any layout gets one
// full-width row per component. An absent slug yields an empty list.
func (a *Assembler) Assemble(blob *TenantBlob, slug string) []component.Instance {
	if blob == nil {
		return []component.Instance{}
	}
	records := blob.Pages[slug]
	out := make([]component.Instance, 0, len(records))

	strategies := make(map[string]int)
	for i, rec := range records {
		inst, strategy := a.normalizer.Normalize(rec, slug, i)
		strategies[strategy]++
		out = append(out, inst)
	}

	slices.SortStableFunc(out, func(x, y component.Instance) int {
		return cmp.Compare(x.Position, y.Position)
	})

	hasLayout := slices.ContainsFunc(out, func(inst component.Instance) bool {
		return inst.Layout != nil
	})
	if !hasLayout {
		for i := range out {
			out[i].Layout = &component.Layout{Row: i, Col: 0, Span: 2}
		}
	}

	a.logger.Debug("Assembled page", "page", slug, "components", len(out), "strategies", strategies)
	return out
}

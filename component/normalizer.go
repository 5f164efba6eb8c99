package component

import (
	"log/slog"
	"maps"
	"strings"

	"github.com/c360/sitekit/metric"
)

// legacyHomepageID is the id segment carried by records written before the
// editor stored types. Only those records are typed by position.
const legacyHomepageID = "22821795"

// Strategy names reported by Normalize.
const (
	StrategyExplicit = "explicit"
	StrategyName     = "name_prefix"
	StrategyIDAlias  = "id_alias"
	StrategyPosition = "position"
	StrategyUnknown  = "unknown"
)

// namePrefixes is ordered: the first prefix that matches wins.
var namePrefixes = []string{
	"header",
	"hero",
	"halfTextHalfImage",
	"propertySlider",
	"ctaValuation",
	"footer",
	"contactMap",
	"testimonials",
	"team",
}

var idAliases = map[string]string{
	"header":   "header",
	"hero":     "hero",
	"half":     "halfTextHalfImage",
	"property": "propertySlider",
	"cta":      "ctaValuation",
}

var homepageOrder = []string{"header", "hero", "halfTextHalfImage", "propertySlider", "ctaValuation"}

// aboutPageVariants overrides the default first variant on the about page.
var aboutPageVariants = map[string]string{
	"hero": "hero2",
	"team": "team2",
}

// Inference carries what a strategy may look at.
type Inference struct {
	Record   Record
	PageSlug string
	Position int
}

// Strategy infers a type id, reporting false when it has no opinion.
type Strategy struct {
	Name  string
	Infer func(in Inference) (string, bool)
}

// Normalizer repairs persisted records: it infers missing types and
// reconstructs missing component names.
type Normalizer struct {
	registry   *Registry
	strategies []Strategy
	logger     *slog.Logger
	metrics    *metric.Metrics
}

// NewNormalizer creates a normalizer with the default strategy list. registry
// may be nil, in which case any non-sentinel explicit type is trusted.
func NewNormalizer(registry *Registry, logger *slog.Logger, metrics *metric.Metrics) *Normalizer {
	if logger == nil {
		logger = slog.Default().With("component", "normalizer")
	}
	n := &Normalizer{registry: registry, logger: logger, metrics: metrics}
	n.strategies = []Strategy{
		{Name: StrategyExplicit, Infer: n.byExplicitType},
		{Name: StrategyName, Infer: byNamePrefix},
		{Name: StrategyIDAlias, Infer: byIDAlias},
		// Lowest confidence. Scoped to legacy homepage records only.
		{Name: StrategyPosition, Infer: byPosition},
	}
	return n
}

// Strategies returns the strategy names in evaluation order.
func (n *Normalizer) Strategies() []string {
	names := make([]string, len(n.strategies))
	for i, s := range n.strategies {
		names[i] = s.Name
	}
	return names
}

func isMissing(s string) bool {
	switch s {
	case "", "unknown", "undefined", "null":
		return true
	}
	return false
}

func (n *Normalizer) byExplicitType(in Inference) (string, bool) {
	t := in.Record.Type
	if isMissing(t) {
		return "", false
	}
	if n.registry != nil && !n.registry.IsValidType(t) {
		n.logger.Debug("Keeping unregistered explicit type", "id", in.Record.ID, "type", t)
	}
	return t, true
}

func byNamePrefix(in Inference) (string, bool) {
	if isMissing(in.Record.ComponentName) {
		return "", false
	}
	base := trimVariant(in.Record.ComponentName)
	for _, prefix := range namePrefixes {
		if strings.HasPrefix(base, prefix) {
			return prefix, true
		}
	}
	return "", false
}

func idSegment(id string) string {
	seg, _, _ := strings.Cut(id, "-")
	return seg
}

func byIDAlias(in Inference) (string, bool) {
	t, ok := idAliases[idSegment(in.Record.ID)]
	return t, ok
}

func byPosition(in Inference) (string, bool) {
	if in.PageSlug != DefaultSection || idSegment(in.Record.ID) != legacyHomepageID {
		return "", false
	}
	if in.Position >= 0 && in.Position < len(homepageOrder) {
		return homepageOrder[in.Position], true
	}
	return "header", true
}

// Normalize converts a persisted record into an Instance. index is the
// record's position in its persisted list and stands in for a missing
// position. The second return value names the strategy that decided the type.
func (n *Normalizer) Normalize(rec Record, pageSlug string, index int) (Instance, string) {
	position := index
	if rec.Position != nil {
		position = *rec.Position
	}

	in := Inference{Record: rec, PageSlug: pageSlug, Position: position}
	typeID, strategy := UnknownType, StrategyUnknown
	for _, s := range n.strategies {
		if t, ok := s.Infer(in); ok {
			typeID, strategy = t, s.Name
			break
		}
	}
	n.metrics.RecordNormalization(strategy)

	data := maps.Clone(rec.Data)
	if typeID == UnknownType {
		n.logger.Warn("Could not infer component type", "id", rec.ID, "page", pageSlug,
			"component_name", rec.ComponentName)
		if len(data) == 0 {
			data = unknownPlaceholderData(rec)
		}
	}
	if data == nil {
		data = map[string]any{}
	}

	name := rec.ComponentName
	if isMissing(name) {
		name = defaultVariantFor(typeID, pageSlug)
	}

	var layout *Layout
	if rec.Layout != nil {
		l := *rec.Layout
		layout = &l
	}

	return Instance{
		ID:            rec.ID,
		Type:          typeID,
		ComponentName: name,
		Data:          data,
		Position:      position,
		Layout:        layout,
	}, strategy
}

func defaultVariantFor(typeID, pageSlug string) string {
	if pageSlug == "about" {
		if v, ok := aboutPageVariants[typeID]; ok {
			return v
		}
	}
	return NormalizeName(typeID, 1)
}

func unknownPlaceholderData(rec Record) map[string]any {
	subtitle := "This section could not be identified"
	if rec.ID != "" {
		subtitle += " (" + rec.ID + ")"
	}
	return map[string]any{
		"texts": map[string]any{
			"title":    "Unknown Component",
			"subtitle": subtitle,
		},
		"colors": map[string]any{
			"background": "#f8d7da",
			"text":       "#721c24",
		},
	}
}

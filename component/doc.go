// Package component holds the live editor's component catalog and the
// machinery that turns a stored (section, componentName) pair into
// something renderable.
//
// The Registry is the closed world of known component types: each type has a
// Descriptor (display name, storage sub-path, default variant, default data
// and deep-merge keys) and optionally a Loader producing implementations per
// variant. A Resolver consults the Registry, caches whatever it produced and
// degrades every failure into a Fallback placeholder, so callers never see an
// error from Resolve.
//
// Records persisted by older schema versions are repaired by the Normalizer,
// which infers a missing type through an ordered list of strategies.
package component

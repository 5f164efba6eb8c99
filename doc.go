// Package sitekit is the live editor engine of a multi-tenant real-estate
// site builder.
//
// A tenant's site is a set of pages, each an ordered list of component
// instances (header, hero, property slider and so on). Stored documents come
// in several historical shapes; sitekit normalizes them, resolves every
// instance to a renderable implementation and merges its configuration from
// five layers before rendering.
//
// # Packages
//
//   - component: registry of component types, name parsing, the cached
//     resolver, fallback placeholders and the legacy record normalizer
//   - componentregistry: the built-in catalog (YAML) and template renderers
//   - page: tenant document parsing and per-page assembly
//   - datastore: per-tenant editor state with change deltas
//   - merge: the layered configuration merge
//   - editor: tenant sessions tying the above together
//   - tenantstore: memory, NATS KV, SQL and REST backends for tenant documents
//   - tenant: request to tenant resolution
//   - service: the editor HTTP API and live websocket feed
//   - config, errors, metric, health, natsclient: ambient infrastructure
//   - pkg/cache, pkg/retry, pkg/datamap, pkg/tlsutil: shared utilities
//
// The server lives in cmd/sitekit.
package sitekit

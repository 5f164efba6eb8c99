// Package editor ties the component pipeline together for the live editor.
//
// A Manager owns one Session per tenant. A Session holds the tenant's
// document as loaded from the tenant store, a datastore.Store with the
// editor state of every opened page, and a merge engine over both. Opening a
// page assembles its persisted records, installs the list in the store and
// seeds every instance; edits then go through the store, and Save writes the
// whole page back in one request.
//
// Sessions live in a cache.Cache, so the number of tenants held in memory
// follows the configured cache strategy.
package editor

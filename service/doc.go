// Package service exposes the live editor over HTTP.
//
// API registers its routes on a standard library mux using method and
// wildcard patterns:
//
//	GET    {prefix}pages/{slug}
//	GET    {prefix}pages/{slug}/render
//	GET    {prefix}pages/{slug}/components/{id}/config
//	PATCH  {prefix}pages/{slug}/components/{id}
//	PUT    {prefix}pages/{slug}/components/{id}
//	DELETE {prefix}pages/{slug}/components/{id}
//	POST   {prefix}pages/{slug}/components
//	POST   {prefix}pages/{slug}/reorder
//	POST   {prefix}pages/{slug}/save
//	GET    {prefix}catalog
//	GET    {prefix}live
//
// The tenant of every request comes from the tenant.Resolver. Errors are
// written as {"error": "..."} with a status derived from the error class:
// invalid input 400, missing tenant, page or instance 404, save conflicts 409,
// throttled saves 429, unavailable storage 503 and everything else 500.
//
// Mutating request bodies are validated against JSON schemas embedded in the
// binary. The live endpoint upgrades to a websocket and streams the tenant
// session's deltas.
package service

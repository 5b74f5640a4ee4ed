// Package models defines the domain entities shared by the catalog clients, the enrichment pipeline and persistence.
//
// The package contains two categories of types:
//
// 1. Catalog entities: request-scoped values assembled from provider responses
//   - [Song], [Artist], [Album] : canonical entities with optional supplementary fields
//   - [Facts], [SimilarRef] : supplementary data from the enrichment provider
//   - [Page] : a bounded window of results
//   - [SearchFilters] : a post-hoc predicate over result lists
//
// 2. Persistent entities: database-backed records
//   - [User] : an account linked to the primary provider, carrying its [Credential]
//
// Optional numeric supplements are pointers so "absent" and "zero" stay distinct.
package models

// Package tasks implements the enrichment pipeline that answers catalog queries.
//
// # Providers
//
// A [Pipeline] combines two providers:
//
//   - [Catalog] : the primary provider (Spotify). Its entities are canonical, and a
//     failed lookup of the requested entity is the only error a query returns.
//   - [Enricher] : the secondary provider (Last.fm). It contributes play counts,
//     descriptions, tags and related-item lists. Its failures are logged and absorbed.
//
// # Details
//
// [Pipeline.GetEntityDetails] resolves the entity, fetches supplementary facts,
// and merges them onto fields the entity leaves unset. Tags are unioned into
// genres without case-sensitive duplicates. The outcome of the facts lookup is
// returned as a [FactsResult] so an empty answer and a failed call stay distinct.
//
// Artist details also fan out for top tracks, top albums and similar artists.
// Those related items carry synthetic ids and are cross-enriched: a catalog
// search by title and artist backfills a missing image or popularity, at most
// Options.Workers lookups at a time.
//
// # Lists
//
// Search, similar-item and chart operations accept a [Query] with optional
// [models.SearchFilters], applied last as an order-preserving pass.
//
// # Cancellation
//
// Every outbound call gets its own deadline (Options.RequestTimeout) derived from
// the request context. When the request context ends mid-enrichment the partial
// result is discarded and the context error returned.
package tasks

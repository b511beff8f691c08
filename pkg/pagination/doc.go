// Package pagination consumes the upstream's Link-header pagination.
//
// Two modes:
//
//   - Walker.CountViaLastPage answers "how many items" without paging:
//     request page size 1 and read the last-page number from the Link
//     header's rel="last" relation.
//   - BatchFetcher.FetchAllPages pulls every page of a listing through a
//     worker pool, for the few adapters that genuinely need all items.
//
// Both ride on the dispatch layer, so every page fetch goes through
// credential selection, classification and quota bookkeeping.
package pagination

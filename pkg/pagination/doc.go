// Package pagination provides the two halves of serving one catalog page:
// a bounded parallel fetcher for the per-entry detail calls, and the page
// metadata returned alongside the items.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(pagination.DefaultConfig())
//	details := make([]Detail, len(entries))
//	err := fetcher.FetchAll(ctx, len(entries), func(ctx context.Context, i int) error {
//		return client.GetJSON(ctx, entries[i].URL, &details[i])
//	})
//
//	meta := pagination.Compute(total, limit, offset)
//
// The batch fetcher:
//   - runs at most MaxConcurrency fetches at once
//   - bounds every fetch with Timeout
//   - cancels the remaining fetches on the first failure and returns it
//   - leaves result placement to the caller, so output order is input order
package pagination

// Package pagination provides sequential page fetching for Xero collection
// endpoints.
//
// Xero pages collections with a 1-based `page` query parameter and does not
// report a total page count. A page shorter than the full page size (100 by
// default) is the last one; an empty page is a valid last page.
//
// Two ways to consume pages are offered, both strictly sequential (at most one
// page request in flight per fetch):
//
// Iterator, where every Next performs one blocking page fetch:
//
//	it := pagination.NewIterator(fetch, 1, pagination.DefaultConfig())
//	defer it.Close()
//	for it.Next(ctx) {
//		page := it.Page()
//		// handle page.Items
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
//
// Callback-driven, where the controller only requests the next page once the
// callback has called next:
//
//	err := pagination.Run(ctx, fetch, pagination.Pager[Contact]{
//		Start: 1,
//		Callback: func(page pagination.Page[Contact], next func()) error {
//			next()
//			return process(page.Items)
//		},
//	}, pagination.DefaultConfig())
//
// A callback that returns without calling next (and is not handed the final
// page) parks the controller until ctx is cancelled. Cancelling ctx is the only
// way out of that state.
//
// Fetch failures end the fetch immediately with a *PageError; no callback is
// invoked for the failed page. Callback errors are returned as *CallbackFault
// once the fetch ends; they do not stop progression by themselves.
package pagination

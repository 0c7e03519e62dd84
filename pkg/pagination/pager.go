package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Callback receives each page. The controller requests the following page
// only after next has been called; next may be called from any goroutine and
// is idempotent. Calling next for the finished page has no effect.
type Callback[T any] func(page Page[T], next func()) error

// Pager is the caller-supplied paging configuration.
type Pager[T any] struct {
	// Start is the first page to fetch (default 1)
	Start int

	// Callback is invoked synchronously once per delivered page
	Callback Callback[T]
}

// Run fetches pages sequentially and hands each one to pager.Callback.
//
// Run returns nil once the finished page has been delivered. A fetch failure
// returns a *PageError immediately. Errors returned by the callback are
// collected as *CallbackFault values and joined into the result; they do not
// stop progression as long as next is called. If the callback never calls
// next on a non-final page, Run blocks until ctx is done.
func Run[T any](ctx context.Context, fetch FetchFunc[T], pager Pager[T], config Config) error {
	if pager.Callback == nil {
		return ErrNoCallback
	}

	it := NewIterator(fetch, pager.Start, config)
	defer it.Close()

	start := time.Now()
	var faults []error
	delivered := 0

	for it.Next(ctx) {
		page := it.Page()
		delivered++

		ready := make(chan struct{})
		var once sync.Once
		next := func() {
			once.Do(func() { close(ready) })
		}

		if err := pager.Callback(page, next); err != nil {
			it.logger.Warn().
				Err(err).
				Int("page", page.Index).
				Msg("Pager callback returned error")
			faults = append(faults, &CallbackFault{Page: page.Index, Err: err})
		}

		if page.Finished {
			break
		}

		select {
		case <-ready:
		case <-ctx.Done():
			pagerFetchesTotal.WithLabelValues(it.config.Resource, "cancelled").Inc()
			it.logger.Warn().
				Int("page", page.Index).
				Msg("Pager cancelled while waiting for continuation")
			return withFaults(fmt.Errorf("waiting for continuation after page %d: %w", page.Index, ctx.Err()), faults)
		}
	}

	if err := it.Err(); err != nil {
		pagerFetchesTotal.WithLabelValues(it.config.Resource, "error").Inc()
		return withFaults(err, faults)
	}

	pagerFetchesTotal.WithLabelValues(it.config.Resource, "ok").Inc()
	it.logger.Info().
		Int("pages", delivered).
		Dur("duration", time.Since(start)).
		Msg("Paginated fetch complete")

	return errors.Join(faults...)
}

// withFaults returns err alone when no callback faults were recorded.
func withFaults(err error, faults []error) error {
	if len(faults) == 0 {
		return err
	}
	return errors.Join(append(faults, err)...)
}

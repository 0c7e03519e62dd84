package pagination

import (
	"context"

	"github.com/Sternrassler/xero-client/pkg/logging"
	"github.com/rs/zerolog"
)

// FetchFunc retrieves a single page of a collection.
type FetchFunc[T any] func(ctx context.Context, page int) ([]T, error)

// Page is one batch of records plus the completion flag.
type Page[T any] struct {
	// Items are the records of this page in server order
	Items []T

	// Finished is true on the last page; no page follows it
	Finished bool

	// Index is the 1-based page number
	Index int
}

// Iterator walks a paginated collection one page per Next call.
// An Iterator is not safe for concurrent use.
type Iterator[T any] struct {
	fetch  FetchFunc[T]
	config Config
	logger zerolog.Logger

	next    int
	current Page[T]
	err     error
	done    bool
	closed  bool
}

// NewIterator creates an iterator that starts at page start.
// A start below 1 is treated as DefaultStart.
func NewIterator[T any](fetch FetchFunc[T], start int, config Config) *Iterator[T] {
	if start < 1 {
		start = DefaultStart
	}
	config = config.withDefaults()

	return &Iterator[T]{
		fetch:  fetch,
		config: config,
		next:   start,
		logger: logging.NewLogger(logging.ComponentPager).With().Str("resource", config.Resource).Logger(),
	}
}

// Next fetches the next page. It returns false once the finished page has
// been returned, after an error, or after Close.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.done || it.closed || it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}

	pageCtx := ctx
	if it.config.Timeout > 0 {
		var cancel context.CancelFunc
		pageCtx, cancel = context.WithTimeout(ctx, it.config.Timeout)
		defer cancel()
	}

	items, err := it.fetch(pageCtx, it.next)
	if err != nil {
		it.logger.Warn().
			Err(err).
			Int("page", it.next).
			Msg("Page fetch failed")
		it.err = &PageError{Page: it.next, Err: err}
		return false
	}
	pagesFetchedTotal.WithLabelValues(it.config.Resource).Inc()

	it.current = Page[T]{
		Items:    items,
		Finished: len(items) < it.config.PageSize,
		Index:    it.next,
	}
	it.done = it.current.Finished
	it.next++

	it.logger.Debug().
		Int("page", it.current.Index).
		Int("items", len(items)).
		Bool("finished", it.current.Finished).
		Msg("Page fetched")

	return true
}

// Page returns the page fetched by the last successful Next.
func (it *Iterator[T]) Page() Page[T] {
	return it.current
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Done reports whether the finished page has been returned.
func (it *Iterator[T]) Done() bool {
	return it.done
}

// Close stops the iteration. No further pages are requested.
func (it *Iterator[T]) Close() error {
	it.closed = true
	return nil
}

// CollectAll drains the iterator and concatenates all pages in order.
func CollectAll[T any](ctx context.Context, it *Iterator[T]) ([]T, error) {
	defer it.Close()

	var all []T
	for it.Next(ctx) {
		all = append(all, it.Page().Items...)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

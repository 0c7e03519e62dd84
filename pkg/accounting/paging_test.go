package accounting

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/xero-client/internal/testutil"
	"github.com/Sternrassler/xero-client/pkg/client"
	"github.com/Sternrassler/xero-client/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPage struct {
	index    int
	ids      []string
	finished bool
}

// collectPages runs a paged read that calls next synchronously.
func collectPages(t *testing.T, contacts *Contacts, start int) ([]recordedPage, error) {
	t.Helper()

	var mu sync.Mutex
	var pages []recordedPage
	_, err := contacts.GetContacts(context.Background(), &GetContactsOptions{
		Pager: &pagination.Pager[*PersistedContact]{
			Start: start,
			Callback: func(page pagination.Page[*PersistedContact], next func()) error {
				mu.Lock()
				pages = append(pages, recordedPage{index: page.Index, ids: idsOf(page.Items), finished: page.Finished})
				mu.Unlock()
				next()
				return nil
			},
		},
	})
	return pages, err
}

func TestGetContacts_PagedMatchesUnpaged(t *testing.T) {
	contacts, mock := newTestContacts(t, 100)
	seedContacts(mock, 250)

	unpaged, err := contacts.GetContacts(context.Background(), nil)
	require.NoError(t, err)
	mock.Reset()

	pages, err := collectPages(t, contacts, 1)

	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Len(t, pages[0].ids, 100)
	assert.Len(t, pages[1].ids, 100)
	assert.Len(t, pages[2].ids, 50)
	assert.Equal(t, []bool{false, false, true}, []bool{pages[0].finished, pages[1].finished, pages[2].finished})
	assert.Equal(t, []int{1, 2, 3}, []int{pages[0].index, pages[1].index, pages[2].index})

	var concatenated []string
	for _, p := range pages {
		concatenated = append(concatenated, p.ids...)
	}
	assert.Equal(t, idsOf(unpaged), concatenated, "same records in the same order")
	assert.Equal(t, []string{"1", "2", "3"}, mock.RequestedPages())
	assert.Equal(t, 3, mock.GetRequestCount())
}

func TestGetContacts_PagedExactMultipleEndsWithEmptyPage(t *testing.T) {
	contacts, mock := newTestContacts(t, 100)
	seedContacts(mock, 200)

	pages, err := collectPages(t, contacts, 1)

	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Empty(t, pages[2].ids)
	assert.True(t, pages[2].finished)
	assert.False(t, pages[1].finished)
}

func TestGetContacts_PagedSinglePage(t *testing.T) {
	contacts, mock := newTestContacts(t, 100)
	seedContacts(mock, 42)

	pages, err := collectPages(t, contacts, 1)

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Len(t, pages[0].ids, 42)
	assert.True(t, pages[0].finished)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestGetContacts_PagedFromStartPage(t *testing.T) {
	contacts, mock := newTestContacts(t, 100)
	ids := seedContacts(mock, 250)

	pages, err := collectPages(t, contacts, 2)

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 2, pages[0].index)
	assert.Equal(t, ids[100:200], pages[0].ids)
	assert.Equal(t, ids[200:], pages[1].ids)
	assert.Equal(t, []string{"2", "3"}, mock.RequestedPages())
}

func TestGetContacts_PagedCustomPageSize(t *testing.T) {
	contacts, mock := newTestContacts(t, 25)
	seedContacts(mock, 60)

	pages, err := collectPages(t, contacts, 1)

	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Len(t, pages[2].ids, 10)
	for _, r := range mock.Requests() {
		assert.Equal(t, []string{"25"}, r.Query["pageSize"])
	}
}

func TestGetContacts_PagedFetchErrorStops(t *testing.T) {
	contacts, mock := newTestContacts(t, 100)
	seedContacts(mock, 250)
	mock.InjectFailure(testutil.Failure{Path: "/Contacts", Page: 2, Response: testutil.NewServerErrorResponse()})

	pages, err := collectPages(t, contacts, 1)

	require.Len(t, pages, 1, "no callback for the failed page")
	var pageErr *pagination.PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, 2, pageErr.Page)
	var remote *client.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode)
	assert.Equal(t, []string{"1", "2"}, mock.RequestedPages())
}

func TestGetContacts_CallbackFaultDoesNotStopProgress(t *testing.T) {
	contacts, mock := newTestContacts(t, 100)
	seedContacts(mock, 150)
	boom := errors.New("store unavailable")

	var seen []int
	_, err := contacts.GetContacts(context.Background(), &GetContactsOptions{
		Pager: &pagination.Pager[*PersistedContact]{
			Callback: func(page pagination.Page[*PersistedContact], next func()) error {
				seen = append(seen, page.Index)
				next()
				if page.Index == 1 {
					return boom
				}
				return nil
			},
		},
	})

	assert.Equal(t, []int{1, 2}, seen)
	assert.ErrorIs(t, err, boom)
	var fault *pagination.CallbackFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, 1, fault.Page)
}

func TestGetContacts_ParkedUntilDeadline(t *testing.T) {
	contacts, mock := newTestContacts(t, 100)
	seedContacts(mock, 150)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := contacts.GetContacts(ctx, &GetContactsOptions{
		Pager: &pagination.Pager[*PersistedContact]{
			Callback: func(page pagination.Page[*PersistedContact], next func()) error {
				calls++
				return nil
			},
		},
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, mock.GetRequestCount(), "page 2 is never requested without next")
}

func TestGetContacts_NextFromAnotherGoroutine(t *testing.T) {
	contacts, mock := newTestContacts(t, 100)
	ids := seedContacts(mock, 150)

	var mu sync.Mutex
	var got []string
	_, err := contacts.GetContacts(context.Background(), &GetContactsOptions{
		Pager: &pagination.Pager[*PersistedContact]{
			Callback: func(page pagination.Page[*PersistedContact], next func()) error {
				mu.Lock()
				got = append(got, idsOf(page.Items)...)
				mu.Unlock()
				go func() {
					time.Sleep(10 * time.Millisecond)
					next()
					next()
				}()
				return nil
			},
		},
	})

	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, ids, got)
	assert.Equal(t, []string{"1", "2"}, mock.RequestedPages())
}

func TestGetContacts_PagedHidesArchived(t *testing.T) {
	contacts, mock := newTestContacts(t, 100)
	seedContacts(mock, 120)
	mock.AddContact(map[string]any{"Name": "Archived", "ContactStatus": StatusArchived})

	pages, err := collectPages(t, contacts, 1)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Len(t, pages[1].ids, 20)

	for _, r := range mock.Requests() {
		assert.Empty(t, r.Header.Get("If-Modified-Since"))
	}
}

func TestIterateContacts(t *testing.T) {
	contacts, mock := newTestContacts(t, 100)
	ids := seedContacts(mock, 230)

	t.Run("pages", func(t *testing.T) {
		it := contacts.IterateContacts(nil)
		defer it.Close()

		var sizes []int
		for it.Next(context.Background()) {
			sizes = append(sizes, len(it.Page().Items))
		}

		require.NoError(t, it.Err())
		assert.Equal(t, []int{100, 100, 30}, sizes)
		assert.True(t, it.Done())
	})

	t.Run("collect all", func(t *testing.T) {
		all, err := pagination.CollectAll(context.Background(), contacts.IterateContacts(&GetContactsOptions{}))

		require.NoError(t, err)
		assert.Equal(t, ids, idsOf(all))
	})

	t.Run("start page", func(t *testing.T) {
		it := contacts.IterateContacts(&GetContactsOptions{
			Pager: &pagination.Pager[*PersistedContact]{Start: 3},
		})
		defer it.Close()

		require.True(t, it.Next(context.Background()))
		assert.Equal(t, 3, it.Page().Index)
		assert.Equal(t, ids[200:], idsOf(it.Page().Items))
		assert.False(t, it.Next(context.Background()))
	})

	t.Run("close stops requests", func(t *testing.T) {
		mock.Reset()
		it := contacts.IterateContacts(nil)

		require.True(t, it.Next(context.Background()))
		require.NoError(t, it.Close())

		assert.False(t, it.Next(context.Background()))
		assert.Equal(t, 1, mock.GetRequestCount())
	})
}

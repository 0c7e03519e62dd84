package accounting

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/xero-client/pkg/client"
	"github.com/Sternrassler/xero-client/pkg/pagination"
)

// GetContactsOptions filters a contacts read. The zero value reads every
// active contact in one request.
type GetContactsOptions struct {
	// ModifiedAfter is sent verbatim as If-Modified-Since. Use ModifiedSince
	// to format a time. Values Xero cannot parse are ignored by Xero.
	ModifiedAfter string

	// Where is a Xero filter expression, e.g. `Name=="Bob"`
	Where string

	// Order is a sort expression, e.g. "Name DESC"
	Order string

	// IDs restricts the read to these ContactIDs
	IDs []string

	IncludeArchived bool
	SummaryOnly     bool
	SearchTerm      string

	// Pager switches GetContacts to callback-driven paging.
	Pager *pagination.Pager[*PersistedContact]
}

// params builds the request parameters. page 0 requests the unpaged
// collection.
func (o *GetContactsOptions) params(page, pageSize int) *client.Params {
	q := url.Values{}
	p := &client.Params{Query: q, NoCache: true}

	if page > 0 {
		q.Set("page", strconv.Itoa(page))
		if pageSize != pagination.DefaultPageSize {
			q.Set("pageSize", strconv.Itoa(pageSize))
		}
	}

	if o == nil {
		return p
	}

	p.IfModifiedSince = o.ModifiedAfter
	if o.Where != "" {
		q.Set("where", o.Where)
	}
	if o.Order != "" {
		q.Set("order", o.Order)
	}
	if len(o.IDs) > 0 {
		q.Set("IDs", strings.Join(o.IDs, ","))
	}
	if o.IncludeArchived {
		q.Set("includeArchived", "true")
	}
	if o.SummaryOnly {
		q.Set("summaryOnly", "true")
	}
	if o.SearchTerm != "" {
		q.Set("searchTerm", o.SearchTerm)
	}

	return p
}

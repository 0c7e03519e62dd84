package accounting

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/xero-client/pkg/client"
	"github.com/Sternrassler/xero-client/pkg/logging"
	"github.com/Sternrassler/xero-client/pkg/pagination"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const contactsPath = "/Contacts"

// DefaultLookupTimeout bounds a shared GetContact request.
const DefaultLookupTimeout = 30 * time.Second

// Transport sends requests to the Accounting API.
type Transport interface {
	Request(ctx context.Context, method, path string, params *client.Params, body, out any) error
	Raw(ctx context.Context, path string) ([]byte, error)
	Invalidate(ctx context.Context, path string) error
	PageSize() int
}

// Ensure client.Client implements Transport
var _ Transport = (*client.Client)(nil)

// Contacts is the contacts resource. It is safe for concurrent use; every
// paged read owns its own page counter.
type Contacts struct {
	transport   Transport
	logger      zerolog.Logger
	lookups       singleflight.Group
	lookupTimeout time.Duration
	pageTimeout   time.Duration
}

// NewContacts creates the contacts resource on top of a transport.
func NewContacts(transport Transport) *Contacts {
	return &Contacts{
		transport:     transport,
		logger:        logging.NewLogger(logging.ComponentContacts),
		lookupTimeout: DefaultLookupTimeout,
		pageTimeout:   pagination.DefaultConfig().Timeout,
	}
}

// SetPageTimeout bounds each page request of a paged read; 0 disables it.
func (s *Contacts) SetPageTimeout(d time.Duration) {
	s.pageTimeout = d
}

type contactsEnvelope struct {
	Contacts []Contact `json:"Contacts"`
}

type attachmentsEnvelope struct {
	Attachments []Attachment `json:"Attachments"`
}

// NewContact prepares a contact for creation. Nothing is sent until Save.
func (s *Contacts) NewContact(fields Contact) *NewContact {
	return &NewContact{Contact: fields.clone(), svc: s}
}

func (s *Contacts) persisted(c Contact) *PersistedContact {
	return &PersistedContact{Contact: c, svc: s}
}

// GetContact reads one contact. Concurrent reads of the same ContactID share
// one request; every caller gets its own copy. The shared request is not tied
// to any single caller's ctx, so one caller giving up does not fail the others.
func (s *Contacts) GetContact(ctx context.Context, id string) (*PersistedContact, error) {
	if id == "" {
		return nil, &client.ValidationError{Field: "ContactID", Message: "is required"}
	}

	ch := s.lookups.DoChan(id, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lookupTimeout)
		defer cancel()

		var env contactsEnvelope
		if err := s.transport.Request(lookupCtx, http.MethodGet, contactPath(id), nil, nil, &env); err != nil {
			return nil, err
		}
		if len(env.Contacts) == 0 {
			return nil, &client.RemoteError{
				StatusCode: http.StatusNotFound,
				ErrorClass: client.ErrorClassClient,
				Message:    fmt.Sprintf("contact %s not found", id),
			}
		}
		return env.Contacts[0], nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	if res.Shared {
		s.logger.Debug().Str("contact_id", id).Msg("Shared in-flight contact lookup")
	}

	return s.persisted(res.Val.(Contact).clone()), nil
}

// GetContacts reads contacts matching opts.
//
// Without opts.Pager it issues one unpaged request and returns every record.
// With opts.Pager it fetches pages sequentially from Pager.Start and hands
// each to Pager.Callback (see pagination.Run); the records are delivered
// only through the callback and the returned slice is nil.
func (s *Contacts) GetContacts(ctx context.Context, opts *GetContactsOptions) ([]*PersistedContact, error) {
	if opts != nil && opts.Pager != nil {
		return nil, pagination.Run(ctx, s.fetchPage(opts), *opts.Pager, s.pagingConfig())
	}

	var env contactsEnvelope
	if err := s.transport.Request(ctx, http.MethodGet, contactsPath, opts.params(0, 0), nil, &env); err != nil {
		return nil, err
	}

	contacts := make([]*PersistedContact, 0, len(env.Contacts))
	for _, c := range env.Contacts {
		contacts = append(contacts, s.persisted(c))
	}

	s.logger.Debug().Int("count", len(contacts)).Msg("Contacts fetched")
	return contacts, nil
}

// IterateContacts returns an iterator over the pages of contacts matching
// opts, starting at page 1 or at opts.Pager.Start when set.
func (s *Contacts) IterateContacts(opts *GetContactsOptions) *pagination.Iterator[*PersistedContact] {
	start := pagination.DefaultStart
	if opts != nil && opts.Pager != nil {
		start = opts.Pager.Start
	}
	return pagination.NewIterator(s.fetchPage(opts), start, s.pagingConfig())
}

func (s *Contacts) pagingConfig() pagination.Config {
	return pagination.Config{
		PageSize: s.transport.PageSize(),
		Timeout:  s.pageTimeout,
		Resource: "contacts",
	}
}

func (s *Contacts) fetchPage(opts *GetContactsOptions) pagination.FetchFunc[*PersistedContact] {
	pageSize := s.transport.PageSize()

	return func(ctx context.Context, page int) ([]*PersistedContact, error) {
		var env contactsEnvelope
		if err := s.transport.Request(ctx, http.MethodGet, contactsPath, opts.params(page, pageSize), nil, &env); err != nil {
			return nil, err
		}

		contacts := make([]*PersistedContact, 0, len(env.Contacts))
		for _, c := range env.Contacts {
			contacts = append(contacts, s.persisted(c))
		}
		return contacts, nil
	}
}

// SaveContacts creates contacts in one request (PUT /Contacts). The response
// holds the accepted contacts in request order. When Xero rejects some of
// them, the accepted ones are still returned together with a
// *client.RemoteError listing the validation messages.
func (s *Contacts) SaveContacts(ctx context.Context, contacts []*NewContact) (*SaveResponse, error) {
	if len(contacts) == 0 {
		return nil, &client.ValidationError{Field: "Contacts", Message: "at least one contact is required"}
	}

	body := contactsEnvelope{Contacts: make([]Contact, 0, len(contacts))}
	for i, n := range contacts {
		if n == nil {
			return nil, &client.ValidationError{Field: fmt.Sprintf("Contacts[%d]", i), Message: "is nil"}
		}
		if err := n.validate(); err != nil {
			return nil, err
		}
		body.Contacts = append(body.Contacts, n.Contact)
	}

	params := &client.Params{Query: url.Values{"summarizeErrors": []string{"false"}}}

	var env contactsEnvelope
	if err := s.transport.Request(ctx, http.MethodPut, contactsPath, params, body, &env); err != nil {
		return nil, err
	}

	resp := &SaveResponse{}
	var rejected []string
	for i, c := range env.Contacts {
		if c.HasValidationErrors || c.ContactID == "" {
			for _, v := range c.ValidationErrors {
				rejected = append(rejected, v.Message)
			}
			if len(c.ValidationErrors) == 0 {
				rejected = append(rejected, fmt.Sprintf("contact %q was not assigned an identifier", c.Name))
			}
			continue
		}
		if i < len(contacts) {
			contacts[i].saved = true
		}
		resp.Entities = append(resp.Entities, s.persisted(c))
	}

	s.logger.Info().
		Int("requested", len(contacts)).
		Int("created", len(resp.Entities)).
		Int("rejected", len(contacts)-len(resp.Entities)).
		Msg("Contacts saved")

	if len(rejected) > 0 {
		return resp, &client.RemoteError{
			StatusCode:       http.StatusOK,
			ErrorClass:       client.ErrorClassClient,
			Type:             "ValidationException",
			Message:          fmt.Sprintf("%d of %d contacts rejected", len(contacts)-len(resp.Entities), len(contacts)),
			ValidationErrors: rejected,
		}
	}

	return resp, nil
}

// UpdateContact sends fields to Xero (POST /Contacts/{ContactID}).
func (s *Contacts) UpdateContact(ctx context.Context, fields Contact) (*SaveResponse, error) {
	if fields.ContactID == "" {
		return nil, &client.ValidationError{Field: "ContactID", Message: "is required to update a contact"}
	}

	// Read-only and response-only fields are not sent back
	body := fields.clone()
	body.UpdatedDateUTC = nil
	body.HasAttachments = false
	body.HasValidationErrors = false
	body.ValidationErrors = nil

	path := contactPath(fields.ContactID)

	var env contactsEnvelope
	err := s.transport.Request(ctx, http.MethodPost, path, nil, contactsEnvelope{Contacts: []Contact{body}}, &env)
	if err != nil {
		return nil, err
	}

	if err := s.transport.Invalidate(ctx, path); err != nil {
		s.logger.Warn().Err(err).Str("contact_id", fields.ContactID).Msg("Cache invalidation failed")
	}

	resp := &SaveResponse{}
	for _, c := range env.Contacts {
		resp.Entities = append(resp.Entities, s.persisted(c))
	}

	s.logger.Debug().Str("contact_id", fields.ContactID).Msg("Contact updated")
	return resp, nil
}

// GetAttachments lists the attachments of a contact.
func (s *Contacts) GetAttachments(ctx context.Context, contactID string) ([]Attachment, error) {
	if contactID == "" {
		return nil, &client.ValidationError{Field: "ContactID", Message: "attachments require a saved contact"}
	}

	var env attachmentsEnvelope
	if err := s.transport.Request(ctx, http.MethodGet, contactPath(contactID)+"/Attachments", nil, nil, &env); err != nil {
		return nil, err
	}

	if env.Attachments == nil {
		env.Attachments = []Attachment{}
	}
	return env.Attachments, nil
}

// GetAttachmentContent downloads one attachment by file name.
func (s *Contacts) GetAttachmentContent(ctx context.Context, contactID, fileName string) ([]byte, error) {
	if contactID == "" {
		return nil, &client.ValidationError{Field: "ContactID", Message: "attachments require a saved contact"}
	}
	if fileName == "" {
		return nil, &client.ValidationError{Field: "FileName", Message: "is required"}
	}

	return s.transport.Raw(ctx, contactPath(contactID)+"/Attachments/"+url.PathEscape(fileName))
}

// contactPath escapes id so it always names a single path segment.
func contactPath(id string) string {
	return contactsPath + "/" + url.PathEscape(id)
}

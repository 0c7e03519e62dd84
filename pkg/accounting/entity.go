package accounting

import (
	"context"

	"github.com/Sternrassler/xero-client/pkg/client"
)

// NewContact is a contact that does not exist in Xero yet. Save creates it
// exactly once; afterwards work with the returned PersistedContact.
type NewContact struct {
	Contact

	svc   *Contacts
	saved bool
}

// errDetached is returned by entities that were not built by a Contacts
// resource.
var errDetached = &client.ValidationError{Field: "Contact", Message: "not bound to a Contacts resource; use Contacts.NewContact or a read"}

// Save creates the contact (PUT /Contacts).
func (n *NewContact) Save(ctx context.Context) (*SaveResponse, error) {
	if n.svc == nil {
		return nil, errDetached
	}
	return n.svc.SaveContacts(ctx, []*NewContact{n})
}

func (n *NewContact) validate() error {
	if n.saved {
		return &client.ValidationError{Field: "ContactID", Message: "contact was already created; save the returned PersistedContact instead"}
	}
	if n.ContactID != "" {
		return &client.ValidationError{Field: "ContactID", Message: "is assigned by Xero and must not be set on a new contact"}
	}
	if n.Name == "" {
		return &client.ValidationError{Field: "Name", Message: "is required"}
	}
	return nil
}

// PersistedContact is a contact Xero knows about. It always carries a
// ContactID; Save updates it (POST /Contacts/{ContactID}).
type PersistedContact struct {
	Contact

	svc *Contacts
}

// Save sends the local changes to Xero.
func (p *PersistedContact) Save(ctx context.Context) (*SaveResponse, error) {
	if p.svc == nil {
		return nil, errDetached
	}
	return p.svc.UpdateContact(ctx, p.Contact)
}

// GetAttachments lists the attachments of this contact.
func (p *PersistedContact) GetAttachments(ctx context.Context) ([]Attachment, error) {
	if p.svc == nil {
		return nil, errDetached
	}
	return p.svc.GetAttachments(ctx, p.ContactID)
}

// GetAttachmentContent downloads one attachment of this contact.
func (p *PersistedContact) GetAttachmentContent(ctx context.Context, fileName string) ([]byte, error) {
	if p.svc == nil {
		return nil, errDetached
	}
	return p.svc.GetAttachmentContent(ctx, p.ContactID, fileName)
}

// SaveResponse wraps the server's canonical representation of saved
// contacts, in request order.
type SaveResponse struct {
	Entities []*PersistedContact
}

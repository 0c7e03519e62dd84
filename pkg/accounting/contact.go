package accounting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Contact is a Xero contact record.
type Contact struct {
	// ContactID is assigned by Xero on creation and never set by callers
	ContactID string `json:"ContactID,omitempty"`

	ContactNumber      string `json:"ContactNumber,omitempty"`
	AccountNumber      string `json:"AccountNumber,omitempty"`
	ContactStatus      string `json:"ContactStatus,omitempty"`
	Name               string `json:"Name,omitempty"`
	FirstName          string `json:"FirstName,omitempty"`
	LastName           string `json:"LastName,omitempty"`
	EmailAddress       string `json:"EmailAddress,omitempty"`
	SkypeUserName      string `json:"SkypeUserName,omitempty"`
	BankAccountDetails string `json:"BankAccountDetails,omitempty"`
	TaxNumber          string `json:"TaxNumber,omitempty"`
	DefaultCurrency    string `json:"DefaultCurrency,omitempty"`
	Website            string `json:"Website,omitempty"`

	Addresses      []Address       `json:"Addresses,omitempty"`
	Phones         []Phone         `json:"Phones,omitempty"`
	ContactPersons []ContactPerson `json:"ContactPersons,omitempty"`

	// Read-only flags maintained by Xero
	IsSupplier     bool  `json:"IsSupplier,omitempty"`
	IsCustomer     bool  `json:"IsCustomer,omitempty"`
	HasAttachments bool  `json:"HasAttachments,omitempty"`
	UpdatedDateUTC *Date `json:"UpdatedDateUTC,omitempty"`

	// Set on records Xero rejected in a batch save
	HasValidationErrors bool                `json:"HasValidationErrors,omitempty"`
	ValidationErrors    []ValidationMessage `json:"ValidationErrors,omitempty"`
}

// Contact status values.
const (
	StatusActive   = "ACTIVE"
	StatusArchived = "ARCHIVED"
)

// Address types.
const (
	AddressTypePOBox  = "POBOX"
	AddressTypeStreet = "STREET"
)

// Address is a postal or street address of a contact.
type Address struct {
	AddressType  string `json:"AddressType,omitempty"`
	AddressLine1 string `json:"AddressLine1,omitempty"`
	AddressLine2 string `json:"AddressLine2,omitempty"`
	AddressLine3 string `json:"AddressLine3,omitempty"`
	AddressLine4 string `json:"AddressLine4,omitempty"`
	City         string `json:"City,omitempty"`
	Region       string `json:"Region,omitempty"`
	PostalCode   string `json:"PostalCode,omitempty"`
	Country      string `json:"Country,omitempty"`
	AttentionTo  string `json:"AttentionTo,omitempty"`
}

// Phone is a phone number of a contact.
type Phone struct {
	PhoneType        string `json:"PhoneType,omitempty"`
	PhoneNumber      string `json:"PhoneNumber,omitempty"`
	PhoneAreaCode    string `json:"PhoneAreaCode,omitempty"`
	PhoneCountryCode string `json:"PhoneCountryCode,omitempty"`
}

// ContactPerson is an additional person of a contact.
type ContactPerson struct {
	FirstName       string `json:"FirstName,omitempty"`
	LastName        string `json:"LastName,omitempty"`
	EmailAddress    string `json:"EmailAddress,omitempty"`
	IncludeInEmails bool   `json:"IncludeInEmails,omitempty"`
}

// ValidationMessage is a per-record validation error returned by Xero.
type ValidationMessage struct {
	Message string `json:"Message"`
}

// Attachment describes a file attached to a contact.
type Attachment struct {
	AttachmentID  string `json:"AttachmentID"`
	FileName      string `json:"FileName"`
	URL           string `json:"Url"`
	MimeType      string `json:"MimeType"`
	ContentLength int64  `json:"ContentLength"`
}

// clone returns a copy that shares no slices with c.
func (c Contact) clone() Contact {
	out := c
	out.Addresses = append([]Address(nil), c.Addresses...)
	out.Phones = append([]Phone(nil), c.Phones...)
	out.ContactPersons = append([]ContactPerson(nil), c.ContactPersons...)
	out.ValidationErrors = append([]ValidationMessage(nil), c.ValidationErrors...)
	if c.UpdatedDateUTC != nil {
		d := *c.UpdatedDateUTC
		out.UpdatedDateUTC = &d
	}
	return out
}

// Date is a timestamp in Xero's JSON encoding, "/Date(1573755038314+0000)/".
// ISO 8601 values are accepted when decoding.
type Date struct {
	time.Time
}

var msDatePattern = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// isoLayouts are the ISO forms Xero uses for date fields.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"/Date(%d+0000)/"`, d.UTC().UnixMilli())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if s == "" {
		return nil
	}

	if m := msDatePattern.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return fmt.Errorf("date %q: %w", s, err)
		}
		d.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}

	return fmt.Errorf("date %q: unrecognised format", s)
}

// ModifiedSince formats t for GetContactsOptions.ModifiedAfter.
func ModifiedSince(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}

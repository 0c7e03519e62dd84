package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/xero-client/pkg/accounting"
	"github.com/Sternrassler/xero-client/pkg/ratelimit"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

const tabPadding = 2

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printContacts(w io.Writer, contacts []*accounting.PersistedContact) error {
	if a.output == outputJSON {
		list := make([]accounting.Contact, 0, len(contacts))
		for _, c := range contacts {
			list = append(list, c.Contact)
		}
		return writeJSON(w, list)
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ContactID\tName\tEmail\tStatus\tUpdated")
	for _, c := range contacts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ContactID, c.Name, c.EmailAddress, c.ContactStatus, formatDate(c.UpdatedDateUTC))
	}
	return tw.Flush()
}

func (a *app) printContact(w io.Writer, c *accounting.PersistedContact) error {
	if a.output == outputJSON {
		return writeJSON(w, c.Contact)
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "ContactID:\t%s\n", c.ContactID)
	fmt.Fprintf(tw, "Name:\t%s\n", c.Name)
	fmt.Fprintf(tw, "Person:\t%s %s\n", c.FirstName, c.LastName)
	fmt.Fprintf(tw, "Email:\t%s\n", c.EmailAddress)
	fmt.Fprintf(tw, "Number:\t%s\n", c.ContactNumber)
	fmt.Fprintf(tw, "Status:\t%s\n", c.ContactStatus)
	fmt.Fprintf(tw, "Customer/Supplier:\t%t/%t\n", c.IsCustomer, c.IsSupplier)
	fmt.Fprintf(tw, "Attachments:\t%t\n", c.HasAttachments)
	fmt.Fprintf(tw, "Updated:\t%s\n", formatDate(c.UpdatedDateUTC))
	for _, addr := range c.Addresses {
		fmt.Fprintf(tw, "Address (%s):\t%s, %s %s, %s\n", addr.AddressType, addr.AddressLine1, addr.City, addr.PostalCode, addr.Country)
	}
	for _, p := range c.ContactPersons {
		fmt.Fprintf(tw, "Contact person:\t%s %s <%s>\n", p.FirstName, p.LastName, p.EmailAddress)
	}
	return tw.Flush()
}

func (a *app) printAttachments(w io.Writer, list []accounting.Attachment) error {
	if a.output == outputJSON {
		return writeJSON(w, list)
	}

	if len(list) == 0 {
		fmt.Fprintln(w, "No attachments.")
		return nil
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "FileName\tMimeType\tBytes\tAttachmentID")
	for _, att := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", att.FileName, att.MimeType, att.ContentLength, att.AttachmentID)
	}
	return tw.Flush()
}

func (a *app) printLimits(w io.Writer, state *ratelimit.RateLimitState) error {
	if a.output == outputJSON {
		return writeJSON(w, state)
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "Minute remaining:\t%d/%d\n", state.MinuteRemaining, ratelimit.MinuteLimit)
	fmt.Fprintf(tw, "Day remaining:\t%d/%d\n", state.DayRemaining, ratelimit.DayLimit)
	fmt.Fprintf(tw, "App minute remaining:\t%d\n", state.AppMinuteRemaining)
	fmt.Fprintf(tw, "Healthy:\t%t\n", state.IsHealthy)
	if state.Problem != "" {
		fmt.Fprintf(tw, "Problem:\t%s\n", state.Problem)
	}
	if !state.RetryAt.IsZero() {
		fmt.Fprintf(tw, "Retry at:\t%s\n", state.RetryAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func formatDate(d *accounting.Date) string {
	if d == nil || d.IsZero() {
		return "-"
	}
	return d.UTC().Format(time.RFC3339)
}

package main

import (
	"fmt"
	"os"

	"github.com/Sternrassler/xero-client/pkg/accounting"
	"github.com/Sternrassler/xero-client/pkg/pagination"
	"github.com/spf13/cobra"
)

type listFlags struct {
	page            int
	all             bool
	modifiedAfter   string
	where           string
	order           string
	search          string
	includeArchived bool
	summaryOnly     bool
}

func newListCmd(a *app) *cobra.Command {
	var f listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		Long: `List contacts of the tenant.

Without --page or --all every matching contact is read with one unpaged
request. --page reads a single page; --all reads every page in turn and
prints each page as it arrives.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.all && cmd.Flags().Changed("page") {
				return fmt.Errorf("--page and --all are mutually exclusive")
			}

			opts := &accounting.GetContactsOptions{
				ModifiedAfter:   f.modifiedAfter,
				Where:           f.where,
				Order:           f.order,
				SearchTerm:      f.search,
				IncludeArchived: f.includeArchived,
				SummaryOnly:     f.summaryOnly,
			}

			switch {
			case f.all:
				return a.listAll(cmd, opts)
			case cmd.Flags().Changed("page"):
				return a.listPage(cmd, opts, f.page)
			default:
				contacts, err := a.contacts.GetContacts(cmd.Context(), opts)
				if err != nil {
					return err
				}
				return a.printContacts(cmd.OutOrStdout(), contacts)
			}
		},
	}

	cmd.Flags().IntVar(&f.page, "page", pagination.DefaultStart, "read only this page (1-based)")
	cmd.Flags().BoolVar(&f.all, "all", false, "read every page sequentially")
	cmd.Flags().StringVar(&f.modifiedAfter, "modified-after", "", "only contacts modified since this UTC time (2006-01-02T15:04:05)")
	cmd.Flags().StringVar(&f.where, "where", "", `filter expression, e.g. Name=="ABC Limited"`)
	cmd.Flags().StringVar(&f.order, "order", "", `sort order, e.g. "Name DESC"`)
	cmd.Flags().StringVar(&f.search, "search", "", "case-insensitive search across name, email and contact number")
	cmd.Flags().BoolVar(&f.includeArchived, "include-archived", false, "include archived contacts")
	cmd.Flags().BoolVar(&f.summaryOnly, "summary-only", false, "omit addresses, phones and contact persons")

	return cmd
}

func (a *app) listPage(cmd *cobra.Command, opts *accounting.GetContactsOptions, page int) error {
	opts.Pager = &pagination.Pager[*accounting.PersistedContact]{Start: page}

	it := a.contacts.IterateContacts(opts)
	defer it.Close()

	if !it.Next(cmd.Context()) {
		return it.Err()
	}
	return a.printContacts(cmd.OutOrStdout(), it.Page().Items)
}

func (a *app) listAll(cmd *cobra.Command, opts *accounting.GetContactsOptions) error {
	out := cmd.OutOrStdout()
	total := 0

	opts.Pager = &pagination.Pager[*accounting.PersistedContact]{
		Start: pagination.DefaultStart,
		Callback: func(page pagination.Page[*accounting.PersistedContact], next func()) error {
			defer next()
			total += len(page.Items)
			a.logger.Debug().
				Int("page", page.Index).
				Int("items", len(page.Items)).
				Bool("finished", page.Finished).
				Msg("Page received")
			return a.printContacts(out, page.Items)
		},
	}

	if _, err := a.contacts.GetContacts(cmd.Context(), opts); err != nil {
		return err
	}

	a.logger.Info().Int("contacts", total).Msg("Listed all contacts")
	return nil
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get CONTACT_ID",
		Short: "Show one contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contact, err := a.contacts.GetContact(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printContact(cmd.OutOrStdout(), contact)
		},
	}
}

type contactFlags struct {
	name      string
	firstName string
	lastName  string
	email     string
	number    string
}

func (f *contactFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "contact name (unique across active contacts)")
	cmd.Flags().StringVar(&f.firstName, "first-name", "", "first name of the primary person")
	cmd.Flags().StringVar(&f.lastName, "last-name", "", "last name of the primary person")
	cmd.Flags().StringVar(&f.email, "email", "", "email address of the primary person")
	cmd.Flags().StringVar(&f.number, "number", "", "contact number")
}

// apply copies the flags the user set onto c.
func (f *contactFlags) apply(cmd *cobra.Command, c *accounting.Contact) {
	if cmd.Flags().Changed("name") {
		c.Name = f.name
	}
	if cmd.Flags().Changed("first-name") {
		c.FirstName = f.firstName
	}
	if cmd.Flags().Changed("last-name") {
		c.LastName = f.lastName
	}
	if cmd.Flags().Changed("email") {
		c.EmailAddress = f.email
	}
	if cmd.Flags().Changed("number") {
		c.ContactNumber = f.number
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var f contactFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a contact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var fields accounting.Contact
			f.apply(cmd, &fields)

			resp, err := a.contacts.NewContact(fields).Save(cmd.Context())
			if err != nil {
				return err
			}
			return a.printContacts(cmd.OutOrStdout(), resp.Entities)
		},
	}

	f.register(cmd)
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var f contactFlags

	cmd := &cobra.Command{
		Use:   "update CONTACT_ID",
		Short: "Update a contact",
		Long:  "Update a contact. Only the flags given are changed; everything else keeps its current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contact, err := a.contacts.GetContact(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			f.apply(cmd, &contact.Contact)

			resp, err := contact.Save(cmd.Context())
			if err != nil {
				return err
			}
			return a.printContacts(cmd.OutOrStdout(), resp.Entities)
		},
	}

	f.register(cmd)

	return cmd
}

func newAttachmentsCmd(a *app) *cobra.Command {
	var (
		download string
		outFile  string
	)

	cmd := &cobra.Command{
		Use:   "attachments CONTACT_ID",
		Short: "List or download the attachments of a contact",
		Example: `  # List attachments
  xero-contacts attachments bd2270c3-8706-4c11-9cfb-000b551c3f51

  # Download one attachment
  xero-contacts attachments bd2270c3-8706-4c11-9cfb-000b551c3f51 --download invoice.pdf --out invoice.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if download == "" {
				list, err := a.contacts.GetAttachments(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printAttachments(cmd.OutOrStdout(), list)
			}

			data, err := a.contacts.GetAttachmentContent(cmd.Context(), args[0], download)
			if err != nil {
				return err
			}

			if outFile == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outFile, err)
			}
			a.logger.Info().Str("file", outFile).Int("bytes", len(data)).Msg("Attachment downloaded")
			return nil
		},
	}

	cmd.Flags().StringVar(&download, "download", "", "download the attachment with this file name")
	cmd.Flags().StringVar(&outFile, "out", "", "write the downloaded attachment to this file instead of stdout")

	return cmd
}

func newLimitsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Show the last known rate limit state of the tenant",
		Long: `Show the last known rate limit state of the tenant.

With Redis configured the state is shared by every client of the tenant;
without it only the requests of this process are reflected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := a.client.RateLimiter().GetState(cmd.Context(), a.client.TenantID())
			if err != nil {
				return err
			}
			return a.printLimits(cmd.OutOrStdout(), state)
		},
	}
}

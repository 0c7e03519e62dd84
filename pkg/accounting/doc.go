// Package accounting implements the Xero Accounting API contacts resource on
// top of pkg/client.
//
// Contacts come in two variants. A *NewContact, built with
// Contacts.NewContact, has no identifier yet and its Save always creates it.
// Every read and save returns *PersistedContact values whose Save always
// updates. Both resolve with a *SaveResponse carrying the server's canonical
// representation.
//
// Collection reads are either unpaged (one request, every record) or paged.
// Paged reads run sequentially, one request per page, either pulled through
// an iterator:
//
//	it := contacts.IterateContacts(nil)
//	defer it.Close()
//	for it.Next(ctx) {
//		for _, c := range it.Page().Items {
//			fmt.Println(c.Name)
//		}
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
//
// or pushed to a callback that resumes the fetch by calling next:
//
//	_, err := contacts.GetContacts(ctx, &accounting.GetContactsOptions{
//		Pager: &pagination.Pager[*accounting.PersistedContact]{
//			Start: 1,
//			Callback: func(page pagination.Page[*accounting.PersistedContact], next func()) error {
//				defer next()
//				return store(page.Items)
//			},
//		},
//	})
package accounting

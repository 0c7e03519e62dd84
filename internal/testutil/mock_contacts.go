package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ifModifiedSinceLayouts are the If-Modified-Since formats the mock accepts.
// Anything else is ignored, as Xero does.
var ifModifiedSinceLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	http.TimeFormat,
}

// summaryOnlyFields are dropped from records when summaryOnly=true.
var summaryOnlyFields = []string{"Addresses", "Phones", "ContactPersons", "BankAccountDetails", "TaxNumber"}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// AddContact stores a contact as if it had been created through the API and
// returns its identifier.
func (m *MockXero) AddContact(fields map[string]any) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(fields)
}

// Contact returns a copy of a stored contact, or nil.
func (m *MockXero) Contact(id string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[id]
	if !ok {
		return nil
	}
	return clone(c)
}

// ContactCount returns the number of stored contacts.
func (m *MockXero) ContactCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// AddAttachment stores an attachment for a contact.
func (m *MockXero) AddAttachment(contactID, fileName, mimeType string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := newID()
	m.attachments[contactID] = append(m.attachments[contactID], attachment{
		id:       id,
		fileName: fileName,
		mimeType: mimeType,
		data:     append([]byte(nil), data...),
	})
	if c, ok := m.contacts[contactID]; ok {
		c["HasAttachments"] = true
	}
	return id
}

// insert must be called with m.mu held.
func (m *MockXero) insert(fields map[string]any) string {
	c := clone(fields)
	id := newID()
	c["ContactID"] = id
	if _, ok := c["ContactStatus"]; !ok {
		c["ContactStatus"] = "ACTIVE"
	}
	c["UpdatedDateUTC"] = msDate(m.clock())
	c["HasAttachments"] = false

	m.contacts[id] = c
	m.order = append(m.order, id)
	return id
}

// route dispatches on the escaped path so an escaped "/" stays inside its
// segment.
func (m *MockXero) route(w http.ResponseWriter, r *http.Request, rawPath string, body []byte) {
	segments := strings.Split(strings.Trim(rawPath, "/"), "/")
	for i, seg := range segments {
		unescaped, err := url.PathUnescape(seg)
		if err != nil {
			writeNotFound(w)
			return
		}
		segments[i] = unescaped
	}
	if len(segments) == 0 || segments[0] != "Contacts" {
		writeNotFound(w)
		return
	}

	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		m.listContacts(w, r)
	case len(segments) == 1 && (r.Method == http.MethodPut || r.Method == http.MethodPost):
		m.saveContacts(w, r, body)
	case len(segments) == 2 && r.Method == http.MethodGet:
		m.getContact(w, segments[1])
	case len(segments) == 2 && r.Method == http.MethodPost:
		m.updateContact(w, segments[1], body)
	case len(segments) == 3 && segments[2] == "Attachments" && r.Method == http.MethodGet:
		m.listAttachments(w, segments[1])
	case len(segments) == 4 && segments[2] == "Attachments" && r.Method == http.MethodGet:
		m.getAttachment(w, segments[1], segments[3])
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (m *MockXero) envelope(key string, value any) map[string]any {
	return map[string]any{
		"Id":           newID(),
		"Status":       "OK",
		"ProviderName": "xero-client mock",
		"DateTimeUTC":  msDate(time.Now()),
		key:            value,
	}
}

func (m *MockXero) listContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	m.mu.Lock()
	records, err := m.filter(q, r.Header.Get("If-Modified-Since"))
	pageSize := m.pageSize
	m.mu.Unlock()

	if err != nil {
		writeJSON(w, http.StatusBadRequest, validationException(err.Error()))
		return
	}

	if ps, err := strconv.Atoi(q.Get("pageSize")); err == nil && ps > 0 {
		pageSize = ps
	}

	var pagination map[string]any
	if p := q.Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 1 {
			page = 1
		}
		total := len(records)
		lo := min((page-1)*pageSize, total)
		hi := min(lo+pageSize, total)
		records = records[lo:hi]
		pagination = map[string]any{
			"page":      page,
			"pageSize":  pageSize,
			"pageCount": (total + pageSize - 1) / pageSize,
			"itemCount": total,
		}
	}

	resp := m.envelope("Contacts", records)
	if pagination != nil {
		resp["pagination"] = pagination
	}
	writeJSON(w, http.StatusOK, resp)
}

// filter must be called with m.mu held.
func (m *MockXero) filter(q url.Values, ifModifiedSince string) ([]map[string]any, error) {
	var since time.Time
	for _, layout := range ifModifiedSinceLayouts {
		if t, err := time.Parse(layout, ifModifiedSince); err == nil {
			since = t
			break
		}
	}

	var ids map[string]bool
	if raw := q.Get("IDs"); raw != "" {
		ids = make(map[string]bool)
		for _, id := range strings.Split(raw, ",") {
			ids[strings.TrimSpace(id)] = true
		}
	}

	clauses, err := parseWhere(q.Get("where"))
	if err != nil {
		return nil, err
	}

	includeArchived := q.Get("includeArchived") == "true"
	summaryOnly := q.Get("summaryOnly") == "true"
	search := strings.ToLower(q.Get("searchTerm"))

	records := make([]map[string]any, 0, len(m.order))
	for _, id := range m.order {
		c := m.contacts[id]

		if ids != nil && !ids[id] {
			continue
		}
		if !includeArchived && ids == nil && c["ContactStatus"] == "ARCHIVED" {
			continue
		}
		if !since.IsZero() {
			if updated, ok := parseMSDate(c["UpdatedDateUTC"]); ok && updated.Before(since) {
				continue
			}
		}
		if !matchesWhere(c, clauses) {
			continue
		}
		if search != "" && !matchesSearch(c, search) {
			continue
		}

		out := clone(c)
		if summaryOnly {
			for _, f := range summaryOnlyFields {
				delete(out, f)
			}
		}
		records = append(records, out)
	}

	if order := q.Get("order"); order != "" {
		field, desc := strings.CutSuffix(strings.TrimSpace(order), " DESC")
		field = strings.TrimSuffix(strings.TrimSpace(field), " ASC")
		sort.SliceStable(records, func(i, j int) bool {
			a, b := fmt.Sprint(records[i][field]), fmt.Sprint(records[j][field])
			if desc {
				return a > b
			}
			return a < b
		})
	}

	return records, nil
}

type whereClause struct {
	field string
	value string
	not   bool
}

// parseWhere understands AND-joined Field=="value" and Field!="value" clauses.
func parseWhere(where string) ([]whereClause, error) {
	if strings.TrimSpace(where) == "" {
		return nil, nil
	}

	var clauses []whereClause
	for _, part := range strings.Split(where, " AND ") {
		op := "=="
		if strings.Contains(part, "!=") {
			op = "!="
		}
		field, value, ok := strings.Cut(part, op)
		if !ok {
			return nil, fmt.Errorf("unsupported where clause %q", part)
		}
		clauses = append(clauses, whereClause{
			field: strings.TrimSpace(field),
			value: strings.Trim(strings.TrimSpace(value), `"`),
			not:   op == "!=",
		})
	}
	return clauses, nil
}

func matchesWhere(c map[string]any, clauses []whereClause) bool {
	for _, cl := range clauses {
		equal := fmt.Sprint(c[cl.field]) == cl.value
		if equal == cl.not {
			return false
		}
	}
	return true
}

func matchesSearch(c map[string]any, term string) bool {
	for _, f := range []string{"Name", "FirstName", "LastName", "EmailAddress", "ContactNumber"} {
		if s, ok := c[f].(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func (m *MockXero) getContact(w http.ResponseWriter, id string) {
	m.mu.Lock()
	c, ok := m.contacts[id]
	if ok {
		c = clone(c)
	}
	m.mu.Unlock()

	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, m.envelope("Contacts", []map[string]any{c}))
}

type contactsPayload struct {
	Contacts []map[string]any `json:"Contacts"`
}

// saveContacts handles PUT /Contacts (create) and POST /Contacts (create or
// update by ContactID).
func (m *MockXero) saveContacts(w http.ResponseWriter, r *http.Request, body []byte) {
	var payload contactsPayload
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Contacts) == 0 {
		writeJSON(w, http.StatusBadRequest, validationException("The request body could not be read"))
		return
	}
	summarize := r.URL.Query().Get("summarizeErrors") != "false"

	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole batch before storing anything
	problems := make([][]string, len(payload.Contacts))
	pending := map[string]bool{}
	var all []string
	for i, in := range payload.Contacts {
		id, _ := in["ContactID"].(string)
		if id != "" && r.Method == http.MethodPut {
			problems[i] = append(problems[i], "ContactID cannot be specified when creating a contact")
		}
		if id != "" && r.Method == http.MethodPost {
			if _, ok := m.contacts[id]; !ok {
				problems[i] = append(problems[i], fmt.Sprintf("Contact %s was not found", id))
			}
		}
		name, _ := in["Name"].(string)
		problems[i] = append(problems[i], m.nameProblems(name, id)...)
		if pending[strings.ToLower(name)] && name != "" {
			problems[i] = append(problems[i], duplicateName(name))
		}
		pending[strings.ToLower(name)] = true
		all = append(all, problems[i]...)
	}

	if summarize && len(all) > 0 {
		writeJSON(w, http.StatusBadRequest, validationException(all...))
		return
	}

	out := make([]map[string]any, 0, len(payload.Contacts))
	for i, in := range payload.Contacts {
		if len(problems[i]) > 0 {
			rejected := clone(in)
			rejected["HasValidationErrors"] = true
			errs := make([]map[string]any, 0, len(problems[i]))
			for _, p := range problems[i] {
				errs = append(errs, map[string]any{"Message": p})
			}
			rejected["ValidationErrors"] = errs
			out = append(out, rejected)
			continue
		}

		id, _ := in["ContactID"].(string)
		if id == "" {
			id = m.insert(in)
		} else {
			m.merge(id, in)
		}
		out = append(out, clone(m.contacts[id]))
	}

	writeJSON(w, http.StatusOK, m.envelope("Contacts", out))
}

func (m *MockXero) updateContact(w http.ResponseWriter, id string, body []byte) {
	var payload contactsPayload
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Contacts) != 1 {
		writeJSON(w, http.StatusBadRequest, validationException("The request body could not be read"))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.contacts[id]; !ok {
		writeNotFound(w)
		return
	}

	in := payload.Contacts[0]
	if name, ok := in["Name"].(string); ok {
		if problems := m.nameProblems(name, id); len(problems) > 0 {
			writeJSON(w, http.StatusBadRequest, validationException(problems...))
			return
		}
	}

	m.merge(id, in)
	writeJSON(w, http.StatusOK, m.envelope("Contacts", []map[string]any{clone(m.contacts[id])}))
}

// merge must be called with m.mu held.
func (m *MockXero) merge(id string, in map[string]any) {
	c := m.contacts[id]
	for k, v := range in {
		switch k {
		case "ContactID", "UpdatedDateUTC", "HasAttachments", "HasValidationErrors", "ValidationErrors":
			continue
		}
		c[k] = v
	}
	c["UpdatedDateUTC"] = msDate(m.clock())
}

// nameProblems must be called with m.mu held.
func (m *MockXero) nameProblems(name, selfID string) []string {
	if strings.TrimSpace(name) == "" {
		return []string{"The contact name must be specified."}
	}
	for _, id := range m.order {
		c := m.contacts[id]
		if id == selfID || c["ContactStatus"] == "ARCHIVED" {
			continue
		}
		if existing, _ := c["Name"].(string); strings.EqualFold(existing, name) {
			return []string{duplicateName(name)}
		}
	}
	return nil
}

func duplicateName(name string) string {
	return fmt.Sprintf("The contact name %s is already assigned to another contact. The contact name must be unique across all active contacts.", name)
}

func (m *MockXero) listAttachments(w http.ResponseWriter, contactID string) {
	m.mu.Lock()
	_, ok := m.contacts[contactID]
	stored := append([]attachment(nil), m.attachments[contactID]...)
	m.mu.Unlock()

	if !ok {
		writeNotFound(w)
		return
	}

	list := make([]map[string]any, 0, len(stored))
	for _, a := range stored {
		list = append(list, map[string]any{
			"AttachmentID":  a.id,
			"FileName":      a.fileName,
			"Url":           fmt.Sprintf("%s/Contacts/%s/Attachments/%s", m.URL(), contactID, url.PathEscape(a.fileName)),
			"MimeType":      a.mimeType,
			"ContentLength": len(a.data),
		})
	}
	writeJSON(w, http.StatusOK, m.envelope("Attachments", list))
}

func (m *MockXero) getAttachment(w http.ResponseWriter, contactID, fileName string) {
	m.mu.Lock()
	stored := append([]attachment(nil), m.attachments[contactID]...)
	m.mu.Unlock()

	for _, a := range stored {
		if a.fileName == fileName || a.id == fileName {
			w.Header().Set("Content-Type", a.mimeType)
			w.Header().Set("Content-Length", strconv.Itoa(len(a.data)))
			w.WriteHeader(http.StatusOK)
			w.Write(a.data)
			return
		}
	}
	writeNotFound(w)
}

func parseMSDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "/Date("), ")/")
	if i := strings.IndexAny(s, "+-"); i > 0 {
		s = s[:i]
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// clone copies a record deeply enough that callers cannot mutate the store.
func clone(in map[string]any) map[string]any {
	data, _ := json.Marshal(in)
	out := map[string]any{}
	json.Unmarshal(data, &out)
	return out
}

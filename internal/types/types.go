// Package types defines core data structures for mailscheduler.
package types

// Contact is a person or organization imported from one spreadsheet row.
// The (SheetTitle, RowNumber) pair is its natural key.
type Contact struct {
	ID         string `json:"id"`
	SheetTitle string `json:"sheet_title"`
	RowNumber  int64  `json:"row_number"`
	Name       string `json:"name"`
	Website    string `json:"website,omitempty"`
	Phone      string `json:"phone,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// FieldsEqual reports whether the mutable fields of two contacts match.
// Identity fields (ID, sheet, row, timestamps) are not compared.
func (c *Contact) FieldsEqual(o *Contact) bool {
	return c.Name == o.Name && c.Website == o.Website && c.Phone == o.Phone
}

// Recipient is one addressable email target derived from a Contact,
// tracked through a follow-up sequence. Unique per (ContactID, EmailAddress).
type Recipient struct {
	ID               string `json:"id"`
	ContactID        string `json:"contact_id"`
	EmailAddress     string `json:"email_address"`
	Salutation       string `json:"salutation,omitempty"`
	PlanID           string `json:"plan_id,omitempty"`
	HasReplied       bool   `json:"has_replied"`
	ThreadID         string `json:"thread_id,omitempty"`
	InitialContactAt string `json:"initial_contact_at,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// FieldsEqual reports whether the mutable fields of two recipients match.
func (r *Recipient) FieldsEqual(o *Recipient) bool {
	return r.Salutation == o.Salutation &&
		r.HasReplied == o.HasReplied &&
		r.InitialContactAt == o.InitialContactAt
}

// Email type constants.
const (
	EmailTypeInitial          = "INITIAL"
	EmailTypeFollowUp         = "FOLLOW_UP"
	EmailTypeExternalInitial  = "EXTERNALLY_INITIAL"
	EmailTypeExternalFollowUp = "EXTERNALLY_FOLLOW_UP"
)

// ValidEmailTypes is the set of allowed email type values.
var ValidEmailTypes = []string{
	EmailTypeInitial, EmailTypeFollowUp,
	EmailTypeExternalInitial, EmailTypeExternalFollowUp,
}

// IsValidEmailType checks if an email type string is valid.
func IsValidEmailType(t string) bool {
	for _, v := range ValidEmailTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsInitialType reports whether t marks the start of a sequence,
// whether created locally or observed externally.
func IsInitialType(t string) bool {
	return t == EmailTypeInitial || t == EmailTypeExternalInitial
}

// Email status constants.
const (
	StatusPending   = "PENDING"
	StatusSent      = "SENT"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// ValidStatuses is the set of allowed email status values.
var ValidStatuses = []string{StatusPending, StatusSent, StatusFailed, StatusCancelled}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Email is one outbound message, scheduled as PENDING by the orchestrator
// and resolved to SENT/FAILED by dispatch. FollowupNumber is 0 for the
// initial email; a follow-up's InitialEmailID must point at the INITIAL
// (or externally-initiated) email that started its sequence.
type Email struct {
	ID             string `json:"id"`
	RecipientID    string `json:"recipient_id"`
	FromAddr       string `json:"from_addr"`
	ToAddr         string `json:"to_addr"`
	Subject        string `json:"subject"`
	Body           string `json:"body,omitempty"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	FollowupNumber int    `json:"followup_number"`
	ThreadID       string `json:"thread_id,omitempty"`
	InitialEmailID string `json:"initial_email_id,omitempty"`
	ScheduledAt    string `json:"scheduled_at"`
	SentAt         string `json:"sent_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// Template type constants.
const (
	TemplateTypeInitial         = "INITIAL"
	TemplateTypeFollowUp        = "FOLLOW_UP"
	TemplateTypeDefaultInitial  = "DEFAULT_INITIAL"
	TemplateTypeDefaultFollowUp = "DEFAULT_FOLLOW_UP"
)

// ValidTemplateTypes is the set of allowed template type values.
var ValidTemplateTypes = []string{
	TemplateTypeInitial, TemplateTypeFollowUp,
	TemplateTypeDefaultInitial, TemplateTypeDefaultFollowUp,
}

// IsValidTemplateType checks if a template type string is valid.
func IsValidTemplateType(t string) bool {
	for _, v := range ValidTemplateTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Template is reusable subject/body text containing placeholders. A template
// with an empty DraftID is locally authored and not subject to drift
// detection against the external draft store.
type Template struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Body      string `json:"body,omitempty"`
	Type      string `json:"type"`
	DraftID   string `json:"draft_id,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// FollowUpPlan is an ordered sequence of follow-up steps plus the template
// used for the initial ("step 0") email.
type FollowUpPlan struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	InitialTemplateID string `json:"initial_template_id,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// FollowUpStep is one step of a plan: wait WaitDays after the previous email,
// then send the linked template. StepNumber starts at 1.
type FollowUpStep struct {
	ID         string `json:"id"`
	PlanID     string `json:"plan_id"`
	StepNumber int    `json:"step_number"`
	WaitDays   int    `json:"wait_days"`
	TemplateID string `json:"template_id"`
}

// Draft is a summary of an external, editable unsent message used as the
// authoring surface for templates.
type Draft struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

// ContactSyncStats counts reconciliation outcomes for one pass over one sheet.
type ContactSyncStats struct {
	ContactsCreated     int `json:"contacts_created"`
	ContactsUpdated     int `json:"contacts_updated"`
	ContactsUnchanged   int `json:"contacts_unchanged"`
	RecipientsCreated   int `json:"recipients_created"`
	RecipientsUpdated   int `json:"recipients_updated"`
	RecipientsUnchanged int `json:"recipients_unchanged"`
	RecipientsSkipped   int `json:"recipients_skipped"`
}

// Changes reports how many writes the pass performed.
func (s *ContactSyncStats) Changes() int {
	return s.ContactsCreated + s.ContactsUpdated + s.RecipientsCreated + s.RecipientsUpdated
}

// TemplateSyncStats counts template reconciliation outcomes for one pass.
type TemplateSyncStats struct {
	Updated      int `json:"updated"`
	Added        int `json:"added"`
	Disconnected int `json:"disconnected"`
	Conflicts    int `json:"conflicts"`
}

// Changes reports how many writes the pass performed.
func (s *TemplateSyncStats) Changes() int {
	return s.Updated + s.Added + s.Disconnected
}

// ScheduleStats aggregates emails created by one orchestration pass.
type ScheduleStats struct {
	InitialScheduled  int `json:"initial_scheduled"`
	FollowUpScheduled int `json:"followup_scheduled"`
	Skipped           int `json:"skipped"`
}

// DispatchStats aggregates dispatch outcomes for one pass.
type DispatchStats struct {
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Replies   int `json:"replies"`
	Cancelled int `json:"cancelled"`
}

// PassSummary is the result of one full synchronization pass.
type PassSummary struct {
	Templates TemplateSyncStats `json:"templates"`
	Contacts  ContactSyncStats  `json:"contacts"`
	Schedule  ScheduleStats     `json:"schedule"`
	Dispatch  DispatchStats     `json:"dispatch"`
}

// Changes reports total writes performed by the pass; the run loop exits
// after a configured number of consecutive zero-change passes.
func (p *PassSummary) Changes() int {
	return p.Templates.Changes() + p.Contacts.Changes() +
		p.Schedule.InitialScheduled + p.Schedule.FollowUpScheduled +
		p.Dispatch.Sent + p.Dispatch.Failed + p.Dispatch.Cancelled
}

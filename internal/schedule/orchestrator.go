package schedule

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/phleudt/mailscheduler/internal/placeholder"
	"github.com/phleudt/mailscheduler/internal/plan"
	"github.com/phleudt/mailscheduler/internal/types"
)

// ErrNoTemplate marks a plan step whose template cannot be resolved, even
// through the DEFAULT_* fallbacks.
var ErrNoTemplate = errors.New("no template available for step")

// Store is the persistence surface the orchestrator schedules against.
type Store interface {
	EmailsByRecipient(recipientID string) ([]*types.Email, error)
	InsertEmail(e *types.Email) error
	ContactByID(id string) (*types.Contact, error)
	TemplateByID(id string) (*types.Template, error)
	TemplateByType(typ string) (*types.Template, error)
}

// Resolver resolves placeholder bindings for one spreadsheet row.
type Resolver interface {
	Resolve(values map[string]placeholder.Value, row int64) (map[string]string, error)
}

// Orchestrator materializes new Email records per recipient per pass,
// combining the recipient's state, the follow-up plan, and placeholder
// resolution.
type Orchestrator struct {
	store      Store
	resolver   Resolver
	engine     *plan.Engine
	sender     string
	bindings   map[string]placeholder.Value
	delimiters placeholder.Delimiters
	quiet      bool

	now func() time.Time
}

// NewOrchestrator wires an orchestrator. bindings maps placeholder keys to
// their literal or column-reference values; only keys that actually appear
// in a rendered template are resolved.
func NewOrchestrator(store Store, resolver Resolver, engine *plan.Engine, sender string,
	bindings map[string]placeholder.Value, delims placeholder.Delimiters, quiet bool) *Orchestrator {
	return &Orchestrator{
		store:      store,
		resolver:   resolver,
		engine:     engine,
		sender:     sender,
		bindings:   bindings,
		delimiters: delims,
		quiet:      quiet,
		now:        time.Now,
	}
}

// Run processes every recipient sequentially. Data-quality failures (empty
// placeholder cell, missing template) skip the one recipient and are logged;
// collaborator I/O failures abort the pass.
func (o *Orchestrator) Run(recipients []*types.Recipient) (*types.ScheduleStats, error) {
	stats := &types.ScheduleStats{}
	for _, r := range recipients {
		if err := o.processRecipient(r, stats); err != nil {
			if isDataQuality(err) {
				stats.Skipped++
				if !o.quiet {
					fmt.Fprintf(os.Stderr, "  ! skip %s: %v\n", r.EmailAddress, err)
				}
				continue
			}
			return stats, fmt.Errorf("recipient %s: %w", r.EmailAddress, err)
		}
	}
	return stats, nil
}

func (o *Orchestrator) processRecipient(r *types.Recipient, stats *types.ScheduleStats) error {
	if r.HasReplied {
		stats.Skipped++
		return nil
	}

	history, err := o.store.EmailsByRecipient(r.ID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	current := CurrentFollowupNumber(history)
	switch ResolveState(history, current, o.engine.FollowUpCount()) {
	case StateNoEmails:
		return o.scheduleInitial(r, stats)
	case StateInitialScheduled:
		return o.scheduleFollowUps(r, history, current, 1, stats)
	case StateFirstFollowUpScheduled:
		return o.scheduleFollowUps(r, history, current, 2, stats)
	default:
		// MAX_FOLLOWUPS_REACHED or NO_SCHEDULING_REQUIRED.
		stats.Skipped++
		return nil
	}
}

// scheduleInitial creates the INITIAL email plus the step-1 follow-up
// referencing it.
func (o *Orchestrator) scheduleInitial(r *types.Recipient, stats *types.ScheduleStats) error {
	initialTmpl, err := o.lookupTemplate(o.engine.Plan().InitialTemplateID, types.TemplateTypeDefaultInitial)
	if err != nil {
		return fmt.Errorf("initial template: %w", err)
	}
	step := o.engine.Step(1)
	if step == nil {
		return fmt.Errorf("plan %q has no steps", o.engine.Plan().Name)
	}
	stepTmpl, err := o.lookupTemplate(step.TemplateID, types.TemplateTypeDefaultFollowUp)
	if err != nil {
		return fmt.Errorf("step 1 template: %w", err)
	}

	values, err := o.resolveFor(r, initialTmpl, stepTmpl)
	if err != nil {
		return err
	}

	scheduledAt := o.now().UTC()
	initial := o.buildEmail(r, initialTmpl, values, types.EmailTypeInitial, 0, "", r.ThreadID, scheduledAt)
	if err := o.store.InsertEmail(initial); err != nil {
		return fmt.Errorf("persist initial email: %w", err)
	}
	stats.InitialScheduled++

	followUp := o.buildEmail(r, stepTmpl, values, types.EmailTypeFollowUp, 1, initial.ID, r.ThreadID,
		scheduledAt.AddDate(0, 0, step.WaitDays))
	if err := o.store.InsertEmail(followUp); err != nil {
		return fmt.Errorf("persist follow-up 1: %w", err)
	}
	stats.FollowUpScheduled++
	return nil
}

// scheduleFollowUps creates up to count further follow-ups after current,
// each inheriting the thread identifier from the most recent email and
// scheduled relative to its predecessor.
func (o *Orchestrator) scheduleFollowUps(r *types.Recipient, history []*types.Email, current, count int,
	stats *types.ScheduleStats) error {
	initialID := initialEmailID(history)
	threadID := latestThreadID(history, r)
	last := history[len(history)-1]

	baseDate, err := emailDate(last)
	if err != nil {
		return fmt.Errorf("last email date: %w", err)
	}

	// Resolve templates first so a missing one skips the recipient before
	// anything is written.
	var steps []*types.FollowUpStep
	var templates []*types.Template
	for i := 0; i < count; i++ {
		step := o.engine.NextStep(current + i)
		if step == nil {
			break
		}
		tmpl, err := o.lookupTemplate(step.TemplateID, types.TemplateTypeDefaultFollowUp)
		if err != nil {
			return fmt.Errorf("step %d template: %w", step.StepNumber, err)
		}
		steps = append(steps, step)
		templates = append(templates, tmpl)
	}
	if len(steps) == 0 {
		stats.Skipped++
		return nil
	}

	values, err := o.resolveFor(r, templates...)
	if err != nil {
		return err
	}

	for i, step := range steps {
		baseDate = baseDate.AddDate(0, 0, step.WaitDays)
		e := o.buildEmail(r, templates[i], values, types.EmailTypeFollowUp, step.StepNumber, initialID, threadID, baseDate)
		// One scheduling call per email so a failure mid-recipient keeps
		// already-persisted siblings.
		if err := o.store.InsertEmail(e); err != nil {
			return fmt.Errorf("persist follow-up %d: %w", step.StepNumber, err)
		}
		stats.FollowUpScheduled++
	}
	return nil
}

// resolveFor extracts the placeholder keys used by the given templates and
// resolves them with one batched read bound to the recipient's contact row.
func (o *Orchestrator) resolveFor(r *types.Recipient, templates ...*types.Template) (map[string]string, error) {
	contact, err := o.store.ContactByID(r.ContactID)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	if contact == nil {
		return nil, fmt.Errorf("%w: contact %s", ErrMissingContact, r.ContactID)
	}

	// Built-in bindings come from the local store and never hit the sheet;
	// configured bindings take precedence over them.
	builtins := map[string]placeholder.Value{
		"salutation": {Literal: r.Salutation},
		"name":       {Literal: contact.Name},
		"website":    {Literal: contact.Website},
	}

	needed := make(map[string]placeholder.Value)
	for _, t := range templates {
		for _, key := range placeholder.Extract(t.Subject+" "+t.Body, o.delimiters) {
			if v, ok := o.bindings[key]; ok {
				needed[key] = v
			} else if v, ok := builtins[key]; ok {
				needed[key] = v
			}
		}
	}

	return o.resolver.Resolve(needed, contact.RowNumber)
}

func (o *Orchestrator) buildEmail(r *types.Recipient, tmpl *types.Template, values map[string]string,
	emailType string, followupNumber int, initialID, threadID string, scheduledAt time.Time) *types.Email {
	return &types.Email{
		RecipientID:    r.ID,
		FromAddr:       o.sender,
		ToAddr:         r.EmailAddress,
		Subject:        placeholder.Apply(tmpl.Subject, values, o.delimiters),
		Body:           placeholder.Apply(tmpl.Body, values, o.delimiters),
		Type:           emailType,
		Status:         types.StatusPending,
		FollowupNumber: followupNumber,
		ThreadID:       threadID,
		InitialEmailID: initialID,
		ScheduledAt:    scheduledAt.Format(time.RFC3339),
	}
}

// lookupTemplate fetches a template by ID, falling back to the first
// template of fallbackType when the ID is empty or dangling.
func (o *Orchestrator) lookupTemplate(id, fallbackType string) (*types.Template, error) {
	if id != "" {
		t, err := o.store.TemplateByID(id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	t, err := o.store.TemplateByType(fallbackType)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoTemplate
	}
	return t, nil
}

// ErrMissingContact marks a recipient whose owning contact row is gone.
var ErrMissingContact = errors.New("recipient has no contact")

// isDataQuality reports whether err is a per-recipient condition rather than
// a collaborator failure.
func isDataQuality(err error) bool {
	return errors.Is(err, placeholder.ErrEmptyCell) ||
		errors.Is(err, ErrNoTemplate) ||
		errors.Is(err, ErrMissingContact)
}

// initialEmailID finds the email that started the sequence: the first email
// of an initial type, falling back to the oldest email.
func initialEmailID(history []*types.Email) string {
	for _, e := range history {
		if types.IsInitialType(e.Type) {
			return e.ID
		}
	}
	if len(history) > 0 {
		return history[0].ID
	}
	return ""
}

// latestThreadID inherits the conversation from the most recent email that
// carries one, falling back to the recipient's own thread.
func latestThreadID(history []*types.Email, r *types.Recipient) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ThreadID != "" {
			return history[i].ThreadID
		}
	}
	return r.ThreadID
}

// emailDate returns the reference date of an email: when it was sent if
// resolved, else when it was scheduled.
func emailDate(e *types.Email) (time.Time, error) {
	s := e.SentAt
	if s == "" {
		s = e.ScheduledAt
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Package run drives full synchronization passes and the bounded pass loop.
package run

import (
	"fmt"
	"os"
	"time"

	"github.com/phleudt/mailscheduler/internal/config"
	"github.com/phleudt/mailscheduler/internal/db"
	"github.com/phleudt/mailscheduler/internal/gmail"
	"github.com/phleudt/mailscheduler/internal/plan"
	"github.com/phleudt/mailscheduler/internal/placeholder"
	"github.com/phleudt/mailscheduler/internal/reconcile"
	"github.com/phleudt/mailscheduler/internal/schedule"
	"github.com/phleudt/mailscheduler/internal/sheets"
	"github.com/phleudt/mailscheduler/internal/types"
)

// Runner owns the collaborators of one synchronization pipeline. Gateways
// are constructed once at process start and injected here.
type Runner struct {
	store  *db.DB
	cfg    *config.Config
	mail   gmail.Gateway
	source sheets.Gateway
	quiet  bool
}

// New wires a runner.
func New(store *db.DB, cfg *config.Config, mail gmail.Gateway, source sheets.Gateway, quiet bool) *Runner {
	return &Runner{store: store, cfg: cfg, mail: mail, source: source, quiet: quiet}
}

// Pass executes one full synchronization pass. Template and plan
// synchronization run first because contact/email reconciliation depend on
// the identifiers they resolve. Collaborator I/O failures abort the pass.
func (r *Runner) Pass() (*types.PassSummary, error) {
	summary := &types.PassSummary{}

	policy, err := reconcile.ParseConflictPolicy(r.cfg.ConflictPolicy)
	if err != nil {
		return nil, err
	}
	templateStats, err := r.ReconcileTemplates(policy)
	if err != nil {
		return summary, fmt.Errorf("template reconciliation: %w", err)
	}
	summary.Templates = *templateStats

	engine, err := r.SyncPlan()
	if err != nil {
		return summary, fmt.Errorf("plan sync: %w", err)
	}

	if err := r.ensureSheet(); err != nil {
		return summary, err
	}
	contactStats, err := r.reconcileContacts(engine.Plan().ID)
	if err != nil {
		return summary, fmt.Errorf("contact reconciliation: %w", err)
	}
	summary.Contacts = *contactStats

	recipients, err := r.store.AllRecipients()
	if err != nil {
		return summary, fmt.Errorf("load recipients: %w", err)
	}

	resolver := placeholder.NewResolver(r.source, r.cfg.SheetTitle)
	orchestrator := schedule.NewOrchestrator(
		r.store, resolver, engine, r.cfg.Sender,
		r.cfg.PlaceholderValues(), r.cfg.ParsedDelimiters(), r.quiet,
	)
	scheduleStats, err := orchestrator.Run(recipients)
	if err != nil {
		return summary, fmt.Errorf("scheduling: %w", err)
	}
	summary.Schedule = *scheduleStats

	dispatcher := schedule.NewDispatcher(r.store, r.mail, r.quiet)
	if err := dispatcher.Dispatch(&summary.Dispatch); err != nil {
		return summary, fmt.Errorf("dispatch: %w", err)
	}
	if r.cfg.CheckReplies {
		if err := dispatcher.CheckReplies(&summary.Dispatch); err != nil {
			return summary, fmt.Errorf("reply check: %w", err)
		}
	}

	if err := r.writeBackInitialContact(); err != nil {
		return summary, fmt.Errorf("initial-contact write-back: %w", err)
	}

	r.store.SetSetting("last_pass_at", db.Now())
	return summary, nil
}

// ensureSheet provisions the contact sheet on first use so a fresh
// spreadsheet works without manual setup.
func (r *Runner) ensureSheet() error {
	ok, err := r.source.SheetExists(r.cfg.SheetTitle)
	if err != nil {
		return fmt.Errorf("check sheet %q: %w", r.cfg.SheetTitle, err)
	}
	if ok {
		return nil
	}
	if err := r.source.CreateSheet(r.cfg.SheetTitle); err != nil {
		return fmt.Errorf("create sheet %q: %w", r.cfg.SheetTitle, err)
	}
	if !r.quiet {
		fmt.Fprintf(os.Stderr, "  created missing sheet %q\n", r.cfg.SheetTitle)
	}
	return nil
}

// writeBackInitialContact records the date of each recipient's first sent
// email in the sheet's initial-contact column and on the recipient, keeping
// the spreadsheet authoritative for outreach state. Disabled when the
// column is not configured.
func (r *Runner) writeBackInitialContact() error {
	if r.cfg.Columns.InitialContact == "" {
		return nil
	}
	recipients, err := r.store.AllRecipients()
	if err != nil {
		return err
	}

	var writes []sheets.CellWrite
	var updated []*types.Recipient
	for _, rec := range recipients {
		if rec.InitialContactAt != "" {
			continue
		}
		history, err := r.store.EmailsByRecipient(rec.ID)
		if err != nil {
			return err
		}
		var sentAt string
		for _, e := range history {
			if types.IsInitialType(e.Type) && e.Status == types.StatusSent && e.SentAt != "" {
				sentAt = e.SentAt
				break
			}
		}
		if sentAt == "" {
			continue
		}
		contact, err := r.store.ContactByID(rec.ContactID)
		if err != nil {
			return err
		}
		if contact == nil {
			continue
		}

		date := sentAt
		if t, err := db.ParseTime(sentAt); err == nil {
			date = t.Format("2006-01-02")
		}
		rec.InitialContactAt = date
		updated = append(updated, rec)
		writes = append(writes, sheets.CellWrite{
			Ref: sheets.CellRef{
				Sheet:  contact.SheetTitle,
				Column: r.cfg.Columns.InitialContact,
				Row:    contact.RowNumber,
			},
			Value: date,
		})
	}
	if len(writes) == 0 {
		return nil
	}

	// Sheet first: a failed batch write leaves the local flags unset so the
	// next pass retries.
	if err := r.source.BatchSetCells(writes); err != nil {
		return err
	}
	for _, rec := range updated {
		if err := r.store.UpdateRecipient(rec); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileTemplates runs one template reconciliation pass with the given
// conflict policy.
func (r *Runner) ReconcileTemplates(policy reconcile.ConflictPolicy) (*types.TemplateSyncStats, error) {
	return reconcile.NewTemplateReconciler(r.store, r.mail, policy).Sync()
}

// ReconcileContacts runs one standalone contact/recipient reconciliation
// pass. New recipients join the configured plan when it already exists; a
// missing plan leaves them unlinked until a full pass creates it.
func (r *Runner) ReconcileContacts() (*types.ContactSyncStats, error) {
	planID := ""
	p, err := r.store.PlanByName(r.cfg.Plan.Name)
	if err != nil {
		return nil, err
	}
	if p != nil {
		planID = p.ID
	}
	return r.reconcileContacts(planID)
}

func (r *Runner) reconcileContacts(planID string) (*types.ContactSyncStats, error) {
	return reconcile.NewContactReconciler(
		r.store, r.source, r.cfg.SheetTitle, r.cfg.ColumnMap(),
		r.cfg.HeaderRows, planID, r.quiet,
	).Sync()
}

// Loop runs passes with a fixed delay until maxPasses is hit or
// maxIdlePasses consecutive passes change nothing. onPass, if set, is
// called after each pass for progress output.
func (r *Runner) Loop(maxPasses int, onPass func(n int, s *types.PassSummary)) error {
	idle := 0
	for n := 1; maxPasses <= 0 || n <= maxPasses; n++ {
		summary, err := r.Pass()
		if err != nil {
			return fmt.Errorf("pass %d: %w", n, err)
		}
		if onPass != nil {
			onPass(n, summary)
		}

		if summary.Changes() == 0 {
			idle++
			if r.cfg.Loop.MaxIdlePasses > 0 && idle >= r.cfg.Loop.MaxIdlePasses {
				return nil
			}
		} else {
			idle = 0
		}

		time.Sleep(time.Duration(r.cfg.Loop.DelaySeconds) * time.Second)
	}
	return nil
}

// SyncPlan materializes the configured plan into the store and returns a
// validated engine over it. Step templates are named by subject and must
// exist locally, typically adopted from drafts by template reconciliation.
func (r *Runner) SyncPlan() (*plan.Engine, error) {
	p, err := r.store.PlanByName(r.cfg.Plan.Name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &types.FollowUpPlan{Name: r.cfg.Plan.Name}
		if err := r.store.InsertPlan(p); err != nil {
			return nil, fmt.Errorf("create plan %q: %w", p.Name, err)
		}
	}

	if r.cfg.Plan.InitialTemplate != "" {
		tmpl, err := r.store.TemplateBySubject(r.cfg.Plan.InitialTemplate)
		if err != nil {
			return nil, err
		}
		if tmpl == nil {
			return nil, fmt.Errorf("initial template %q not found", r.cfg.Plan.InitialTemplate)
		}
		if p.InitialTemplateID != tmpl.ID {
			if err := r.store.SetPlanInitialTemplate(p.ID, tmpl.ID); err != nil {
				return nil, err
			}
			p.InitialTemplateID = tmpl.ID
		}
	}

	desired := make([]*types.FollowUpStep, 0, len(r.cfg.Plan.Steps))
	for i, step := range r.cfg.Plan.Steps {
		tmpl, err := r.store.TemplateBySubject(step.Template)
		if err != nil {
			return nil, err
		}
		if tmpl == nil {
			return nil, fmt.Errorf("step %d template %q not found", i+1, step.Template)
		}
		desired = append(desired, &types.FollowUpStep{
			PlanID:     p.ID,
			StepNumber: i + 1,
			WaitDays:   step.WaitDays,
			TemplateID: tmpl.ID,
		})
	}

	existing, err := r.store.StepsByPlan(p.ID)
	if err != nil {
		return nil, err
	}
	if !stepsEqual(existing, desired) {
		if err := r.store.ReplacePlanSteps(p.ID, desired); err != nil {
			return nil, fmt.Errorf("replace plan steps: %w", err)
		}
		existing = desired
	}

	return plan.New(p, existing)
}

func stepsEqual(a, b []*types.FollowUpStep) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].StepNumber != b[i].StepNumber ||
			a[i].WaitDays != b[i].WaitDays ||
			a[i].TemplateID != b[i].TemplateID {
			return false
		}
	}
	return true
}

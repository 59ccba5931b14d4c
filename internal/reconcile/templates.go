package reconcile

import (
	"fmt"
	"strings"

	"github.com/phleudt/mailscheduler/internal/gmail"
	"github.com/phleudt/mailscheduler/internal/types"
)

// ConflictPolicy decides what happens when an unmatched draft's subject
// collides with an existing template linked to a different draft.
type ConflictPolicy string

const (
	// PreferExisting keeps the local template untouched.
	PreferExisting ConflictPolicy = "PREFER_EXISTING"
	// PreferDraft overwrites the template's content and relinks it.
	PreferDraft ConflictPolicy = "PREFER_DRAFT"
	// CreateNew adds a second template under a disambiguated subject.
	CreateNew ConflictPolicy = "CREATE_NEW"
)

// ParseConflictPolicy validates a policy string, defaulting to
// PreferExisting for "".
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToUpper(s)) {
	case "":
		return PreferExisting, nil
	case PreferExisting:
		return PreferExisting, nil
	case PreferDraft:
		return PreferDraft, nil
	case CreateNew:
		return CreateNew, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q", s)
}

// TemplateStore is the persistence surface template reconciliation writes to.
type TemplateStore interface {
	AllTemplates() ([]*types.Template, error)
	InsertTemplate(t *types.Template) error
	UpdateTemplate(t *types.Template) error
	ClearTemplateDraft(id string) error
	TemplateBySubject(subject string) (*types.Template, error)
	TemplateSubjectExists(subject string) bool
}

// TemplateReconciler keeps local templates consistent with the external
// draft store. Drafts are authoritative for already-linked templates.
type TemplateReconciler struct {
	store  TemplateStore
	mail   gmail.Gateway
	policy ConflictPolicy
}

// NewTemplateReconciler wires a reconciler with the given conflict policy.
func NewTemplateReconciler(store TemplateStore, mail gmail.Gateway, policy ConflictPolicy) *TemplateReconciler {
	return &TemplateReconciler{store: store, mail: mail, policy: policy}
}

// Sync runs one template reconciliation pass. Any draft-store I/O failure
// aborts the whole pass; subject collisions are resolved per policy and
// only counted.
func (t *TemplateReconciler) Sync() (*types.TemplateSyncStats, error) {
	drafts, err := t.mail.ListDrafts()
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	templates, err := t.store.AllTemplates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	draftIndex := make(map[string]*types.Draft, len(drafts))
	for _, d := range drafts {
		draftIndex[d.ID] = d
	}

	stats := &types.TemplateSyncStats{}

	// Pass 1: templates that claim a draft. A vanished draft disconnects
	// the template; a drifted draft overwrites its content.
	for _, tmpl := range templates {
		if tmpl.DraftID == "" {
			continue
		}
		draft, ok := draftIndex[tmpl.DraftID]
		if !ok {
			if err := t.store.ClearTemplateDraft(tmpl.ID); err != nil {
				return stats, fmt.Errorf("disconnect template %q: %w", tmpl.Subject, err)
			}
			stats.Disconnected++
			continue
		}
		delete(draftIndex, draft.ID)

		if tmpl.Subject != draft.Subject || tmpl.Body != draft.Body {
			tmpl.Subject = draft.Subject
			tmpl.Body = draft.Body
			if err := t.store.UpdateTemplate(tmpl); err != nil {
				return stats, fmt.Errorf("update template %q: %w", tmpl.Subject, err)
			}
			stats.Updated++
		}
	}

	// Pass 2: drafts nothing claimed, in listing order.
	for _, draft := range drafts {
		if _, ok := draftIndex[draft.ID]; !ok {
			continue
		}
		if err := t.adoptDraft(draft, stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// adoptDraft links an unmatched draft to a template: creating one, or
// resolving a subject collision per policy.
func (t *TemplateReconciler) adoptDraft(draft *types.Draft, stats *types.TemplateSyncStats) error {
	existing, err := t.store.TemplateBySubject(draft.Subject)
	if err != nil {
		return fmt.Errorf("lookup template %q: %w", draft.Subject, err)
	}

	if existing == nil {
		tmpl := &types.Template{
			Subject: draft.Subject,
			Body:    draft.Body,
			Type:    inferTemplateType(draft.Subject),
			DraftID: draft.ID,
		}
		if err := t.store.InsertTemplate(tmpl); err != nil {
			return fmt.Errorf("create template %q: %w", draft.Subject, err)
		}
		stats.Added++
		return nil
	}

	// Same subject, different draft.
	stats.Conflicts++
	switch t.policy {
	case PreferExisting:
		return nil

	case PreferDraft:
		existing.Subject = draft.Subject
		existing.Body = draft.Body
		existing.DraftID = draft.ID
		if err := t.store.UpdateTemplate(existing); err != nil {
			return fmt.Errorf("relink template %q: %w", draft.Subject, err)
		}
		stats.Updated++
		return nil

	case CreateNew:
		tmpl := &types.Template{
			Subject: t.disambiguate(draft.Subject),
			Body:    draft.Body,
			Type:    inferTemplateType(draft.Subject),
			DraftID: draft.ID,
		}
		if err := t.store.InsertTemplate(tmpl); err != nil {
			return fmt.Errorf("create template %q: %w", tmpl.Subject, err)
		}
		stats.Added++
		return nil
	}
	return fmt.Errorf("unknown conflict policy %q", t.policy)
}

// disambiguate appends " (2)", " (3)", … until the subject is unused.
func (t *TemplateReconciler) disambiguate(subject string) string {
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", subject, n)
		if !t.store.TemplateSubjectExists(candidate) {
			return candidate
		}
	}
}

// inferTemplateType types a newly adopted draft by its subject.
func inferTemplateType(subject string) string {
	s := strings.ToLower(subject)
	if strings.Contains(s, "follow up") || strings.Contains(s, "followup") || strings.Contains(s, "follow-up") {
		return types.TemplateTypeFollowUp
	}
	return types.TemplateTypeInitial
}

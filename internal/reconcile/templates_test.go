package reconcile_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/internal/gmail"
	"github.com/phleudt/mailscheduler/internal/reconcile"
	"github.com/phleudt/mailscheduler/internal/types"
)

type templateStore struct {
	templates []*types.Template
	nextID    int
}

func (s *templateStore) AllTemplates() ([]*types.Template, error) {
	out := make([]*types.Template, len(s.templates))
	copy(out, s.templates)
	return out, nil
}

func (s *templateStore) InsertTemplate(t *types.Template) error {
	s.nextID++
	t.ID = fmt.Sprintf("t%d", s.nextID)
	s.templates = append(s.templates, t)
	return nil
}

func (s *templateStore) UpdateTemplate(t *types.Template) error {
	for i, existing := range s.templates {
		if existing.ID == t.ID {
			s.templates[i] = t
			return nil
		}
	}
	return fmt.Errorf("template %s not found", t.ID)
}

func (s *templateStore) ClearTemplateDraft(id string) error {
	for _, t := range s.templates {
		if t.ID == id {
			t.DraftID = ""
			return nil
		}
	}
	return fmt.Errorf("template %s not found", id)
}

func (s *templateStore) TemplateBySubject(subject string) (*types.Template, error) {
	for _, t := range s.templates {
		if t.Subject == subject {
			return t, nil
		}
	}
	return nil, nil
}

func (s *templateStore) TemplateSubjectExists(subject string) bool {
	t, _ := s.TemplateBySubject(subject)
	return t != nil
}

func (s *templateStore) byID(id string) *types.Template {
	for _, t := range s.templates {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// draftMail serves a fixed draft listing through the mail gateway.
type draftMail struct {
	drafts  []*types.Draft
	listErr error
}

func (m *draftMail) ListDrafts() ([]*types.Draft, error)            { return m.drafts, m.listErr }
func (m *draftMail) Send(gmail.Message) (*gmail.SendResult, error)  { return nil, nil }
func (m *draftMail) CreateDraft(gmail.Message) (*types.Draft, error) { return nil, nil }
func (m *draftMail) HasReplies(string, int) (bool, error)           { return false, nil }

func linkedTemplate(id, subject, body, draftID string) *types.Template {
	return &types.Template{ID: id, Subject: subject, Body: body, Type: types.TemplateTypeInitial, DraftID: draftID}
}

func TestTemplateSync(t *testing.T) {
	t.Run("new draft becomes a template", func(t *testing.T) {
		store := &templateStore{}
		mail := &draftMail{drafts: []*types.Draft{
			{ID: "d1", Subject: "Intro offer", Body: "Hello {name}"},
		}}
		r := reconcile.NewTemplateReconciler(store, mail, reconcile.PreferExisting)

		stats, err := r.Sync()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Added)

		require.Len(t, store.templates, 1)
		tmpl := store.templates[0]
		assert.Equal(t, "Intro offer", tmpl.Subject)
		assert.Equal(t, "d1", tmpl.DraftID)
		assert.Equal(t, types.TemplateTypeInitial, tmpl.Type)
	})

	t.Run("follow-up wording in the subject types the template", func(t *testing.T) {
		store := &templateStore{}
		mail := &draftMail{drafts: []*types.Draft{
			{ID: "d1", Subject: "Quick follow up", Body: "Still interested?"},
			{ID: "d2", Subject: "Re: followup on our call", Body: "Ping"},
		}}
		r := reconcile.NewTemplateReconciler(store, mail, reconcile.PreferExisting)

		_, err := r.Sync()
		require.NoError(t, err)
		require.Len(t, store.templates, 2)
		assert.Equal(t, types.TemplateTypeFollowUp, store.templates[0].Type)
		assert.Equal(t, types.TemplateTypeFollowUp, store.templates[1].Type)
	})

	t.Run("drifted draft overwrites the linked template", func(t *testing.T) {
		store := &templateStore{templates: []*types.Template{
			linkedTemplate("t1", "Intro offer", "old body", "d1"),
		}}
		mail := &draftMail{drafts: []*types.Draft{
			{ID: "d1", Subject: "Intro offer v2", Body: "new body"},
		}}
		r := reconcile.NewTemplateReconciler(store, mail, reconcile.PreferExisting)

		stats, err := r.Sync()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Updated)
		tmpl := store.byID("t1")
		assert.Equal(t, "Intro offer v2", tmpl.Subject)
		assert.Equal(t, "new body", tmpl.Body)
	})

	t.Run("unchanged linked template writes nothing", func(t *testing.T) {
		store := &templateStore{templates: []*types.Template{
			linkedTemplate("t1", "Intro offer", "body", "d1"),
		}}
		mail := &draftMail{drafts: []*types.Draft{
			{ID: "d1", Subject: "Intro offer", Body: "body"},
		}}
		r := reconcile.NewTemplateReconciler(store, mail, reconcile.PreferExisting)

		stats, err := r.Sync()
		require.NoError(t, err)
		assert.Zero(t, stats.Changes())
	})

	t.Run("deleted draft disconnects but keeps content", func(t *testing.T) {
		store := &templateStore{templates: []*types.Template{
			linkedTemplate("t1", "Intro offer", "body", "d1"),
		}}
		mail := &draftMail{}
		r := reconcile.NewTemplateReconciler(store, mail, reconcile.PreferExisting)

		stats, err := r.Sync()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Disconnected)

		tmpl := store.byID("t1")
		assert.Empty(t, tmpl.DraftID)
		assert.Equal(t, "Intro offer", tmpl.Subject)
		assert.Equal(t, "body", tmpl.Body)
	})

	t.Run("listing failure aborts before any write", func(t *testing.T) {
		store := &templateStore{templates: []*types.Template{
			linkedTemplate("t1", "Intro offer", "body", "d1"),
		}}
		mail := &draftMail{listErr: errors.New("service unavailable")}
		r := reconcile.NewTemplateReconciler(store, mail, reconcile.PreferExisting)

		_, err := r.Sync()
		require.Error(t, err)
		assert.Equal(t, "d1", store.byID("t1").DraftID, "nothing may be disconnected on a listing failure")
	})
}

func TestTemplateSyncConflicts(t *testing.T) {
	// An unclaimed draft whose subject matches a template linked elsewhere.
	setup := func() (*templateStore, *draftMail) {
		store := &templateStore{
			templates: []*types.Template{linkedTemplate("t1", "Intro offer", "local body", "d1")},
			nextID:    1,
		}
		mail := &draftMail{drafts: []*types.Draft{
			{ID: "d1", Subject: "Intro offer", Body: "local body"},
			{ID: "d2", Subject: "Intro offer", Body: "other body"},
		}}
		return store, mail
	}

	t.Run("prefer existing keeps the local template", func(t *testing.T) {
		store, mail := setup()
		r := reconcile.NewTemplateReconciler(store, mail, reconcile.PreferExisting)

		stats, err := r.Sync()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Conflicts)
		require.Len(t, store.templates, 1)
		assert.Equal(t, "local body", store.byID("t1").Body)
		assert.Equal(t, "d1", store.byID("t1").DraftID)
	})

	t.Run("prefer draft relinks and overwrites", func(t *testing.T) {
		store, mail := setup()
		r := reconcile.NewTemplateReconciler(store, mail, reconcile.PreferDraft)

		stats, err := r.Sync()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Conflicts)
		assert.Equal(t, 1, stats.Updated)
		assert.Equal(t, "other body", store.byID("t1").Body)
		assert.Equal(t, "d2", store.byID("t1").DraftID)
	})

	t.Run("create new disambiguates the subject", func(t *testing.T) {
		store, mail := setup()
		r := reconcile.NewTemplateReconciler(store, mail, reconcile.CreateNew)

		stats, err := r.Sync()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Conflicts)
		assert.Equal(t, 1, stats.Added)

		require.Len(t, store.templates, 2)
		added := store.templates[1]
		assert.Equal(t, "Intro offer (2)", added.Subject)
		assert.Equal(t, "other body", added.Body)
		assert.Equal(t, "d2", added.DraftID)
	})
}

func TestParseConflictPolicy(t *testing.T) {
	t.Parallel()

	p, err := reconcile.ParseConflictPolicy("")
	require.NoError(t, err)
	assert.Equal(t, reconcile.PreferExisting, p)

	p, err = reconcile.ParseConflictPolicy("prefer_draft")
	require.NoError(t, err)
	assert.Equal(t, reconcile.PreferDraft, p)

	_, err = reconcile.ParseConflictPolicy("whatever")
	assert.Error(t, err)
}

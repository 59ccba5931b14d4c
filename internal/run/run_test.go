package run_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/internal/config"
	"github.com/phleudt/mailscheduler/internal/db"
	"github.com/phleudt/mailscheduler/internal/gmail"
	"github.com/phleudt/mailscheduler/internal/run"
	"github.com/phleudt/mailscheduler/internal/sheets"
	"github.com/phleudt/mailscheduler/internal/types"
)

type fakeMail struct {
	drafts  []*types.Draft
	sent    []gmail.Message
	replies map[string]bool
}

func (f *fakeMail) ListDrafts() ([]*types.Draft, error) { return f.drafts, nil }

func (f *fakeMail) Send(msg gmail.Message) (*gmail.SendResult, error) {
	f.sent = append(f.sent, msg)
	thread := msg.ThreadID
	if thread == "" {
		thread = "th1"
	}
	return &gmail.SendResult{ID: "m1", ThreadID: thread}, nil
}

func (f *fakeMail) CreateDraft(gmail.Message) (*types.Draft, error) { return nil, nil }

func (f *fakeMail) HasReplies(threadID string, _ int) (bool, error) {
	return f.replies[threadID], nil
}

type fakeSheet struct {
	rows    [][]string
	cells   map[string]string
	missing bool
	created []string
	writes  []sheets.CellWrite
}

func (f *fakeSheet) ReadRows(string, int64) ([][]string, error) { return f.rows, nil }

func (f *fakeSheet) BatchGetCells(refs []sheets.CellRef) ([]string, error) {
	values := make([]string, len(refs))
	for i, r := range refs {
		values[i] = f.cells[r.A1()]
	}
	return values, nil
}

// BatchSetCells applies writes to the held rows so later reads see them,
// like a real spreadsheet would.
func (f *fakeSheet) BatchSetCells(writes []sheets.CellWrite) error {
	f.writes = append(f.writes, writes...)
	for _, w := range writes {
		rowIdx := int(w.Ref.Row) - 2 // one header row
		col := sheets.ColumnIndex(w.Ref.Column)
		if rowIdx < 0 || rowIdx >= len(f.rows) || col < 0 {
			continue
		}
		for len(f.rows[rowIdx]) <= col {
			f.rows[rowIdx] = append(f.rows[rowIdx], "")
		}
		f.rows[rowIdx][col] = w.Value
	}
	return nil
}

func (f *fakeSheet) SheetExists(string) (bool, error) { return !f.missing, nil }

func (f *fakeSheet) CreateSheet(title string) error {
	f.created = append(f.created, title)
	f.missing = false
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.SpreadsheetID = "sheet-123"
	cfg.Sender = "me@example.com"
	cfg.Placeholders = map[string]config.PlaceholderSpec{
		"company": {Column: "B"},
	}
	cfg.Columns.InitialContact = "G"
	cfg.Plan = config.Plan{
		Name:            "default",
		InitialTemplate: "Intro offer",
		Steps: []config.PlanStep{
			{WaitDays: 3, Template: "First follow up"},
			{WaitDays: 7, Template: "Second follow up"},
		},
	}
	cfg.Loop.DelaySeconds = 0
	cfg.Loop.MaxIdlePasses = 1
	return cfg
}

func testFixture(t *testing.T) (*run.Runner, *db.DB, *fakeMail, *fakeSheet) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mail := &fakeMail{
		drafts: []*types.Draft{
			{ID: "d1", Subject: "Intro offer", Body: "Hello {name} from {company}"},
			{ID: "d2", Subject: "First follow up", Body: "Ping {name}"},
			{ID: "d3", Subject: "Second follow up", Body: "Ping again"},
		},
		replies: map[string]bool{},
	}
	source := &fakeSheet{
		rows: [][]string{
			{"Acme", "acme.example", "", "alice@acme.example", "Hi Alice"},
		},
		cells: map[string]string{"'Contacts'!B2": "acme.example"},
	}
	return run.New(store, testConfig(), mail, source, true), store, mail, source
}

func TestPass(t *testing.T) {
	runner, store, mail, source := testFixture(t)

	summary, err := runner.Pass()
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Templates.Added)
	assert.Equal(t, 1, summary.Contacts.ContactsCreated)
	assert.Equal(t, 1, summary.Contacts.RecipientsCreated)
	assert.Equal(t, 1, summary.Schedule.InitialScheduled)
	assert.Equal(t, 1, summary.Schedule.FollowUpScheduled)
	assert.Equal(t, 1, summary.Dispatch.Sent)
	assert.NotEmpty(t, store.GetSetting("last_pass_at"))

	// The initial went out immediately; its follow-up waits for its date.
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "alice@acme.example", mail.sent[0].To)
	assert.Equal(t, "Hello Acme from acme.example", mail.sent[0].Body)

	recipients, err := store.AllRecipients()
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "th1", recipients[0].ThreadID)

	history, err := store.EmailsByRecipient(recipients[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.StatusSent, history[0].Status)
	assert.Equal(t, types.StatusPending, history[1].Status)
	assert.Equal(t, history[0].ID, history[1].InitialEmailID)

	// The first-send date went back into the sheet's initial-contact column.
	require.Len(t, source.writes, 1)
	assert.Equal(t, "'Contacts'!G2", source.writes[0].Ref.A1())
	refreshed, err := store.RecipientByID(recipients[0].ID)
	require.NoError(t, err)
	assert.Equal(t, source.writes[0].Value, refreshed.InitialContactAt)

	t.Run("second pass over settled state changes nothing", func(t *testing.T) {
		summary, err := runner.Pass()
		require.NoError(t, err)
		assert.Zero(t, summary.Changes())
	})

	t.Run("reply cancels the pending follow-up", func(t *testing.T) {
		mail.replies["th1"] = true

		summary, err := runner.Pass()
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Dispatch.Replies)
		assert.Equal(t, 1, summary.Dispatch.Cancelled)

		history, err := store.EmailsByRecipient(recipients[0].ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusCancelled, history[1].Status)
	})
}

func TestLoop(t *testing.T) {
	runner, _, _, _ := testFixture(t)

	var passes int
	err := runner.Loop(0, func(n int, s *types.PassSummary) {
		passes = n
	})
	require.NoError(t, err)

	// First pass does the work; the next idle pass trips the exit.
	assert.Equal(t, 2, passes)
}

func TestSyncPlan(t *testing.T) {
	runner, store, _, _ := testFixture(t)

	// Templates have to exist before the plan can reference them by subject.
	_, err := runner.ReconcileTemplates("PREFER_EXISTING")
	require.NoError(t, err)

	engine, err := runner.SyncPlan()
	require.NoError(t, err)
	assert.Equal(t, 2, engine.FollowUpCount())
	assert.NotEmpty(t, engine.Plan().InitialTemplateID)

	t.Run("second sync reuses the stored plan", func(t *testing.T) {
		again, err := runner.SyncPlan()
		require.NoError(t, err)
		assert.Equal(t, engine.Plan().ID, again.Plan().ID)
	})

	t.Run("steps follow the config", func(t *testing.T) {
		steps, err := store.StepsByPlan(engine.Plan().ID)
		require.NoError(t, err)
		require.Len(t, steps, 2)
		assert.Equal(t, 3, steps[0].WaitDays)
		assert.Equal(t, 7, steps[1].WaitDays)
	})
}

func TestSyncPlanMissingTemplate(t *testing.T) {
	runner, _, _, _ := testFixture(t)

	// No template reconciliation ran, so the subjects resolve to nothing.
	_, err := runner.SyncPlan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPassProvisionsMissingSheet(t *testing.T) {
	runner, _, _, source := testFixture(t)
	source.missing = true
	source.rows = nil

	summary, err := runner.Pass()
	require.NoError(t, err)
	assert.Equal(t, []string{"Contacts"}, source.created)
	assert.Zero(t, summary.Contacts.ContactsCreated)
}

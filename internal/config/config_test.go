package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/internal/config"
	"github.com/phleudt/mailscheduler/internal/placeholder"
	"github.com/phleudt/mailscheduler/internal/reconcile"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
spreadsheet_id: sheet-123
sender: me@example.com
`

func TestLoad(t *testing.T) {
	t.Run("minimal config fills defaults", func(t *testing.T) {
		cfg, err := config.Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)

		assert.Equal(t, "sheet-123", cfg.SpreadsheetID)
		assert.Equal(t, "Contacts", cfg.SheetTitle)
		assert.Equal(t, int64(1), cfg.HeaderRows)
		assert.Equal(t, "D", cfg.Columns.Email)
		assert.Equal(t, string(reconcile.PreferExisting), cfg.ConflictPolicy)
		assert.True(t, cfg.CheckReplies)
		assert.Equal(t, 60, cfg.Loop.DelaySeconds)
		assert.Equal(t, 5, cfg.Loop.MaxIdlePasses)
	})

	t.Run("full config round-trips", func(t *testing.T) {
		cfg, err := config.Load(writeConfig(t, `
spreadsheet_id: sheet-123
sheet_title: Leads
sender: me@example.com
delimiters: "<>"
conflict_policy: create_new
placeholders:
  company:
    column: A
  signoff:
    literal: Best regards
plan:
  name: outreach
  initial_template: Intro offer
  steps:
    - wait_days: 3
      template: First follow up
    - wait_days: 7
      template: Second follow up
`))
		require.NoError(t, err)

		assert.Equal(t, "Leads", cfg.SheetTitle)
		assert.Equal(t, placeholder.Delimiters{Open: '<', Close: '>'}, cfg.ParsedDelimiters())
		assert.Equal(t, "outreach", cfg.Plan.Name)
		require.Len(t, cfg.Plan.Steps, 2)
		assert.Equal(t, 7, cfg.Plan.Steps[1].WaitDays)

		values := cfg.PlaceholderValues()
		assert.Equal(t, placeholder.Value{Column: "A"}, values["company"])
		assert.Equal(t, placeholder.Value{Literal: "Best regards"}, values["signoff"])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "spreadsheet_id: [unclosed"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *config.Config {
		cfg := config.Default()
		cfg.SpreadsheetID = "sheet-123"
		cfg.Sender = "me@example.com"
		return cfg
	}

	t.Run("defaults plus required fields pass", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing spreadsheet", func(c *config.Config) { c.SpreadsheetID = "" }},
		{"missing sender", func(c *config.Config) { c.Sender = "" }},
		{"missing email column", func(c *config.Config) { c.Columns.Email = "" }},
		{"bad delimiters", func(c *config.Config) { c.Delimiters = "{{}" }},
		{"bad conflict policy", func(c *config.Config) { c.ConflictPolicy = "KEEP_BOTH" }},
		{"placeholder with both literal and column", func(c *config.Config) {
			c.Placeholders = map[string]config.PlaceholderSpec{"x": {Literal: "a", Column: "B"}}
		}},
		{"placeholder with neither", func(c *config.Config) {
			c.Placeholders = map[string]config.PlaceholderSpec{"x": {}}
		}},
		{"negative wait", func(c *config.Config) {
			c.Plan.Steps = []config.PlanStep{{WaitDays: -1, Template: "t"}}
		}},
		{"step without template", func(c *config.Config) {
			c.Plan.Steps = []config.PlanStep{{WaitDays: 3}}
		}},
		{"negative loop delay", func(c *config.Config) { c.Loop.DelaySeconds = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	cfg := config.Default()
	cfg.SpreadsheetID = "sheet-123"
	cfg.Sender = "me@example.com"

	require.NoError(t, config.Save(cfg, path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

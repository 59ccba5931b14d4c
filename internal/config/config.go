// Package config loads the mailscheduler configuration file stored next to
// the database at .mailscheduler/config.yaml.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/phleudt/mailscheduler/internal/placeholder"
	"github.com/phleudt/mailscheduler/internal/reconcile"
)

// DefaultConfigFile is the config file name within the .mailscheduler
// directory.
const DefaultConfigFile = "config.yaml"

// Columns names the spreadsheet columns (letters) feeding each field.
type Columns struct {
	Name           string `yaml:"name"`
	Website        string `yaml:"website,omitempty"`
	Phone          string `yaml:"phone,omitempty"`
	Email          string `yaml:"email"`
	Salutation     string `yaml:"salutation,omitempty"`
	Replied        string `yaml:"replied,omitempty"`
	InitialContact string `yaml:"initial_contact,omitempty"`
}

// PlaceholderSpec binds one placeholder key to a literal value or a
// spreadsheet column.
type PlaceholderSpec struct {
	Literal string `yaml:"literal,omitempty"`
	Column  string `yaml:"column,omitempty"`
}

// PlanStep is one configured follow-up step; templates are named by subject.
type PlanStep struct {
	WaitDays int    `yaml:"wait_days"`
	Template string `yaml:"template"`
}

// Plan is the configured follow-up plan.
type Plan struct {
	Name            string     `yaml:"name"`
	InitialTemplate string     `yaml:"initial_template"`
	Steps           []PlanStep `yaml:"steps"`
}

// Loop controls the run command's pass loop.
type Loop struct {
	DelaySeconds  int `yaml:"delay_seconds"`
	MaxIdlePasses int `yaml:"max_idle_passes"`
}

// Config represents the contents of config.yaml.
type Config struct {
	SpreadsheetID  string                     `yaml:"spreadsheet_id"`
	SheetTitle     string                     `yaml:"sheet_title"`
	Sender         string                     `yaml:"sender"`
	CredentialsDir string                     `yaml:"credentials_dir,omitempty"`
	HeaderRows     int64                      `yaml:"header_rows"`
	Columns        Columns                    `yaml:"columns"`
	Placeholders   map[string]PlaceholderSpec `yaml:"placeholders,omitempty"`
	Delimiters     string                     `yaml:"delimiters"`
	ConflictPolicy string                     `yaml:"conflict_policy"`
	CheckReplies   bool                       `yaml:"check_replies"`
	Plan           Plan                       `yaml:"plan"`
	Loop           Loop                       `yaml:"loop"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns a config with usable loop and parsing defaults; the
// spreadsheet, sender, and plan still have to be filled in.
func Default() *Config {
	return &Config{
		SheetTitle: "Contacts",
		HeaderRows: 1,
		Columns: Columns{
			Name:       "A",
			Website:    "B",
			Phone:      "C",
			Email:      "D",
			Salutation: "E",
		},
		Delimiters:     "{}",
		ConflictPolicy: string(reconcile.PreferExisting),
		CheckReplies:   true,
		Plan: Plan{
			Name: "default",
		},
		Loop: Loop{
			DelaySeconds:  60,
			MaxIdlePasses: 5,
		},
	}
}

// Validate rejects configs the pass loop cannot run with.
func (c *Config) Validate() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet_id is required")
	}
	if c.SheetTitle == "" {
		return fmt.Errorf("sheet_title is required")
	}
	if c.Sender == "" {
		return fmt.Errorf("sender is required")
	}
	if c.Columns.Email == "" {
		return fmt.Errorf("columns.email is required")
	}
	if _, err := placeholder.ParseDelimiters(c.Delimiters); err != nil {
		return err
	}
	if _, err := reconcile.ParseConflictPolicy(c.ConflictPolicy); err != nil {
		return err
	}
	for key, spec := range c.Placeholders {
		if (spec.Literal == "") == (spec.Column == "") {
			return fmt.Errorf("placeholder %q must set exactly one of literal or column", key)
		}
	}
	for i, step := range c.Plan.Steps {
		if step.WaitDays < 0 {
			return fmt.Errorf("plan step %d: wait_days must be non-negative", i+1)
		}
		if step.Template == "" {
			return fmt.Errorf("plan step %d: template is required", i+1)
		}
	}
	if c.Loop.DelaySeconds < 0 {
		return fmt.Errorf("loop.delay_seconds must be non-negative")
	}
	return nil
}

// PlaceholderValues converts the configured specs into resolver bindings.
func (c *Config) PlaceholderValues() map[string]placeholder.Value {
	values := make(map[string]placeholder.Value, len(c.Placeholders))
	for key, spec := range c.Placeholders {
		values[key] = placeholder.Value{Literal: spec.Literal, Column: spec.Column}
	}
	return values
}

// ParsedDelimiters returns the validated delimiter pair.
func (c *Config) ParsedDelimiters() placeholder.Delimiters {
	d, err := placeholder.ParseDelimiters(c.Delimiters)
	if err != nil {
		return placeholder.DefaultDelimiters
	}
	return d
}

// ColumnMap converts the configured columns for the contact reconciler.
func (c *Config) ColumnMap() reconcile.ColumnMap {
	return reconcile.ColumnMap{
		Name:           c.Columns.Name,
		Website:        c.Columns.Website,
		Phone:          c.Columns.Phone,
		Email:          c.Columns.Email,
		Salutation:     c.Columns.Salutation,
		Replied:        c.Columns.Replied,
		InitialContact: c.Columns.InitialContact,
	}
}

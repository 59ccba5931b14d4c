package db

import (
	"database/sql"

	"github.com/phleudt/mailscheduler/internal/types"
)

// --- FollowUpPlan operations ---

// InsertPlan inserts a plan, assigning ID and CreatedAt if unset.
func (d *DB) InsertPlan(p *types.FollowUpPlan) error {
	if p.ID == "" {
		p.ID = GenID()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = Now()
	}
	_, err := d.conn.Exec(`
		INSERT INTO followup_plans (id, name, initial_template_id, created_at)
		VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, nullStr(p.InitialTemplateID), p.CreatedAt,
	)
	return err
}

// PlanByName returns the plan with the given name, or nil if absent.
func (d *DB) PlanByName(name string) (*types.FollowUpPlan, error) {
	p := &types.FollowUpPlan{}
	var initialTemplate sql.NullString
	err := d.conn.QueryRow(`
		SELECT id, name, initial_template_id, created_at
		FROM followup_plans WHERE name = ?`, name).Scan(
		&p.ID, &p.Name, &initialTemplate, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.InitialTemplateID = initialTemplate.String
	return p, nil
}

// SetPlanInitialTemplate links the template used for a plan's initial email.
func (d *DB) SetPlanInitialTemplate(planID, templateID string) error {
	_, err := d.conn.Exec(
		"UPDATE followup_plans SET initial_template_id = ? WHERE id = ?",
		nullStr(templateID), planID,
	)
	return err
}

// StepsByPlan returns a plan's steps ordered by step number.
func (d *DB) StepsByPlan(planID string) ([]*types.FollowUpStep, error) {
	rows, err := d.conn.Query(`
		SELECT id, plan_id, step_number, wait_days, template_id
		FROM followup_steps
		WHERE plan_id = ?
		ORDER BY step_number`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*types.FollowUpStep
	for rows.Next() {
		s := &types.FollowUpStep{}
		if err := rows.Scan(&s.ID, &s.PlanID, &s.StepNumber, &s.WaitDays, &s.TemplateID); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// ReplacePlanSteps rewrites a plan's step list atomically.
func (d *DB) ReplacePlanSteps(planID string, steps []*types.FollowUpStep) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM followup_steps WHERE plan_id = ?", planID); err != nil {
		return err
	}
	for _, s := range steps {
		if s.ID == "" {
			s.ID = GenID()
		}
		s.PlanID = planID
		if _, err := tx.Exec(`
			INSERT INTO followup_steps (id, plan_id, step_number, wait_days, template_id)
			VALUES (?, ?, ?, ?, ?)`,
			s.ID, s.PlanID, s.StepNumber, s.WaitDays, s.TemplateID,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

package db

import (
	"database/sql"

	"github.com/phleudt/mailscheduler/internal/types"
)

// --- Template operations ---

// InsertTemplate inserts a template, assigning ID and CreatedAt if unset.
func (d *DB) InsertTemplate(t *types.Template) error {
	if t.ID == "" {
		t.ID = GenID()
	}
	if t.CreatedAt == "" {
		t.CreatedAt = Now()
	}
	_, err := d.conn.Exec(`
		INSERT INTO templates (id, subject, body, type, draft_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Subject, nullStr(t.Body), t.Type, nullStr(t.DraftID), t.CreatedAt,
	)
	return err
}

// UpdateTemplate updates a template's content, type, and draft link by ID.
func (d *DB) UpdateTemplate(t *types.Template) error {
	t.UpdatedAt = Now()
	_, err := d.conn.Exec(`
		UPDATE templates SET subject = ?, body = ?, type = ?, draft_id = ?, updated_at = ?
		WHERE id = ?`,
		t.Subject, nullStr(t.Body), t.Type, nullStr(t.DraftID), t.UpdatedAt, t.ID,
	)
	return err
}

// ClearTemplateDraft disconnects a template from a deleted external draft,
// keeping its content.
func (d *DB) ClearTemplateDraft(id string) error {
	_, err := d.conn.Exec(
		"UPDATE templates SET draft_id = NULL, updated_at = ? WHERE id = ?", Now(), id)
	return err
}

// AllTemplates returns every template.
func (d *DB) AllTemplates() ([]*types.Template, error) {
	rows, err := d.conn.Query(selectTemplate + " ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTemplates(rows)
}

// TemplateByID returns one template, or nil if absent.
func (d *DB) TemplateByID(id string) (*types.Template, error) {
	return d.oneTemplate(selectTemplate+" WHERE id = ?", id)
}

// TemplateBySubject returns the template with an exact subject match,
// or nil if absent.
func (d *DB) TemplateBySubject(subject string) (*types.Template, error) {
	return d.oneTemplate(selectTemplate+" WHERE subject = ? ORDER BY created_at LIMIT 1", subject)
}

// TemplateByType returns the oldest template of the given type, or nil.
// Used to resolve DEFAULT_* fallbacks.
func (d *DB) TemplateByType(typ string) (*types.Template, error) {
	return d.oneTemplate(selectTemplate+" WHERE type = ? ORDER BY created_at LIMIT 1", typ)
}

// TemplateSubjectExists checks whether any template uses the given subject.
func (d *DB) TemplateSubjectExists(subject string) bool {
	var n int
	d.conn.QueryRow("SELECT 1 FROM templates WHERE subject = ? LIMIT 1", subject).Scan(&n)
	return n == 1
}

// TemplateCount returns the total number of templates.
func (d *DB) TemplateCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM templates").Scan(&n)
	return n
}

func (d *DB) oneTemplate(query string, args ...any) (*types.Template, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list, err := scanTemplates(rows)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

const selectTemplate = `
	SELECT id, subject, body, type, draft_id, created_at, updated_at
	FROM templates`

func scanTemplates(rows *sql.Rows) ([]*types.Template, error) {
	var result []*types.Template
	for rows.Next() {
		t := &types.Template{}
		var body, draftID, updatedAt sql.NullString
		if err := rows.Scan(&t.ID, &t.Subject, &body, &t.Type, &draftID, &t.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		t.Body = body.String
		t.DraftID = draftID.String
		t.UpdatedAt = updatedAt.String
		result = append(result, t)
	}
	return result, rows.Err()
}

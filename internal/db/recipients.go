package db

import (
	"database/sql"

	"github.com/phleudt/mailscheduler/internal/types"
)

// --- Recipient operations ---

// InsertRecipient inserts a recipient, assigning ID and CreatedAt if unset.
func (d *DB) InsertRecipient(r *types.Recipient) error {
	if r.ID == "" {
		r.ID = GenID()
	}
	if r.CreatedAt == "" {
		r.CreatedAt = Now()
	}
	_, err := d.conn.Exec(`
		INSERT INTO recipients
			(id, contact_id, email_address, salutation, plan_id, has_replied, thread_id, initial_contact_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ContactID, r.EmailAddress, nullStr(r.Salutation), nullStr(r.PlanID),
		boolInt(r.HasReplied), nullStr(r.ThreadID), nullStr(r.InitialContactAt), r.CreatedAt,
	)
	return err
}

// UpdateRecipient updates a recipient's mutable fields by ID.
func (d *DB) UpdateRecipient(r *types.Recipient) error {
	r.UpdatedAt = Now()
	_, err := d.conn.Exec(`
		UPDATE recipients SET salutation = ?, plan_id = ?, has_replied = ?, initial_contact_at = ?, updated_at = ?
		WHERE id = ?`,
		nullStr(r.Salutation), nullStr(r.PlanID), boolInt(r.HasReplied),
		nullStr(r.InitialContactAt), r.UpdatedAt, r.ID,
	)
	return err
}

// SetRecipientThread records the mail thread that groups a recipient's
// conversation. Follow-up creation copies this forward onto every email.
func (d *DB) SetRecipientThread(id, threadID string) error {
	_, err := d.conn.Exec(
		"UPDATE recipients SET thread_id = ?, updated_at = ? WHERE id = ?",
		nullStr(threadID), Now(), id,
	)
	return err
}

// MarkRecipientReplied sets the reply flag on a recipient.
func (d *DB) MarkRecipientReplied(id string) error {
	_, err := d.conn.Exec(
		"UPDATE recipients SET has_replied = 1, updated_at = ? WHERE id = ?",
		Now(), id,
	)
	return err
}

// RecipientsByContact returns all recipients owned by a contact.
func (d *DB) RecipientsByContact(contactID string) ([]*types.Recipient, error) {
	rows, err := d.conn.Query(selectRecipient+" WHERE contact_id = ? ORDER BY email_address", contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecipients(rows)
}

// AllRecipients returns every recipient, ordered by creation time.
func (d *DB) AllRecipients() ([]*types.Recipient, error) {
	rows, err := d.conn.Query(selectRecipient + " ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecipients(rows)
}

// RecipientByID returns one recipient, or nil if absent.
func (d *DB) RecipientByID(id string) (*types.Recipient, error) {
	rows, err := d.conn.Query(selectRecipient+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list, err := scanRecipients(rows)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// RecipientCount returns the total number of recipients.
func (d *DB) RecipientCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM recipients").Scan(&n)
	return n
}

const selectRecipient = `
	SELECT id, contact_id, email_address, salutation, plan_id, has_replied,
	       thread_id, initial_contact_at, created_at, updated_at
	FROM recipients`

func scanRecipients(rows *sql.Rows) ([]*types.Recipient, error) {
	var result []*types.Recipient
	for rows.Next() {
		r := &types.Recipient{}
		var salutation, planID, threadID, initialAt, updatedAt sql.NullString
		var replied int
		if err := rows.Scan(
			&r.ID, &r.ContactID, &r.EmailAddress, &salutation, &planID, &replied,
			&threadID, &initialAt, &r.CreatedAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		r.Salutation = salutation.String
		r.PlanID = planID.String
		r.HasReplied = replied != 0
		r.ThreadID = threadID.String
		r.InitialContactAt = initialAt.String
		r.UpdatedAt = updatedAt.String
		result = append(result, r)
	}
	return result, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

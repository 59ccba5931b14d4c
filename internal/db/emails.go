package db

import (
	"database/sql"
	"fmt"

	"github.com/phleudt/mailscheduler/internal/types"
)

// --- Email operations ---

// InsertEmail persists one scheduled email, assigning ID and CreatedAt if
// unset. Each email is written individually so a failure mid-recipient does
// not lose already-scheduled siblings.
func (d *DB) InsertEmail(e *types.Email) error {
	if e.ID == "" {
		e.ID = GenID()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = Now()
	}
	_, err := d.conn.Exec(`
		INSERT INTO emails
			(id, recipient_id, from_addr, to_addr, subject, body, type, status,
			 followup_number, thread_id, initial_email_id, scheduled_at, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RecipientID, e.FromAddr, e.ToAddr, e.Subject, nullStr(e.Body),
		e.Type, e.Status, e.FollowupNumber, nullStr(e.ThreadID),
		nullStr(e.InitialEmailID), e.ScheduledAt, nullStr(e.SentAt), e.CreatedAt,
	)
	return err
}

// EmailsByRecipient returns a recipient's emails in creation order.
func (d *DB) EmailsByRecipient(recipientID string) ([]*types.Email, error) {
	rows, err := d.conn.Query(selectEmail+`
		WHERE recipient_id = ?
		ORDER BY created_at, followup_number`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmails(rows)
}

// EmailByID returns one email, or nil if absent.
func (d *DB) EmailByID(id string) (*types.Email, error) {
	rows, err := d.conn.Query(selectEmail+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list, err := scanEmails(rows)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// DueEmails returns PENDING emails whose scheduled date is at or before now,
// oldest first.
func (d *DB) DueEmails(now string) ([]*types.Email, error) {
	rows, err := d.conn.Query(selectEmail+`
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at, followup_number`, types.StatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmails(rows)
}

// UpdateEmailStatus records a dispatch outcome. sentAt may be empty for
// failures and cancellations.
func (d *DB) UpdateEmailStatus(id, status, sentAt string) error {
	if !types.IsValidStatus(status) {
		return fmt.Errorf("invalid email status %q", status)
	}
	res, err := d.conn.Exec(
		"UPDATE emails SET status = ?, sent_at = ? WHERE id = ?",
		status, nullStr(sentAt), id,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("email %q not found", id)
	}
	return nil
}

// SetEmailThread records the thread assigned by the mail service after the
// first send in a sequence.
func (d *DB) SetEmailThread(id, threadID string) error {
	_, err := d.conn.Exec("UPDATE emails SET thread_id = ? WHERE id = ?", nullStr(threadID), id)
	return err
}

// CancelPendingEmails marks all of a recipient's PENDING emails CANCELLED
// and returns how many were affected.
func (d *DB) CancelPendingEmails(recipientID string) (int, error) {
	res, err := d.conn.Exec(
		"UPDATE emails SET status = ? WHERE recipient_id = ? AND status = ?",
		types.StatusCancelled, recipientID, types.StatusPending,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// EmailCountByStatus returns email counts grouped by status.
func (d *DB) EmailCountByStatus() (map[string]int, error) {
	rows, err := d.conn.Query("SELECT status, COUNT(*) FROM emails GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{
		types.StatusPending: 0, types.StatusSent: 0,
		types.StatusFailed: 0, types.StatusCancelled: 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// EmailCount returns the total number of emails.
func (d *DB) EmailCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM emails").Scan(&n)
	return n
}

const selectEmail = `
	SELECT id, recipient_id, from_addr, to_addr, subject, body, type, status,
	       followup_number, thread_id, initial_email_id, scheduled_at, sent_at, created_at
	FROM emails`

func scanEmails(rows *sql.Rows) ([]*types.Email, error) {
	var result []*types.Email
	for rows.Next() {
		e := &types.Email{}
		var body, threadID, initialID, sentAt sql.NullString
		if err := rows.Scan(
			&e.ID, &e.RecipientID, &e.FromAddr, &e.ToAddr, &e.Subject, &body,
			&e.Type, &e.Status, &e.FollowupNumber, &threadID, &initialID,
			&e.ScheduledAt, &sentAt, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Body = body.String
		e.ThreadID = threadID.String
		e.InitialEmailID = initialID.String
		e.SentAt = sentAt.String
		result = append(result, e)
	}
	return result, rows.Err()
}

package db

import (
	"database/sql"

	"github.com/phleudt/mailscheduler/internal/types"
)

// --- Contact operations ---

// InsertContact inserts a contact, assigning ID and CreatedAt if unset.
func (d *DB) InsertContact(c *types.Contact) error {
	if c.ID == "" {
		c.ID = GenID()
	}
	if c.CreatedAt == "" {
		c.CreatedAt = Now()
	}
	_, err := d.conn.Exec(`
		INSERT INTO contacts (id, sheet_title, row_number, name, website, phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SheetTitle, c.RowNumber, c.Name, nullStr(c.Website), nullStr(c.Phone), c.CreatedAt,
	)
	return err
}

// UpdateContact updates a contact's mutable fields by ID.
func (d *DB) UpdateContact(c *types.Contact) error {
	c.UpdatedAt = Now()
	_, err := d.conn.Exec(`
		UPDATE contacts SET name = ?, website = ?, phone = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, nullStr(c.Website), nullStr(c.Phone), c.UpdatedAt, c.ID,
	)
	return err
}

// ContactBySheetRow returns the contact at (sheet, row), or nil if none exists.
func (d *DB) ContactBySheetRow(sheet string, row int64) (*types.Contact, error) {
	c := &types.Contact{}
	var website, phone, updatedAt sql.NullString
	err := d.conn.QueryRow(`
		SELECT id, sheet_title, row_number, name, website, phone, created_at, updated_at
		FROM contacts
		WHERE sheet_title = ? AND row_number = ?`, sheet, row).Scan(
		&c.ID, &c.SheetTitle, &c.RowNumber, &c.Name, &website, &phone, &c.CreatedAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Website = website.String
	c.Phone = phone.String
	c.UpdatedAt = updatedAt.String
	return c, nil
}

// ContactByID returns one contact, or nil if absent.
func (d *DB) ContactByID(id string) (*types.Contact, error) {
	c := &types.Contact{}
	var website, phone, updatedAt sql.NullString
	err := d.conn.QueryRow(`
		SELECT id, sheet_title, row_number, name, website, phone, created_at, updated_at
		FROM contacts WHERE id = ?`, id).Scan(
		&c.ID, &c.SheetTitle, &c.RowNumber, &c.Name, &website, &phone, &c.CreatedAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Website = website.String
	c.Phone = phone.String
	c.UpdatedAt = updatedAt.String
	return c, nil
}

// ContactRowIndex returns a row number → contact ID map for one sheet,
// built once per reconciliation pass.
func (d *DB) ContactRowIndex(sheet string) (map[int64]string, error) {
	rows, err := d.conn.Query(
		"SELECT row_number, id FROM contacts WHERE sheet_title = ?", sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	index := make(map[int64]string)
	for rows.Next() {
		var row int64
		var id string
		if err := rows.Scan(&row, &id); err != nil {
			return nil, err
		}
		index[row] = id
	}
	return index, rows.Err()
}

// ContactCount returns the total number of contacts.
func (d *DB) ContactCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM contacts").Scan(&n)
	return n
}

// Package reconcile keeps the local store consistent with the contact
// spreadsheet and the external draft store across repeated passes.
package reconcile

import (
	"fmt"
	"os"
	"strings"

	"github.com/phleudt/mailscheduler/internal/sheets"
	"github.com/phleudt/mailscheduler/internal/types"
)

// ContactStore is the persistence surface contact/recipient reconciliation
// writes to.
type ContactStore interface {
	ContactBySheetRow(sheet string, row int64) (*types.Contact, error)
	InsertContact(c *types.Contact) error
	UpdateContact(c *types.Contact) error
	ContactRowIndex(sheet string) (map[int64]string, error)
	RecipientsByContact(contactID string) ([]*types.Recipient, error)
	InsertRecipient(r *types.Recipient) error
	UpdateRecipient(r *types.Recipient) error
}

// ColumnMap names the spreadsheet columns (by letter) that feed each
// contact/recipient field. Email is required; the rest are optional.
type ColumnMap struct {
	Name           string
	Website        string
	Phone          string
	Email          string
	Salutation     string
	Replied        string
	InitialContact string
}

// ContactReconciler diffs spreadsheet rows against the local
// contact/recipient store with minimal writes.
type ContactReconciler struct {
	store         ContactStore
	source        sheets.Gateway
	sheet         string
	columns       ColumnMap
	headerRows    int64
	defaultPlanID string
	quiet         bool
}

// NewContactReconciler wires a reconciler for one sheet. headerRows rows at
// the top are skipped; new recipients are linked to defaultPlanID.
func NewContactReconciler(store ContactStore, source sheets.Gateway, sheet string,
	columns ColumnMap, headerRows int64, defaultPlanID string, quiet bool) *ContactReconciler {
	return &ContactReconciler{
		store:         store,
		source:        source,
		sheet:         sheet,
		columns:       columns,
		headerRows:    headerRows,
		defaultPlanID: defaultPlanID,
		quiet:         quiet,
	}
}

// candidate pairs one parsed row's contact with its recipients, tagged by
// row number so recipients can be matched back after contacts persist.
type candidate struct {
	row        int64
	contact    *types.Contact
	recipients []*types.Recipient
}

// Sync runs one reconciliation pass: read rows, upsert contacts, then
// resolve and upsert recipients through a row→contact index built once.
// Running Sync twice on identical input performs zero writes the second time.
func (c *ContactReconciler) Sync() (*types.ContactSyncStats, error) {
	rows, err := c.source.ReadRows(c.sheet, c.headerRows+1)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", c.sheet, err)
	}

	candidates := c.parseRows(rows)
	stats := &types.ContactSyncStats{}

	for _, cand := range candidates {
		if cand.contact == nil {
			continue
		}
		if err := c.syncContact(cand.contact, stats); err != nil {
			return stats, err
		}
	}

	// One index for the whole pass instead of a lookup per recipient.
	index, err := c.store.ContactRowIndex(c.sheet)
	if err != nil {
		return stats, fmt.Errorf("index contacts: %w", err)
	}

	existingByContact := make(map[string][]*types.Recipient)
	for _, cand := range candidates {
		for _, rec := range cand.recipients {
			contactID, ok := index[cand.row]
			if !ok {
				stats.RecipientsSkipped++
				if !c.quiet {
					fmt.Fprintf(os.Stderr, "  ! row %d: no contact for recipient %s\n", cand.row, rec.EmailAddress)
				}
				continue
			}
			rec.ContactID = contactID
			if err := c.syncRecipient(rec, existingByContact, stats); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

// parseRows builds contact and recipient candidates in one pass over the
// sheet. A row with a name yields a contact; each address in the email cell
// yields a recipient.
func (c *ContactReconciler) parseRows(rows [][]string) []candidate {
	var out []candidate
	for i, row := range rows {
		rowNumber := c.headerRows + int64(i) + 1
		cand := candidate{row: rowNumber}

		name := cellAt(row, c.columns.Name)
		if name != "" {
			cand.contact = &types.Contact{
				SheetTitle: c.sheet,
				RowNumber:  rowNumber,
				Name:       name,
				Website:    cellAt(row, c.columns.Website),
				Phone:      cellAt(row, c.columns.Phone),
			}
		}

		for _, addr := range splitAddresses(cellAt(row, c.columns.Email)) {
			cand.recipients = append(cand.recipients, &types.Recipient{
				EmailAddress:     addr,
				Salutation:       cellAt(row, c.columns.Salutation),
				PlanID:           c.defaultPlanID,
				HasReplied:       parseBool(cellAt(row, c.columns.Replied)),
				InitialContactAt: cellAt(row, c.columns.InitialContact),
			})
		}

		if cand.contact != nil || len(cand.recipients) > 0 {
			out = append(out, cand)
		}
	}
	return out
}

// syncContact creates, updates, or no-ops one candidate against the store.
func (c *ContactReconciler) syncContact(cand *types.Contact, stats *types.ContactSyncStats) error {
	existing, err := c.store.ContactBySheetRow(cand.SheetTitle, cand.RowNumber)
	if err != nil {
		return fmt.Errorf("lookup contact row %d: %w", cand.RowNumber, err)
	}
	if existing == nil {
		if err := c.store.InsertContact(cand); err != nil {
			return fmt.Errorf("create contact row %d: %w", cand.RowNumber, err)
		}
		stats.ContactsCreated++
		return nil
	}
	if existing.FieldsEqual(cand) {
		stats.ContactsUnchanged++
		return nil
	}
	existing.Name = cand.Name
	existing.Website = cand.Website
	existing.Phone = cand.Phone
	if err := c.store.UpdateContact(existing); err != nil {
		return fmt.Errorf("update contact row %d: %w", existing.RowNumber, err)
	}
	stats.ContactsUpdated++
	return nil
}

// syncRecipient matches a candidate by email within its contact, updating
// only mutable fields; identity and thread state are preserved.
func (c *ContactReconciler) syncRecipient(cand *types.Recipient,
	cache map[string][]*types.Recipient, stats *types.ContactSyncStats) error {
	existing, ok := cache[cand.ContactID]
	if !ok {
		var err error
		existing, err = c.store.RecipientsByContact(cand.ContactID)
		if err != nil {
			return fmt.Errorf("lookup recipients for %s: %w", cand.ContactID, err)
		}
		cache[cand.ContactID] = existing
	}

	for _, r := range existing {
		if !strings.EqualFold(r.EmailAddress, cand.EmailAddress) {
			continue
		}
		if r.FieldsEqual(cand) {
			stats.RecipientsUnchanged++
			return nil
		}
		r.Salutation = cand.Salutation
		r.HasReplied = cand.HasReplied
		r.InitialContactAt = cand.InitialContactAt
		if err := c.store.UpdateRecipient(r); err != nil {
			return fmt.Errorf("update recipient %s: %w", r.EmailAddress, err)
		}
		stats.RecipientsUpdated++
		return nil
	}

	if err := c.store.InsertRecipient(cand); err != nil {
		return fmt.Errorf("create recipient %s: %w", cand.EmailAddress, err)
	}
	cache[cand.ContactID] = append(cache[cand.ContactID], cand)
	stats.RecipientsCreated++
	return nil
}

// cellAt reads the cell under a column letter, "" when the column is
// unconfigured or the row is short.
func cellAt(row []string, column string) string {
	if column == "" {
		return ""
	}
	idx := sheets.ColumnIndex(column)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// splitAddresses splits a cell holding one or more addresses separated by
// commas or semicolons.
func splitAddresses(cell string) []string {
	if cell == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(cell, func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		addr := strings.TrimSpace(part)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func parseBool(cell string) bool {
	switch strings.ToLower(cell) {
	case "yes", "true", "y", "1", "x":
		return true
	}
	return false
}

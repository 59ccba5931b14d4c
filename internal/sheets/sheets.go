// Package sheets provides Google Sheets API operations for mailscheduler.
//
// It is the tabular-source gateway: contact rows are read from a spreadsheet
// and placeholder cell references are fetched in batched reads.
package sheets

import (
	"fmt"
	"strings"

	sh "google.golang.org/api/sheets/v4"
)

// CellRef addresses a single cell by sheet title, column letter, and
// 1-based row number.
type CellRef struct {
	Sheet  string
	Column string
	Row    int64
}

// A1 renders the reference in A1 notation, e.g. "'Leads'!A5".
func (c CellRef) A1() string {
	return fmt.Sprintf("'%s'!%s%d", escapeSheet(c.Sheet), c.Column, c.Row)
}

// CellWrite is one cell update for a batched write.
type CellWrite struct {
	Ref   CellRef
	Value string
}

// Gateway is the tabular-source contract the reconcilers and the placeholder
// resolver consume. Implementations outside tests talk to the Sheets API.
type Gateway interface {
	// BatchGetCells fetches the listed cells in one call, returning values
	// parallel to refs. Missing cells come back as "".
	BatchGetCells(refs []CellRef) ([]string, error)
	// BatchSetCells writes the listed cells in one call.
	BatchSetCells(writes []CellWrite) error
	// ReadRows returns the populated rows of a sheet starting at startRow
	// (1-based), each row as a slice of cell strings.
	ReadRows(sheet string, startRow int64) ([][]string, error)
	// SheetExists reports whether a sheet with the given title exists.
	SheetExists(title string) (bool, error)
	// CreateSheet adds an empty sheet with the given title.
	CreateSheet(title string) error
}

// Client implements Gateway against one spreadsheet.
type Client struct {
	svc           *sh.Service
	spreadsheetID string
}

// NewClient returns a gateway bound to the given spreadsheet.
func NewClient(svc *sh.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// BatchGetCells fetches all refs in a single BatchGet call.
func (c *Client) BatchGetCells(refs []CellRef) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	ranges := make([]string, len(refs))
	for i, r := range refs {
		ranges[i] = r.A1()
	}

	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).Ranges(ranges...).Do()
	if err != nil {
		return nil, fmt.Errorf("batch get %d ranges: %w", len(ranges), err)
	}
	if len(resp.ValueRanges) != len(refs) {
		return nil, fmt.Errorf("batch get returned %d ranges for %d refs", len(resp.ValueRanges), len(refs))
	}

	values := make([]string, len(refs))
	for i, vr := range resp.ValueRanges {
		values[i] = firstCell(vr)
	}
	return values, nil
}

// BatchSetCells writes all cells in a single BatchUpdate call.
func (c *Client) BatchSetCells(writes []CellWrite) error {
	if len(writes) == 0 {
		return nil
	}
	data := make([]*sh.ValueRange, len(writes))
	for i, w := range writes {
		data[i] = &sh.ValueRange{
			Range:  w.Ref.A1(),
			Values: [][]any{{w.Value}},
		}
	}
	req := &sh.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Do(); err != nil {
		return fmt.Errorf("batch update %d cells: %w", len(writes), err)
	}
	return nil
}

// ReadRows fetches the populated rows of a sheet from startRow down.
func (c *Client) ReadRows(sheet string, startRow int64) ([][]string, error) {
	rng := fmt.Sprintf("'%s'!A%d:Z", escapeSheet(sheet), startRow)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Do()
	if err != nil {
		return nil, fmt.Errorf("read rows from %s: %w", rng, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SheetExists checks the spreadsheet's sheet list for a title.
func (c *Client) SheetExists(title string) (bool, error) {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Do()
	if err != nil {
		return false, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return true, nil
		}
	}
	return false, nil
}

// CreateSheet adds an empty sheet with the given title.
func (c *Client) CreateSheet(title string) error {
	req := &sh.BatchUpdateSpreadsheetRequest{
		Requests: []*sh.Request{{
			AddSheet: &sh.AddSheetRequest{
				Properties: &sh.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Do(); err != nil {
		return fmt.Errorf("create sheet %q: %w", title, err)
	}
	return nil
}

// firstCell returns the top-left cell of a value range as a string.
func firstCell(vr *sh.ValueRange) string {
	if vr == nil || len(vr.Values) == 0 || len(vr.Values[0]) == 0 {
		return ""
	}
	return fmt.Sprint(vr.Values[0][0])
}

// escapeSheet doubles single quotes so titles survive A1 quoting.
func escapeSheet(title string) string {
	return strings.ReplaceAll(title, "'", "''")
}

// ColumnIndex converts a column letter ("A".."Z", "AA"..) to a 0-based index.
// Returns -1 for an invalid column.
func ColumnIndex(column string) int {
	if column == "" {
		return -1
	}
	idx := 0
	for _, r := range strings.ToUpper(column) {
		if r < 'A' || r > 'Z' {
			return -1
		}
		idx = idx*26 + int(r-'A') + 1
	}
	return idx - 1
}

// Package placeholder extracts named placeholders from template text and
// resolves them to literal strings, batching spreadsheet lookups.
package placeholder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/phleudt/mailscheduler/internal/sheets"
)

// ErrEmptyCell marks a resolved spreadsheet cell with no value. It is a
// data-quality failure for the one recipient being resolved, not for the pass.
var ErrEmptyCell = errors.New("placeholder resolved to empty cell")

// Delimiters is the pair of characters that bracket a placeholder token
// inside template text.
type Delimiters struct {
	Open  rune
	Close rune
}

// DefaultDelimiters brackets placeholders in curly braces.
var DefaultDelimiters = Delimiters{Open: '{', Close: '}'}

// ParseDelimiters reads a two-character delimiter pair like "{}" or "<>".
func ParseDelimiters(s string) (Delimiters, error) {
	r := []rune(s)
	if len(r) != 2 {
		return Delimiters{}, fmt.Errorf("delimiters must be exactly two characters, got %q", s)
	}
	if r[0] == r[1] {
		return Delimiters{}, fmt.Errorf("open and close delimiters must differ, got %q", s)
	}
	return Delimiters{Open: r[0], Close: r[1]}, nil
}

// Extract returns the distinct placeholder keys found in text, in order of
// first appearance. An unclosed opener is ignored rather than rejected, so
// template authors can use the open character literally at the end of a line.
func Extract(text string, d Delimiters) []string {
	var keys []string
	seen := make(map[string]struct{})

	for i := 0; i < len(text); {
		open := strings.IndexRune(text[i:], d.Open)
		if open < 0 {
			break
		}
		start := i + open + len(string(d.Open))
		closeIdx := strings.IndexRune(text[start:], d.Close)
		if closeIdx < 0 {
			break
		}
		key := text[start : start+closeIdx]
		if key != "" && !strings.ContainsRune(key, d.Open) {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
		}
		i = start + closeIdx + len(string(d.Close))
	}
	return keys
}

// Value is one placeholder binding: either a literal string or a reference
// to a spreadsheet column, combined with a row at resolution time.
type Value struct {
	Literal string
	Column  string
}

// IsColumnRef reports whether the value must be read from the spreadsheet.
func (v Value) IsColumnRef() bool {
	return v.Column != ""
}

// Reader is the subset of the tabular-source gateway the resolver needs:
// one batched read over a list of cell references.
type Reader interface {
	BatchGetCells(refs []sheets.CellRef) ([]string, error)
}

// Resolver turns placeholder bindings into a flat key→string map for one
// recipient at a time.
type Resolver struct {
	source Reader
	sheet  string
}

// NewResolver returns a resolver reading column references from the given
// sheet.
func NewResolver(source Reader, sheet string) *Resolver {
	return &Resolver{source: source, sheet: sheet}
}

// Resolve produces the literal value for every key in values, binding column
// references to row. All column references are fetched in a single batched
// read. An empty fetched cell fails resolution with ErrEmptyCell; literal
// values never touch the spreadsheet.
func (r *Resolver) Resolve(values map[string]Value, row int64) (map[string]string, error) {
	resolved := make(map[string]string, len(values))

	var refKeys []string
	var refs []sheets.CellRef
	for key, v := range values {
		if v.IsColumnRef() {
			refKeys = append(refKeys, key)
			refs = append(refs, sheets.CellRef{Sheet: r.sheet, Column: v.Column, Row: row})
		} else {
			resolved[key] = v.Literal
		}
	}

	if len(refs) == 0 {
		return resolved, nil
	}

	cells, err := r.source.BatchGetCells(refs)
	if err != nil {
		return nil, fmt.Errorf("batch read %d cells: %w", len(refs), err)
	}
	if len(cells) != len(refs) {
		return nil, fmt.Errorf("batch read returned %d values for %d cells", len(cells), len(refs))
	}

	for i, key := range refKeys {
		if cells[i] == "" {
			return nil, fmt.Errorf("placeholder %q at %s: %w", key, refs[i].A1(), ErrEmptyCell)
		}
		resolved[key] = cells[i]
	}
	return resolved, nil
}

// Apply substitutes resolved values into text. Unknown placeholders are left
// in place so the gap is visible in the generated email.
func Apply(text string, values map[string]string, d Delimiters) string {
	for key, val := range values {
		token := string(d.Open) + key + string(d.Close)
		text = strings.ReplaceAll(text, token, val)
	}
	return text
}

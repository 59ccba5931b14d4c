package placeholder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/internal/placeholder"
	"github.com/phleudt/mailscheduler/internal/sheets"
)

// fakeReader records batched reads and serves canned cell values keyed by
// A1 notation.
type fakeReader struct {
	cells map[string]string
	calls int
	got   [][]sheets.CellRef
}

func (f *fakeReader) BatchGetCells(refs []sheets.CellRef) ([]string, error) {
	f.calls++
	f.got = append(f.got, refs)
	values := make([]string, len(refs))
	for i, r := range refs {
		values[i] = f.cells[r.A1()]
	}
	return values, nil
}

func TestParseDelimiters(t *testing.T) {
	t.Parallel()

	t.Run("valid pair", func(t *testing.T) {
		d, err := placeholder.ParseDelimiters("{}")
		require.NoError(t, err)
		assert.Equal(t, '{', d.Open)
		assert.Equal(t, '}', d.Close)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := placeholder.ParseDelimiters("{")
		assert.Error(t, err)
	})

	t.Run("identical characters", func(t *testing.T) {
		_, err := placeholder.ParseDelimiters("||")
		assert.Error(t, err)
	})
}

func TestExtract(t *testing.T) {
	t.Parallel()

	d := placeholder.DefaultDelimiters

	t.Run("distinct keys in order", func(t *testing.T) {
		keys := placeholder.Extract("Hello {name}, see {A}", d)
		assert.Equal(t, []string{"name", "A"}, keys)
	})

	t.Run("repeated key once", func(t *testing.T) {
		keys := placeholder.Extract("{x} and {x} again", d)
		assert.Equal(t, []string{"x"}, keys)
	})

	t.Run("no placeholders", func(t *testing.T) {
		assert.Empty(t, placeholder.Extract("plain text", d))
	})

	t.Run("unclosed opener ignored", func(t *testing.T) {
		assert.Empty(t, placeholder.Extract("dangling {", d))
	})

	t.Run("empty key ignored", func(t *testing.T) {
		assert.Empty(t, placeholder.Extract("{}", d))
	})

	t.Run("custom delimiters", func(t *testing.T) {
		custom, err := placeholder.ParseDelimiters("<>")
		require.NoError(t, err)
		assert.Equal(t, []string{"greeting"}, placeholder.Extract("<greeting> there", custom))
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("one batched read for all column refs", func(t *testing.T) {
		reader := &fakeReader{cells: map[string]string{
			"'Leads'!A5": "Acme",
			"'Leads'!B5": "acme.example",
		}}
		r := placeholder.NewResolver(reader, "Leads")

		resolved, err := r.Resolve(map[string]placeholder.Value{
			"name":    {Literal: "X"},
			"company": {Column: "A"},
			"site":    {Column: "B"},
		}, 5)
		require.NoError(t, err)

		assert.Equal(t, map[string]string{
			"name":    "X",
			"company": "Acme",
			"site":    "acme.example",
		}, resolved)
		assert.Equal(t, 1, reader.calls, "column refs must be fetched in one batch")
	})

	t.Run("literals bypass the read", func(t *testing.T) {
		reader := &fakeReader{}
		r := placeholder.NewResolver(reader, "Leads")

		resolved, err := r.Resolve(map[string]placeholder.Value{
			"name": {Literal: "X"},
		}, 5)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"name": "X"}, resolved)
		assert.Zero(t, reader.calls)
	})

	t.Run("empty cell fails resolution", func(t *testing.T) {
		reader := &fakeReader{cells: map[string]string{}}
		r := placeholder.NewResolver(reader, "Leads")

		_, err := r.Resolve(map[string]placeholder.Value{
			"company": {Column: "A"},
		}, 7)
		require.Error(t, err)
		assert.ErrorIs(t, err, placeholder.ErrEmptyCell)
	})
}

func TestApply(t *testing.T) {
	t.Parallel()

	d := placeholder.DefaultDelimiters

	t.Run("substitutes resolved values", func(t *testing.T) {
		out := placeholder.Apply("Hello {name}, see {A}", map[string]string{
			"name": "X",
			"A":    "Acme",
		}, d)
		assert.Equal(t, "Hello X, see Acme", out)
	})

	t.Run("unknown placeholders stay visible", func(t *testing.T) {
		out := placeholder.Apply("Hello {missing}", map[string]string{}, d)
		assert.Equal(t, "Hello {missing}", out)
	})
}

package patient

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrSchema = errors.New("table does not match the feature schema")

// SchemaError reports a missing column or an unparsable cell.
type SchemaError struct {
	Column string
	Row    int
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("column %q: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("row %d column %q: %v", e.Row, e.Column, e.Err)
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Table is a CSV table held as text. Cells are only parsed when rows are
// handed to a model.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable parses a CSV table with a header row. A UTF-8 or UTF-16 byte order
// mark is honoured and removed.
func ReadTable(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("read csv: no header row")
	}
	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{Header: slices.Clone(t.Header), Rows: make([][]string, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = slices.Clone(row)
	}
	return out
}

// SetColumn writes values into the column called name, appending the column
// if it does not exist yet.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	idx := slices.Index(t.Header, name)
	if idx < 0 {
		t.Header = append(t.Header, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], values[i])
		}
		return nil
	}
	for i := range t.Rows {
		t.Rows[i][idx] = values[i]
	}
	return nil
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]string, bool) {
	idx := slices.Index(t.Header, name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// FeatureRows extracts the Columns of every row in model order. Extra columns
// are ignored.
func (t *Table) FeatureRows() ([][]float64, error) {
	idx := make([]int, len(Columns))
	for i, name := range Columns {
		j := slices.Index(t.Header, name)
		if j < 0 {
			return nil, &SchemaError{Column: name, Row: -1, Err: errors.New("missing column")}
		}
		idx[i] = j
	}

	rows := make([][]float64, len(t.Rows))
	for r, record := range t.Rows {
		row := make([]float64, len(Columns))
		for i, j := range idx {
			x, err := strconv.ParseFloat(strings.TrimSpace(record[j]), 64)
			if err != nil {
				return nil, &SchemaError{Column: Columns[i], Row: r, Err: err}
			}
			row[i] = x
		}
		rows[r] = row
	}
	return rows, nil
}

// WriteCSV writes the header and rows of t.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// Package dataset provides the typed, columnar row collection that flows
// between ingestion, the star pipeline and the store adapters.
//
// Values are held as Go natives matching core.DataType: int64, string,
// float64, bool, or nil for null.
package dataset

import (
	"fmt"

	"github.com/leapstack-labs/leapstar/pkg/core"
)

// Dataset is an in-memory table stored column by column.
type Dataset struct {
	fields []core.Field
	index  map[string]int
	cols   [][]any
	n      int
}

// New creates an empty dataset with the given fields.
func New(fields ...core.Field) *Dataset {
	d := &Dataset{
		fields: make([]core.Field, len(fields)),
		index:  make(map[string]int, len(fields)),
		cols:   make([][]any, len(fields)),
	}
	copy(d.fields, fields)
	for i, f := range fields {
		d.index[f.Name] = i
	}
	return d
}

// FromRows builds a dataset from row-major values.
// Every row must have exactly one value per field.
func FromRows(fields []core.Field, rows [][]any) (*Dataset, error) {
	d := New(fields...)
	for _, row := range rows {
		if err := d.Append(row...); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return d.n
}

// Width returns the number of columns.
func (d *Dataset) Width() int {
	return len(d.fields)
}

// Fields returns a copy of the dataset's fields in column order.
func (d *Dataset) Fields() []core.Field {
	out := make([]core.Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	return core.FieldNames(d.fields)
}

// Index returns the position of the named column.
func (d *Dataset) Index(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// Append adds one row.
func (d *Dataset) Append(values ...any) error {
	if len(values) != len(d.fields) {
		return fmt.Errorf("row has %d values, dataset has %d columns", len(values), len(d.fields))
	}
	for i, v := range values {
		d.cols[i] = append(d.cols[i], v)
	}
	d.n++
	return nil
}

// Value returns the value at row r, column c.
func (d *Dataset) Value(r, c int) any {
	return d.cols[c][r]
}

// Row returns a copy of row r.
func (d *Dataset) Row(r int) []any {
	row := make([]any, len(d.cols))
	for c := range d.cols {
		row[c] = d.cols[c][r]
	}
	return row
}

// Rows returns every row in order.
func (d *Dataset) Rows() [][]any {
	rows := make([][]any, d.Len())
	for r := range rows {
		rows[r] = d.Row(r)
	}
	return rows
}

// Column returns a copy of the named column's values.
func (d *Dataset) Column(name string) ([]any, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("column %s not found", name)
	}
	out := make([]any, len(d.cols[i]))
	copy(out, d.cols[i])
	return out, nil
}

// Select returns a dataset holding only the named columns, in the given order.
// Values are shared, not copied or cast.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	fields := make([]core.Field, len(names))
	cols := make([][]any, len(names))
	for i, name := range names {
		j, ok := d.index[name]
		if !ok {
			return nil, fmt.Errorf("column %s not found", name)
		}
		fields[i] = d.fields[j]
		cols[i] = d.cols[j]
	}
	out := New(fields...)
	out.cols = cols
	out.n = d.n
	return out, nil
}

// CastStats counts values that could not be cast during a projection, by field.
type CastStats map[string]int

// Total returns the number of failed casts across all fields.
func (s CastStats) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}

// Project returns a dataset with the given fields, each cast from the
// same-named source column to its declared type. Values that fail to cast
// become null and are counted in the returned stats. A missing source
// column is an error.
func (d *Dataset) Project(fields []core.Field) (*Dataset, CastStats, error) {
	stats := make(CastStats)
	out := New(fields...)
	n := d.Len()
	for i, f := range fields {
		j, ok := d.index[f.Name]
		if !ok {
			return nil, nil, fmt.Errorf("column %s not found in dataset", f.Name)
		}
		col := make([]any, n)
		for r, v := range d.cols[j] {
			cv, err := Cast(v, f.Type)
			if err != nil {
				stats[f.Name]++
				cv = nil
			}
			col[r] = cv
		}
		out.cols[i] = col
	}
	out.n = n
	return out, stats, nil
}

// Distinct returns the rows of d with duplicates removed, keeping the first
// occurrence of each. Rows are equal when every value is equal; two nulls
// are equal.
func (d *Dataset) Distinct() *Dataset {
	out := New(d.fields...)
	seen := make(map[string]struct{}, d.Len())
	for r := 0; r < d.Len(); r++ {
		row := d.Row(r)
		k := EncodeKey(row)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		for c, v := range row {
			out.cols[c] = append(out.cols[c], v)
		}
		out.n++
	}
	return out
}

// WithColumn returns a dataset with an extra column prepended or appended.
// values must have one entry per row.
func (d *Dataset) WithColumn(f core.Field, values []any, first bool) (*Dataset, error) {
	if len(values) != d.Len() {
		return nil, fmt.Errorf("column %s has %d values, dataset has %d rows", f.Name, len(values), d.Len())
	}
	if _, exists := d.index[f.Name]; exists {
		return nil, fmt.Errorf("column %s already exists", f.Name)
	}
	var fields []core.Field
	var cols [][]any
	if first {
		fields = append([]core.Field{f}, d.fields...)
		cols = append([][]any{values}, d.cols...)
	} else {
		fields = append(d.Fields(), f)
		cols = append(append([][]any{}, d.cols...), values)
	}
	out := New(fields...)
	out.cols = cols
	out.n = d.n
	return out, nil
}

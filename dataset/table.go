// Package dataset provides a small typed tabular value: ordered named
// columns, a string row index, and per-column element types that survive
// serialization round-trips exactly. It is the shape price history and
// financial statements are carried in between the provider client, the
// cache, and the rendering layer.
package dataset

import (
	"encoding/json"
	"fmt"
	"time"
)

// ColumnType is the element type of one column.
type ColumnType string

const (
	Int    ColumnType = "int"
	Float  ColumnType = "float"
	String ColumnType = "string"
	Time   ColumnType = "time"
)

// Col declares one column of a table.
type Col struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

type column struct {
	Col
	values []any // elements are int64/float64/string/time.Time per Type
}

// Table is a column-ordered, row-indexed dataset. The zero value is not
// usable; construct with New.
type Table struct {
	index   []string
	columns []column
	byName  map[string]int
}

// New creates an empty table with the given columns, in order.
func New(cols ...Col) *Table {
	t := &Table{
		columns: make([]column, len(cols)),
		byName:  make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		t.columns[i] = column{Col: c}
		t.byName[c.Name] = i
	}
	return t
}

// Tabular tags Table as a typed tabular value for cache serialization.
func (t *Table) Tabular() {}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.index) }

// Columns returns the column declarations in order.
func (t *Table) Columns() []Col {
	cols := make([]Col, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.Col
	}
	return cols
}

// Index returns the row index values in order.
func (t *Table) Index() []string {
	out := make([]string, len(t.index))
	copy(out, t.index)
	return out
}

// AppendRow adds one row. cells must match the column count and types;
// int is accepted for Int columns and widened to int64.
func (t *Table) AppendRow(index string, cells ...any) error {
	if len(cells) != len(t.columns) {
		return fmt.Errorf("dataset: row has %d cells, table has %d columns", len(cells), len(t.columns))
	}
	normalized := make([]any, len(cells))
	for i, cell := range cells {
		v, err := normalize(t.columns[i].Type, cell)
		if err != nil {
			return fmt.Errorf("dataset: column %s: %w", t.columns[i].Name, err)
		}
		normalized[i] = v
	}
	t.index = append(t.index, index)
	for i := range t.columns {
		t.columns[i].values = append(t.columns[i].values, normalized[i])
	}
	return nil
}

func normalize(typ ColumnType, v any) (any, error) {
	switch typ {
	case Int:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		}
	case Float:
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Time:
		if ts, ok := v.(time.Time); ok {
			return ts, nil
		}
	default:
		return nil, fmt.Errorf("unknown column type %q", typ)
	}
	return nil, fmt.Errorf("value %T does not match column type %q", v, typ)
}

// Cell returns the value at row i of the named column.
func (t *Table) Cell(i int, name string) (any, bool) {
	ci, ok := t.byName[name]
	if !ok || i < 0 || i >= len(t.index) {
		return nil, false
	}
	return t.columns[ci].values[i], true
}

// Floats returns the values of a Float column.
func (t *Table) Floats(name string) ([]float64, bool) {
	ci, ok := t.byName[name]
	if !ok || t.columns[ci].Type != Float {
		return nil, false
	}
	out := make([]float64, len(t.columns[ci].values))
	for i, v := range t.columns[ci].values {
		out[i] = v.(float64)
	}
	return out, true
}

// Ints returns the values of an Int column.
func (t *Table) Ints(name string) ([]int64, bool) {
	ci, ok := t.byName[name]
	if !ok || t.columns[ci].Type != Int {
		return nil, false
	}
	out := make([]int64, len(t.columns[ci].values))
	for i, v := range t.columns[ci].values {
		out[i] = v.(int64)
	}
	return out, true
}

// Records renders the table as string records, header first, for CSV
// export and template rendering.
func (t *Table) Records() [][]string {
	header := make([]string, 0, len(t.columns)+1)
	header = append(header, "Date")
	for _, c := range t.columns {
		header = append(header, c.Name)
	}

	records := make([][]string, 0, len(t.index)+1)
	records = append(records, header)
	for i, idx := range t.index {
		row := make([]string, 0, len(t.columns)+1)
		row = append(row, idx)
		for _, c := range t.columns {
			row = append(row, formatCell(c.Type, c.values[i]))
		}
		records = append(records, row)
	}
	return records
}

func formatCell(typ ColumnType, v any) string {
	switch typ {
	case Int:
		return fmt.Sprintf("%d", v.(int64))
	case Float:
		return fmt.Sprintf("%.2f", v.(float64))
	case Time:
		return v.(time.Time).Format(time.RFC3339)
	default:
		return v.(string)
	}
}

// Equal reports whether two tables have identical columns, index, and
// cell values. Time cells compare with time.Time.Equal.
func (t *Table) Equal(o *Table) bool {
	if o == nil || len(t.index) != len(o.index) || len(t.columns) != len(o.columns) {
		return false
	}
	for i := range t.index {
		if t.index[i] != o.index[i] {
			return false
		}
	}
	for i := range t.columns {
		a, b := t.columns[i], o.columns[i]
		if a.Col != b.Col {
			return false
		}
		for j := range a.values {
			if a.Type == Time {
				if !a.values[j].(time.Time).Equal(b.values[j].(time.Time)) {
					return false
				}
			} else if a.values[j] != b.values[j] {
				return false
			}
		}
	}
	return true
}

// tableJSON is the wire form. Column values serialize as homogeneous
// typed arrays so that int columns do not degrade to floats on read-back.
type tableJSON struct {
	Index   []string     `json:"index"`
	Columns []columnJSON `json:"columns"`
}

type columnJSON struct {
	Name   string          `json:"name"`
	Type   ColumnType      `json:"type"`
	Values json.RawMessage `json:"values"`
}

// MarshalJSON implements json.Marshaler.
func (t *Table) MarshalJSON() ([]byte, error) {
	tj := tableJSON{Index: t.index, Columns: make([]columnJSON, len(t.columns))}
	if tj.Index == nil {
		tj.Index = []string{}
	}
	for i, c := range t.columns {
		values, err := marshalValues(c.Type, c.values)
		if err != nil {
			return nil, fmt.Errorf("dataset: column %s: %w", c.Name, err)
		}
		tj.Columns[i] = columnJSON{Name: c.Name, Type: c.Type, Values: values}
	}
	return json.Marshal(&tj)
}

func marshalValues(typ ColumnType, values []any) (json.RawMessage, error) {
	switch typ {
	case Int:
		out := make([]int64, len(values))
		for i, v := range values {
			out[i] = v.(int64)
		}
		return json.Marshal(out)
	case Float:
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = v.(float64)
		}
		return json.Marshal(out)
	case Time:
		out := make([]time.Time, len(values))
		for i, v := range values {
			out[i] = v.(time.Time)
		}
		return json.Marshal(out)
	default:
		out := make([]string, len(values))
		for i, v := range values {
			out[i] = v.(string)
		}
		return json.Marshal(out)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Table) UnmarshalJSON(data []byte) error {
	var tj tableJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return err
	}

	out := Table{
		index:   tj.Index,
		columns: make([]column, len(tj.Columns)),
		byName:  make(map[string]int, len(tj.Columns)),
	}
	for i, cj := range tj.Columns {
		values, err := unmarshalValues(cj.Type, cj.Values)
		if err != nil {
			return fmt.Errorf("dataset: column %s: %w", cj.Name, err)
		}
		if len(values) != len(tj.Index) {
			return fmt.Errorf("dataset: column %s has %d values for %d rows", cj.Name, len(values), len(tj.Index))
		}
		out.columns[i] = column{Col: Col{Name: cj.Name, Type: cj.Type}, values: values}
		out.byName[cj.Name] = i
	}
	*t = out
	return nil
}

func unmarshalValues(typ ColumnType, data json.RawMessage) ([]any, error) {
	switch typ {
	case Int:
		var vals []int64
		if err := json.Unmarshal(data, &vals); err != nil {
			return nil, err
		}
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out, nil
	case Float:
		var vals []float64
		if err := json.Unmarshal(data, &vals); err != nil {
			return nil, err
		}
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out, nil
	case Time:
		var vals []time.Time
		if err := json.Unmarshal(data, &vals); err != nil {
			return nil, err
		}
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out, nil
	case String:
		var vals []string
		if err := json.Unmarshal(data, &vals); err != nil {
			return nil, err
		}
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown column type %q", typ)
	}
}

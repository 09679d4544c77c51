// internal/types/dataset.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

/*
 * Row store for order line-items.
 *
 * Rows are addressed by insertion index; that index is the row identity used by
 * selections and by order-level actions that write to "the first row of an
 * order". Columns live in an ordered registry so output preserves input column
 * order with action-created columns appended at the end.
 *
 * Key operations:
 *   - EnsureColumn: create-on-demand with a default for every existing row
 *   - Set: overwrite a cell, creating the column (Null default) if needed
 *   - AppendRows: append-only growth, used once per engine run for synthesis
 *
 * Numeric detection: a column is numeric when it holds no Text cell. The count
 * of Text cells per column is maintained on every write so the check is O(1).
 */

// Dataset is an ordered collection of records sharing a column registry.
type Dataset struct {
	columns   []string
	index     map[string]int
	rows      [][]Value
	textCells []int
}

// NewDataset creates an empty dataset with the given columns.
func NewDataset(columns ...string) *Dataset {
	ds := &Dataset{index: make(map[string]int)}
	for _, c := range columns {
		ds.EnsureColumn(c, Null())
	}
	return ds
}

// FromRecords builds a dataset from plain records.
// Column order follows first appearance across records; keys within a record
// are visited in sorted order because Go maps are unordered.
func FromRecords(records []map[string]any) *Dataset {
	ds := NewDataset()
	for _, rec := range records {
		ds.AppendRow(rec)
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Columns returns a copy of the column names in registry order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// HasColumn reports whether name is registered.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// EnsureColumn registers name with def for every existing row.
// Returns true if the column was created, false if it already existed.
func (d *Dataset) EnsureColumn(name string, def Value) bool {
	if _, ok := d.index[name]; ok {
		return false
	}
	d.index[name] = len(d.columns)
	d.columns = append(d.columns, name)
	text := 0
	for i := range d.rows {
		d.rows[i] = append(d.rows[i], def)
		if def.IsText() {
			text++
		}
	}
	d.textCells = append(d.textCells, text)
	return true
}

// Get returns the cell at (row, column); Null if the column does not exist.
func (d *Dataset) Get(row int, column string) Value {
	ci, ok := d.index[column]
	if !ok {
		return Null()
	}
	return d.rows[row][ci]
}

// Set overwrites the cell at (row, column), creating the column if absent.
func (d *Dataset) Set(row int, column string, v Value) {
	d.EnsureColumn(column, Null())
	ci := d.index[column]
	old := d.rows[row][ci]
	if old.IsText() {
		d.textCells[ci]--
	}
	if v.IsText() {
		d.textCells[ci]++
	}
	d.rows[row][ci] = v
}

// IsNumeric reports whether column exists and holds no Text cell.
func (d *Dataset) IsNumeric(column string) bool {
	ci, ok := d.index[column]
	if !ok {
		return false
	}
	return d.textCells[ci] == 0
}

// Column returns the values of column for the given rows (all rows if rows is nil).
// The second result is false if the column does not exist.
func (d *Dataset) Column(column string, rows []int) ([]Value, bool) {
	ci, ok := d.index[column]
	if !ok {
		return nil, false
	}
	if rows == nil {
		out := make([]Value, len(d.rows))
		for i, r := range d.rows {
			out[i] = r[ci]
		}
		return out, true
	}
	out := make([]Value, len(rows))
	for i, ri := range rows {
		out[i] = d.rows[ri][ci]
	}
	return out, true
}

// Row returns a copy of row i keyed by column name.
func (d *Dataset) Row(i int) map[string]Value {
	out := make(map[string]Value, len(d.columns))
	for ci, name := range d.columns {
		out[name] = d.rows[i][ci]
	}
	return out
}

// AppendRow appends a record of plain values, registering unseen columns.
func (d *Dataset) AppendRow(rec map[string]any) {
	vals := make(map[string]Value, len(rec))
	for k, v := range rec {
		vals[k] = ValueOf(v)
	}
	d.AppendRows([]map[string]Value{vals})
}

// AppendRows appends records in order. Columns missing from a record are Null;
// columns unknown to the dataset are created with a Null default first.
func (d *Dataset) AppendRows(recs []map[string]Value) {
	for _, rec := range recs {
		for _, k := range sortedKeys(rec) {
			d.EnsureColumn(k, Null())
		}
		row := make([]Value, len(d.columns))
		for k, v := range rec {
			ci := d.index[k]
			row[ci] = v
			if v.IsText() {
				d.textCells[ci]++
			}
		}
		d.rows = append(d.rows, row)
	}
}

// Records returns the rows as plain Go maps (float64, string or nil values).
func (d *Dataset) Records() []map[string]any {
	out := make([]map[string]any, len(d.rows))
	for i, row := range d.rows {
		rec := make(map[string]any, len(d.columns))
		for ci, name := range d.columns {
			rec[name] = row[ci].Interface()
		}
		out[i] = rec
	}
	return out
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	c := &Dataset{
		columns:   d.Columns(),
		index:     make(map[string]int, len(d.index)),
		rows:      make([][]Value, len(d.rows)),
		textCells: append([]int(nil), d.textCells...),
	}
	for k, v := range d.index {
		c.index[k] = v
	}
	for i, row := range d.rows {
		c.rows[i] = append([]Value(nil), row...)
	}
	return c
}

// MarshalJSON encodes the dataset as an array of objects with keys in column order.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range d.rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for ci, name := range d.columns {
			if ci > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(name)
			if err != nil {
				return nil, err
			}
			val, err := row[ci].MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, name, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an array of objects, preserving key order of the first
// occurrence of each column.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("dataset: expected array, got %v", tok)
	}

	*d = *NewDataset()
	for dec.More() {
		rec, err := decodeOrderedObject(dec)
		if err != nil {
			return err
		}
		row := make(map[string]Value, len(rec))
		for _, kv := range rec {
			d.EnsureColumn(kv.key, Null())
			row[kv.key] = kv.val
		}
		d.AppendRows([]map[string]Value{row})
	}
	_, err = dec.Token()
	return err
}

type keyValue struct {
	key string
	val Value
}

func decodeOrderedObject(dec *json.Decoder) ([]keyValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("dataset: expected object, got %v", tok)
	}
	var out []keyValue
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("dataset: expected key, got %v", keyTok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("dataset: column %q: %w", key, err)
		}
		out = append(out, keyValue{key: key, val: ValueOf(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

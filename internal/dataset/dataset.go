// Package dataset loads tabular flight logs once at startup and exposes
// them as an immutable, ordered sequence of numeric rows.
package dataset

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/banshee-data/telemetry.replay/internal/fsutil"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

// Dataset is an ordered, read-only table of numeric cells. Cells that were
// empty or non-numeric in the source are stored as NaN and reported as
// missing.
type Dataset struct {
	Name    string
	columns []string
	index   map[string]int
	rows    [][]float64
}

// Row is a view of one dataset row.
type Row struct {
	Index  int
	Values map[string]float64
}

// Get returns the named value and whether it is present.
func (r Row) Get(col string) (float64, bool) {
	v, ok := r.Values[col]
	return v, ok
}

// New validates and wraps rows. Every row must have one cell per column.
func New(name string, columns []string, rows [][]float64) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset %s has no columns", name)
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, fmt.Errorf("dataset %s: column %d has an empty name", name, i)
		}
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("dataset %s: duplicate column %q", name, c)
		}
		index[c] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("dataset %s: row %d has %d cells, want %d", name, i, len(row), len(columns))
		}
	}
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = strings.TrimSpace(c)
	}
	return &Dataset{Name: name, columns: cols, index: index, rows: rows}, nil
}

// Columns returns the column names in file order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// HasColumn reports whether the dataset has the named column.
func (d *Dataset) HasColumn(col string) bool {
	_, ok := d.index[col]
	return ok
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// Value returns the cell at (row, col). Missing cells report false.
func (d *Dataset) Value(row int, col string) (float64, bool) {
	ci, ok := d.index[col]
	if !ok || row < 0 || row >= len(d.rows) {
		return 0, false
	}
	v := d.rows[row][ci]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Row returns a copy of row i with missing cells omitted.
func (d *Dataset) Row(i int) Row {
	values := make(map[string]float64, len(d.columns))
	for ci, c := range d.columns {
		if v := d.rows[i][ci]; !math.IsNaN(v) {
			values[c] = v
		}
	}
	return Row{Index: i, Values: values}
}

// ColumnValues returns the present values of col in row order.
func (d *Dataset) ColumnValues(col string) []float64 {
	ci, ok := d.index[col]
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(d.rows))
	for _, row := range d.rows {
		if !math.IsNaN(row[ci]) {
			out = append(out, row[ci])
		}
	}
	return out
}

// Load opens a dataset by file extension: .csv files are parsed as
// delimited text, .db/.sqlite files are read from the dataset store.
// For store files the table name is the file's base name unless name is
// given as "path.db#name".
func Load(fsys fsutil.FileSystem, path string) (*Dataset, error) {
	file, name, _ := strings.Cut(path, "#")
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv", ".txt":
		return LoadCSV(fsys, file)
	case ".db", ".sqlite", ".sqlite3":
		store, err := OpenStore(fsys, file)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
		return store.Load(name)
	default:
		return nil, telemetry.Errorf(telemetry.DataLoad, "load dataset", "unsupported dataset format %q", filepath.Ext(file))
	}
}

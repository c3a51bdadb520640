package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/telemetry.replay/internal/fsutil"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

// maxCSVBytes bounds a dataset file.
const maxCSVBytes = 512 * 1024 * 1024

// Table is the raw text form of a delimited file.
type Table struct {
	Columns []string   `json:"columns"`
	Data    [][]string `json:"data"`
}

// ReadTable parses a header row followed by data rows. Ragged rows are an
// error.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Columns: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(t.Data)+1, err)
		}
		t.Data = append(t.Data, rec)
	}
	return t, nil
}

// WriteJSON writes the table as {"columns": [...], "data": [[...]]}.
func (t *Table) WriteJSON(w io.Writer) error {
	out := *t
	if out.Data == nil {
		out.Data = [][]string{}
	}
	return json.NewEncoder(w).Encode(out)
}

// Dataset converts the table to numeric form.
func (t *Table) Dataset(name string) (*Dataset, error) {
	rows := make([][]float64, len(t.Data))
	for i, rec := range t.Data {
		row := make([]float64, len(rec))
		for j, cell := range rec {
			row[j] = parseCell(cell)
		}
		rows[i] = row
	}
	return New(name, t.Columns, rows)
}

func parseCell(cell string) float64 {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// LoadCSV reads a delimited dataset. All failures are DataLoad errors.
func LoadCSV(fsys fsutil.FileSystem, path string) (*Dataset, error) {
	const op = "load csv"

	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset not found: %s", path)
		}
		return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
	}
	if info.IsDir() {
		return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset path is a directory: %s", path)
	}
	if info.Size() > maxCSVBytes {
		return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset too large: %d bytes (max %d)", info.Size(), maxCSVBytes)
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
	}
	defer f.Close()

	table, err := ReadTable(f)
	if err != nil {
		return nil, telemetry.Wrap(telemetry.DataLoad, op, fmt.Errorf("%s: %w", path, err))
	}
	if len(table.Data) == 0 {
		return nil, telemetry.Errorf(telemetry.DataLoad, op, "%s: no data rows", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ds, err := table.Dataset(name)
	if err != nil {
		return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
	}
	return ds, nil
}

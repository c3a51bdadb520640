package dataset

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"net/url"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/telemetry.replay/internal/fsutil"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// CurrentSchemaVersion is the latest migration in migrations/.
const CurrentSchemaVersion = 1

// Store is a SQLite file holding one or more imported datasets.
type Store struct {
	db   *sql.DB
	path string
}

// Info describes a stored dataset.
type Info struct {
	Name       string
	Source     string
	Columns    []string
	RowCount   int
	ImportedAt string
}

// CreateStore opens or creates a dataset store at path and brings its
// schema up to date.
func CreateStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenStore opens an existing dataset store read-only. The file is checked
// through fsys; a missing file, a file without the dataset schema or one
// at another schema version is a DataLoad error. Nothing is written.
func OpenStore(fsys fsutil.FileSystem, path string) (*Store, error) {
	const op = "open dataset store"
	if _, err := fsys.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset store not found: %s", path)
		}
		return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
	}
	dsn := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
	}
	s := &Store{db: db, path: path}

	version, err := s.SchemaVersion()
	if err != nil {
		db.Close()
		return nil, telemetry.Errorf(telemetry.DataLoad, op, "%s is not a dataset store: %v", path, err)
	}
	if version != CurrentSchemaVersion {
		db.Close()
		return nil, telemetry.Errorf(telemetry.DataLoad, op,
			"%s has schema version %d, want %d; re-import it with dataset-import", path, version, CurrentSchemaVersion)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	// Closing m would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (uint, error) {
	var version uint
	var dirty bool
	err := s.db.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Import stores ds under ds.Name, replacing any dataset of that name.
func (s *Store) Import(ds *Dataset, source string) error {
	columns, err := json.Marshal(ds.columns)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM dataset_rows WHERE dataset_id IN (SELECT dataset_id FROM datasets WHERE name = ?)`, ds.Name); err != nil {
		return fmt.Errorf("failed to clear previous rows: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM datasets WHERE name = ?`, ds.Name); err != nil {
		return fmt.Errorf("failed to clear previous dataset: %w", err)
	}

	res, err := tx.Exec(`INSERT INTO datasets (name, source, columns_json, row_count) VALUES (?, ?, ?, ?)`,
		ds.Name, source, string(columns), len(ds.rows))
	if err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO dataset_rows (dataset_id, row_index, values_json) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	cells := make([]*float64, len(ds.columns))
	for i, row := range ds.rows {
		for j, v := range row {
			if math.IsNaN(v) {
				cells[j] = nil
				continue
			}
			v := v
			cells[j] = &v
		}
		encoded, err := json.Marshal(cells)
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		if _, err := stmt.Exec(id, i, string(encoded)); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// Load reads a stored dataset by name. All failures are DataLoad errors.
func (s *Store) Load(name string) (*Dataset, error) {
	const op = "load stored dataset"

	var id int64
	var columnsJSON string
	var rowCount int
	err := s.db.QueryRow(`SELECT dataset_id, columns_json, row_count FROM datasets WHERE name = ?`, name).
		Scan(&id, &columnsJSON, &rowCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset %q not found in %s", name, s.path)
	}
	if err != nil {
		return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
	}

	var columns []string
	if err := json.Unmarshal([]byte(columnsJSON), &columns); err != nil {
		return nil, telemetry.Wrap(telemetry.DataLoad, op, fmt.Errorf("columns: %w", err))
	}

	rows, err := s.db.Query(`SELECT row_index, values_json FROM dataset_rows WHERE dataset_id = ? ORDER BY row_index`, id)
	if err != nil {
		return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
	}
	defer rows.Close()

	data := make([][]float64, 0, rowCount)
	for rows.Next() {
		var idx int
		var encoded string
		if err := rows.Scan(&idx, &encoded); err != nil {
			return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
		}
		if idx != len(data) {
			return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset %q: row %d missing", name, len(data))
		}
		var cells []*float64
		if err := json.Unmarshal([]byte(encoded), &cells); err != nil {
			return nil, telemetry.Wrap(telemetry.DataLoad, op, fmt.Errorf("row %d: %w", idx, err))
		}
		row := make([]float64, len(cells))
		for j, c := range cells {
			if c == nil {
				row[j] = math.NaN()
			} else {
				row[j] = *c
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
	}
	if len(data) == 0 {
		return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset %q has no rows", name)
	}

	ds, err := New(name, columns, data)
	if err != nil {
		return nil, telemetry.Wrap(telemetry.DataLoad, op, err)
	}
	return ds, nil
}

// List returns the stored datasets ordered by name.
func (s *Store) List() ([]Info, error) {
	rows, err := s.db.Query(`SELECT name, source, columns_json, row_count, COALESCE(imported_at, '') FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		var columnsJSON string
		if err := rows.Scan(&info.Name, &info.Source, &columnsJSON, &info.RowCount, &info.ImportedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(columnsJSON), &info.Columns); err != nil {
			return nil, fmt.Errorf("dataset %s: bad columns: %w", info.Name, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

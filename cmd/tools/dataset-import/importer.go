package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/banshee-data/telemetry.replay/internal/datapath"
	"github.com/banshee-data/telemetry.replay/internal/dataset"
	"github.com/banshee-data/telemetry.replay/internal/fsutil"
)

// RunImport loads csvPath and stores it in the store at dbPath. The store
// is created and migrated if needed. The dataset name (name, or the CSV
// base name) is sanitised so it can be addressed as "file.db#name".
func RunImport(fsys fsutil.FileSystem, csvPath, dbPath, name string) (dataset.Info, error) {
	ds, err := dataset.LoadCSV(fsys, csvPath)
	if err != nil {
		return dataset.Info{}, err
	}
	if name != "" {
		ds.Name = name
	}
	ds.Name = datapath.SanitizeFilename(ds.Name)

	store, err := dataset.CreateStore(dbPath)
	if err != nil {
		return dataset.Info{}, err
	}
	defer store.Close()

	if err := store.Import(ds, csvPath); err != nil {
		return dataset.Info{}, err
	}
	infos, err := store.List()
	if err != nil {
		return dataset.Info{}, err
	}
	for _, info := range infos {
		if info.Name == ds.Name {
			return info, nil
		}
	}
	return dataset.Info{}, fmt.Errorf("dataset %s missing after import", ds.Name)
}

// ListStore prints one line per stored dataset.
func ListStore(fsys fsutil.FileSystem, dbPath string, w io.Writer) error {
	store, err := dataset.OpenStore(fsys, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.List()
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%d rows\t%d columns\t%s\t%s\n",
			info.Name, info.RowCount, len(info.Columns), info.ImportedAt, info.Source)
	}
	return nil
}

// WriteTableJSON prints the CSV at path as {"columns": [...], "data": [[...]]}
// with every cell as a string and empty cells as "".
func WriteTableJSON(fsys fsutil.FileSystem, path string, w io.Writer) error {
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("File not found: %s", path)
		}
		return err
	}
	defer f.Close()

	table, err := dataset.ReadTable(f)
	if err != nil {
		return err
	}
	return table.WriteJSON(w)
}

// WriteErrorJSON prints {"error": "..."}.
func WriteErrorJSON(w io.Writer, err error) {
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// Command dataset-import converts a CSV flight log into the SQLite dataset
// format read by "telemetry replay file.db#name", or prints it as JSON.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/telemetry.replay/internal/datapath"
	"github.com/banshee-data/telemetry.replay/internal/fsutil"
)

func main() {
	dbPath := flag.String("db", "datasets.db", "path to the SQLite dataset store")
	name := flag.String("name", "", "dataset name (default: CSV base name)")
	dataDir := flag.String("data-dir", "", "directory relative paths resolve against (default: executable directory)")
	jsonOut := flag.Bool("json", false, "print the CSV as {\"columns\",\"data\"} JSON instead of importing")
	list := flag.Bool("list", false, "list datasets in the store and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.csv\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	fsys := fsutil.OSFileSystem{}

	if *list {
		db, err := datapath.Resolve(*dbPath, *dataDir)
		if err != nil {
			log.Fatalf("invalid store path: %v", err)
		}
		if err := ListStore(fsys, db, os.Stdout); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	csvPath, err := datapath.Resolve(flag.Arg(0), *dataDir)

	if *jsonOut {
		if err == nil {
			err = WriteTableJSON(fsys, csvPath, os.Stdout)
		}
		if err != nil {
			log.Printf("DEBUG: error occurred: %v", err)
			WriteErrorJSON(os.Stdout, err)
			os.Exit(1)
		}
		return
	}

	if err != nil {
		log.Fatalf("invalid dataset path: %v", err)
	}
	db, err := datapath.Resolve(*dbPath, *dataDir)
	if err != nil {
		log.Fatalf("invalid store path: %v", err)
	}
	info, err := RunImport(fsys, csvPath, db, *name)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}
	log.Printf("imported %s: %d rows, %d columns into %s", info.Name, info.RowCount, len(info.Columns), db)
}

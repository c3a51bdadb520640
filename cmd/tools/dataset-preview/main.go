// Command dataset-preview renders the relative track and altitude of a
// flight log as it would be streamed by "telemetry replay".
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/telemetry.replay/internal/datapath"
	"github.com/banshee-data/telemetry.replay/internal/dataset"
	"github.com/banshee-data/telemetry.replay/internal/fsutil"
	"github.com/banshee-data/telemetry.replay/internal/source"
)

func main() {
	out := flag.String("out", "", "output path prefix (default: <dataset name>_preview)")
	format := flag.String("format", "png", "output format: png or html")
	dataDir := flag.String("data-dir", "", "directory relative paths resolve against (default: executable directory)")
	tsColumn := flag.String("timestamp-column", source.DefaultTimestampColumn, "column holding nanosecond timestamps")
	summary := flag.Bool("summary", false, "print column statistics")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] dataset.csv|store.db#name\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	file, table, hasTable := strings.Cut(flag.Arg(0), "#")
	path, err := datapath.Resolve(file, *dataDir)
	if err != nil {
		log.Fatalf("invalid dataset path: %v", err)
	}
	if hasTable {
		path += "#" + table
	}

	fsys := fsutil.OSFileSystem{}
	ds, err := dataset.Load(fsys, path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *summary {
		fmt.Print(dataset.FormatSummary(dataset.Summarize(ds)))
	}

	track, err := BuildTrack(ds, source.ReplayConfig{TimestampColumn: *tsColumn})
	if err != nil {
		log.Fatalf("%v", err)
	}

	prefix := OutputPrefix(*out, ds.Name)
	var files []string
	switch *format {
	case "png":
		files, err = RenderPNG(fsys, track, prefix)
	case "html":
		var file string
		file, err = WriteHTML(fsys, track, prefix)
		files = []string{file}
	default:
		log.Fatalf("unknown format %q (want png or html)", *format)
	}
	if err != nil {
		log.Fatalf("render failed: %v", err)
	}
	for _, f := range files {
		log.Printf("wrote %s", f)
	}
}

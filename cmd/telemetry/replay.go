package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/telemetry.replay/internal/appstate"
	"github.com/banshee-data/telemetry.replay/internal/datapath"
	"github.com/banshee-data/telemetry.replay/internal/dataset"
	"github.com/banshee-data/telemetry.replay/internal/fsutil"
	"github.com/banshee-data/telemetry.replay/internal/monitoring"
	"github.com/banshee-data/telemetry.replay/internal/source"
	"github.com/banshee-data/telemetry.replay/internal/stream"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
	"github.com/banshee-data/telemetry.replay/internal/transform"
)

// defaultDataset is the flight log shipped next to the binary.
const defaultDataset = "dji_ocean_flight_filtered.csv"

type replayFlags struct {
	dataDir   string
	channels  string
	loop      bool
	loops     int
	loopPause time.Duration
	policy    string
	tsColumn  string
}

func newReplayCmd() *cobra.Command {
	var (
		flags streamFlags
		rf    replayFlags
	)
	cmd := &cobra.Command{
		Use:   "replay [dataset]",
		Short: "Replay a recorded flight log",
		Long: `replay streams a CSV flight log (or a dataset imported into SQLite with
dataset-import, as file.db#name) row by row. Latitude and longitude are
sent relative to the first row. Relative dataset paths resolve against
--data-dir, which defaults to the directory of the executable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := defaultDataset
			if len(args) == 1 {
				name = args[0]
			}
			cfg, err := flags.streamConfig()
			if err != nil {
				return err
			}
			if rf.loops < 0 {
				return fmt.Errorf("--loops must not be negative")
			}
			cfg.Loop = rf.loop || rf.loops > 0
			cfg.MaxLoops = rf.loops
			cfg.LoopPause = rf.loopPause

			policy, err := source.ParseTimestampPolicy(rf.policy)
			if err != nil {
				return err
			}
			path, err := resolveDataset(name, rf.dataDir)
			if err != nil {
				return telemetry.Wrap(telemetry.DataLoad, "resolve dataset", err)
			}
			channels, err := loadChannels(rf.channels, rf.dataDir)
			if err != nil {
				return err
			}

			rcfg := source.ReplayConfig{TimestampColumn: rf.tsColumn, Policy: policy}
			setup := stream.Setup{
				Source: func(*appstate.AppState) (source.Source, error) {
					r, err := source.LoadReplay(fsutil.OSFileSystem{}, path, rcfg)
					if err != nil {
						return nil, err
					}
					logDataset(r)
					return r, nil
				},
				Channels: channels,
			}
			return runStream(cmd.Context(), cmd, &flags, cfg, setup)
		},
	}
	flags.register(cmd)
	fl := cmd.Flags()
	fl.StringVar(&rf.dataDir, "data-dir", "", "Directory relative dataset paths resolve against (default: executable directory)")
	fl.StringVar(&rf.channels, "channels", transform.SetFlightPosition,
		"Channel set: flight-position, flight, or a YAML channel file")
	fl.BoolVar(&rf.loop, "loop", false, "Restart from the first row after the last")
	fl.IntVar(&rf.loops, "loops", 0, "Stop after this many passes (implies --loop)")
	fl.DurationVar(&rf.loopPause, "loop-pause", 0, "Pause before each repeated pass")
	fl.StringVar(&rf.policy, "timestamp-policy", string(source.PolicyContinue),
		"Timestamps after a loop: continue (keep increasing) or reset (repeat)")
	fl.StringVar(&rf.tsColumn, "timestamp-column", source.DefaultTimestampColumn, "Column holding nanosecond timestamps")
	return cmd
}

// resolveDataset resolves the file part of name and keeps a "#table"
// suffix for SQLite datasets.
func resolveDataset(name, dataDir string) (string, error) {
	file, table, hasTable := strings.Cut(name, "#")
	resolved, err := datapath.Resolve(file, dataDir)
	if err != nil {
		return "", err
	}
	if hasTable {
		return resolved + "#" + table, nil
	}
	return resolved, nil
}

// loadChannels returns a built-in channel set or reads a YAML file.
func loadChannels(name, dataDir string) ([]transform.Channel, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		path, err := datapath.Resolve(name, dataDir)
		if err != nil {
			return nil, err
		}
		return transform.LoadChannelsFile(fsutil.OSFileSystem{}, path)
	}
	return transform.Named(name, "")
}

func logDataset(r *source.Replay) {
	ds := r.Dataset()
	monitoring.Logf("[Replay] loaded %s: %d rows, %d columns, %.2fs per pass",
		ds.Name, ds.Len(), len(ds.Columns()), r.Span())
	if monitoring.DebugEnabled() {
		for _, line := range strings.Split(strings.TrimRight(dataset.FormatSummary(dataset.Summarize(ds)), "\n"), "\n") {
			monitoring.Logf("[Replay] %s", line)
		}
	}
}

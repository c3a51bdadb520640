package source

import (
	"fmt"
	"io"

	"github.com/banshee-data/telemetry.replay/internal/dataset"
	"github.com/banshee-data/telemetry.replay/internal/fsutil"
	"github.com/banshee-data/telemetry.replay/internal/monitoring"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

// TimestampPolicy selects how timestamps behave after the dataset loops.
type TimestampPolicy string

const (
	// PolicyContinue shifts every later pass by the dataset span plus one
	// sample interval so timestamps keep increasing across passes.
	PolicyContinue TimestampPolicy = "continue"
	// PolicyReset replays the recorded timestamps unchanged on every pass.
	PolicyReset TimestampPolicy = "reset"

	// DefaultTimestampColumn holds nanosecond timestamps in flight logs.
	DefaultTimestampColumn = "timestamps_ns"

	// fallbackGap separates passes when the dataset has no usable interval.
	fallbackGap = 0.01
)

// ParseTimestampPolicy validates a policy name.
func ParseTimestampPolicy(s string) (TimestampPolicy, error) {
	switch TimestampPolicy(s) {
	case PolicyContinue, PolicyReset:
		return TimestampPolicy(s), nil
	case "":
		return PolicyContinue, nil
	default:
		return "", fmt.Errorf("unknown timestamp policy %q (want %q or %q)", s, PolicyContinue, PolicyReset)
	}
}

// ReplayConfig holds replay settings.
type ReplayConfig struct {
	TimestampColumn string
	Policy          TimestampPolicy
}

// DefaultReplayConfig returns the settings used for flight logs.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		TimestampColumn: DefaultTimestampColumn,
		Policy:          PolicyContinue,
	}
}

// Replay walks a dataset row by row. Timestamps are converted from
// nanoseconds to seconds.
type Replay struct {
	ds     *dataset.Dataset
	cfg    ReplayConfig
	stamps []float64
	gap    float64
	cursor int
	loops  int
	offset float64
	logf   func(format string, v ...interface{})
}

// NewReplay validates the timestamp column of ds. A missing column, a row
// without a timestamp or timestamps that go backwards are DataLoad errors.
func NewReplay(ds *dataset.Dataset, cfg ReplayConfig) (*Replay, error) {
	const op = "replay"
	if cfg.TimestampColumn == "" {
		cfg.TimestampColumn = DefaultTimestampColumn
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyContinue
	}
	if ds == nil || ds.Len() == 0 {
		return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset has no rows")
	}
	if !ds.HasColumn(cfg.TimestampColumn) {
		return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset %s has no %q column", ds.Name, cfg.TimestampColumn)
	}

	stamps := make([]float64, ds.Len())
	for i := range stamps {
		ns, ok := ds.Value(i, cfg.TimestampColumn)
		if !ok {
			return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset %s: row %d has no numeric %s", ds.Name, i, cfg.TimestampColumn)
		}
		stamps[i] = ns / 1e9
		if i > 0 && stamps[i] < stamps[i-1] {
			return nil, telemetry.Errorf(telemetry.DataLoad, op, "dataset %s: timestamp goes backwards at row %d", ds.Name, i)
		}
	}

	gap := dataset.MedianInterval(ds, cfg.TimestampColumn) / 1e9
	if gap <= 0 {
		gap = fallbackGap
	}

	return &Replay{
		ds:     ds,
		cfg:    cfg,
		stamps: stamps,
		gap:    gap,
		logf:   monitoring.Tagged("Replay"),
	}, nil
}

// LoadReplay loads a dataset file and wraps it in a Replay.
func LoadReplay(fsys fsutil.FileSystem, path string, cfg ReplayConfig) (*Replay, error) {
	ds, err := dataset.Load(fsys, path)
	if err != nil {
		return nil, err
	}
	return NewReplay(ds, cfg)
}

// Next returns the next row, or io.EOF after the last row of the pass.
func (r *Replay) Next() (Raw, error) {
	if r.cursor >= len(r.stamps) {
		return Raw{}, io.EOF
	}
	row := r.ds.Row(r.cursor)
	raw := Raw{
		Index:     r.cursor,
		Loop:      r.loops,
		Timestamp: r.stamps[r.cursor] + r.offset,
		Values:    row.Values,
	}
	r.cursor++
	return raw, nil
}

// Rewind restarts at the first row and starts a new pass.
func (r *Replay) Rewind() error {
	r.cursor = 0
	r.loops++
	if r.cfg.Policy == PolicyContinue {
		r.offset += r.Span() + r.gap
	}
	r.logf("rewound %s, pass %d, timestamp offset %.3fs", r.ds.Name, r.loops+1, r.offset)
	return nil
}

// Origin returns the first row. Relative transforms subtract its values.
func (r *Replay) Origin() Raw {
	row := r.ds.Row(0)
	return Raw{Index: 0, Timestamp: r.stamps[0], Values: row.Values}
}

// Span returns the time covered by one pass, in seconds.
func (r *Replay) Span() float64 {
	return r.stamps[len(r.stamps)-1] - r.stamps[0]
}

// Len returns the number of rows per pass.
func (r *Replay) Len() int {
	return len(r.stamps)
}

// Loops returns how many times the replay has been rewound.
func (r *Replay) Loops() int {
	return r.loops
}

// Dataset returns the underlying dataset.
func (r *Replay) Dataset() *dataset.Dataset {
	return r.ds
}

// Name identifies the source in logs.
func (r *Replay) Name() string {
	return "replay:" + r.ds.Name
}

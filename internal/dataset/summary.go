package dataset

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnStats summarises the present values of one column.
type ColumnStats struct {
	Column  string
	Count   int
	Missing int
	Min     float64
	Max     float64
	Mean    float64
	StdDev  float64
}

// Summarize computes statistics for the requested columns, or for every
// column when none are given. Columns without any values are skipped.
func Summarize(d *Dataset, columns ...string) []ColumnStats {
	if len(columns) == 0 {
		columns = d.Columns()
	}
	out := make([]ColumnStats, 0, len(columns))
	for _, col := range columns {
		values := d.ColumnValues(col)
		if len(values) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(values, nil)
		if len(values) < 2 {
			std = 0
		}
		out = append(out, ColumnStats{
			Column:  col,
			Count:   len(values),
			Missing: d.Len() - len(values),
			Min:     floats.Min(values),
			Max:     floats.Max(values),
			Mean:    mean,
			StdDev:  std,
		})
	}
	return out
}

// Intervals returns the successive differences of col, sorted ascending.
func Intervals(d *Dataset, col string) []float64 {
	values := d.ColumnValues(col)
	if len(values) < 2 {
		return nil
	}
	diffs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}
	sort.Float64s(diffs)
	return diffs
}

// MedianInterval returns the median successive difference of col, or 0
// when there are fewer than two values.
func MedianInterval(d *Dataset, col string) float64 {
	diffs := Intervals(d, col)
	if len(diffs) == 0 {
		return 0
	}
	return stat.Quantile(0.5, stat.Empirical, diffs, nil)
}

// FormatSummary renders stats one column per line for logging.
func FormatSummary(stats []ColumnStats) string {
	var b strings.Builder
	for _, s := range stats {
		fmt.Fprintf(&b, "%s: n=%d missing=%d min=%.6g max=%.6g mean=%.6g std=%.6g\n",
			s.Column, s.Count, s.Missing, s.Min, s.Max, s.Mean, s.StdDev)
	}
	return b.String()
}

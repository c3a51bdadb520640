package source

import (
	"math"

	"github.com/banshee-data/telemetry.replay/internal/appstate"
)

const (
	// DefaultStep is the simulated time advanced per sample, in seconds.
	DefaultStep = 0.1

	// ValueField carries the generated sine value.
	ValueField = "value"
	// TimeField carries the simulated time the value was computed for.
	TimeField = "t"
)

// Synthetic generates value = sin(t*Frequency) + Offset with t starting
// at zero and advancing by Step per call. It never ends.
type Synthetic struct {
	Frequency float64
	Offset    float64
	Step      float64

	tick int
}

// NewSynthetic creates a generator with the default step.
func NewSynthetic(frequency, offset float64) *Synthetic {
	return &Synthetic{
		Frequency: frequency,
		Offset:    offset,
		Step:      DefaultStep,
	}
}

// NewSyntheticFromState reads frequency and y_axis_offset from the
// startup state's slider values, falling back to 1.0 and 0.0.
func NewSyntheticFromState(state *appstate.AppState) *Synthetic {
	if state == nil {
		state = appstate.Empty()
	}
	return NewSynthetic(state.Frequency(), state.YAxisOffset())
}

// Next returns the sample for the current tick and advances.
func (s *Synthetic) Next() (Raw, error) {
	// Multiplying avoids accumulating rounding error from repeated adds.
	t := float64(s.tick) * s.Step
	raw := Raw{
		Index:     s.tick,
		Timestamp: t,
		Values: map[string]float64{
			TimeField:  t,
			ValueField: s.ValueAt(t),
		},
	}
	s.tick++
	return raw, nil
}

// ValueAt evaluates the generator at simulated time t.
func (s *Synthetic) ValueAt(t float64) float64 {
	return math.Sin(t*s.Frequency) + s.Offset
}

// Rewind restarts simulated time at zero.
func (s *Synthetic) Rewind() error {
	s.tick = 0
	return nil
}

// Name identifies the source in logs.
func (s *Synthetic) Name() string {
	return "synthetic"
}

package transform

import (
	"fmt"
	"math"

	"github.com/banshee-data/telemetry.replay/internal/source"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

type compiledField struct {
	name   string
	source string
	factor float64
	offset float64
	origin float64
	rel    bool
}

type compiledChannel struct {
	streamID string
	fields   []compiledField
}

// Stage applies a fixed channel set to raw samples.
type Stage struct {
	channels []compiledChannel
}

// NewStage compiles channels against origin, the first row of the data.
// Relative fields need their source column present in origin.
func NewStage(channels []Channel, origin source.Raw) (*Stage, error) {
	const op = "build transform stage"
	if err := Validate(channels); err != nil {
		return nil, telemetry.Wrap(telemetry.Transform, op, err)
	}

	s := &Stage{channels: make([]compiledChannel, 0, len(channels))}
	for _, ch := range channels {
		cc := compiledChannel{streamID: ch.StreamID, fields: make([]compiledField, 0, len(ch.Fields))}
		for _, f := range ch.Fields {
			unit, _ := f.unitFactor()
			scale := f.Scale
			if scale == 0 {
				scale = 1
			}
			cf := compiledField{
				name:   f.Name,
				source: f.Source,
				factor: scale * unit,
				offset: f.Offset,
				rel:    f.Relative,
			}
			if f.Relative {
				o, ok := origin.Get(f.Source)
				if !ok || math.IsNaN(o) || math.IsInf(o, 0) {
					return nil, telemetry.Errorf(telemetry.Transform, op,
						"channel %s: origin row has no value for %q", ch.StreamID, f.Source)
				}
				cf.origin = o
			}
			cc.fields = append(cc.fields, cf)
		}
		s.channels = append(s.channels, cc)
	}
	return s, nil
}

// Channels returns the number of samples produced per raw sample.
func (s *Stage) Channels() int {
	return len(s.channels)
}

// StreamIDs returns the configured stream IDs in emission order.
func (s *Stage) StreamIDs() []string {
	ids := make([]string, len(s.channels))
	for i, ch := range s.channels {
		ids[i] = ch.streamID
	}
	return ids
}

// Apply produces one sample per channel, all carrying raw's timestamp. A
// missing or non-finite input is a Transform error and no samples are
// returned.
func (s *Stage) Apply(raw source.Raw) ([]telemetry.Sample, error) {
	out := make([]telemetry.Sample, 0, len(s.channels))
	for _, ch := range s.channels {
		sample := telemetry.Sample{
			StreamID:  ch.streamID,
			Timestamp: raw.Timestamp,
			Fields:    make([]telemetry.Field, 0, len(ch.fields)),
		}
		for _, f := range ch.fields {
			v, err := f.apply(raw)
			if err != nil {
				return nil, telemetry.Wrap(telemetry.Transform, "apply",
					fmt.Errorf("row %d: channel %s: %w", raw.Index, ch.streamID, err))
			}
			sample.Fields = append(sample.Fields, telemetry.Field{Name: f.name, Value: v})
		}
		out = append(out, sample)
	}
	return out, nil
}

func (f compiledField) apply(raw source.Raw) (float64, error) {
	v, ok := raw.Get(f.source)
	if !ok {
		return 0, fmt.Errorf("field %s: missing %q", f.name, f.source)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("field %s: %q is not finite", f.name, f.source)
	}
	if f.rel {
		v -= f.origin
	}
	out := v*f.factor + f.offset
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("field %s: result is not finite", f.name)
	}
	return out, nil
}

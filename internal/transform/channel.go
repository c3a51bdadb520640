// Package transform turns raw source samples into per-channel telemetry
// samples. A Stage is a pure function of the raw sample, the static channel
// definitions and the origin row captured at startup.
package transform

import (
	"fmt"

	"github.com/banshee-data/telemetry.replay/internal/telemetry"
	"github.com/banshee-data/telemetry.replay/internal/units"
)

// Scale factors applied to flight log columns.
const (
	// LatLonScaleFactor turns relative degrees into display units.
	LatLonScaleFactor = 1e5
	// AltitudeScaleFactor converts the logged height from feet to metres.
	AltitudeScaleFactor = units.FeetToMetres
	// AltitudeOffset is added after altitude scaling.
	AltitudeOffset = 0.0
)

// Stream IDs of the built-in channel sets.
const (
	SineWaveStream       = "sine_wave"
	ScalarStream         = "single_scalar_channel"
	FlightPositionStream = "flight_position"
	FlightAltitudeStream = "flight_altitude"
	FlightPitchStream    = "flight_pitch"
	FlightRollStream     = "flight_roll"
	FlightYawStream      = "flight_yaw"
)

// Flight log column names.
const (
	ColumnLatitude  = "OSD.latitude"
	ColumnLongitude = "OSD.longitude"
	ColumnHeight    = "OSD.height"
	ColumnPitch     = "OSD.pitch"
	ColumnRoll      = "OSD.roll"
	ColumnYaw       = "OSD.yaw"
)

// Field maps one raw input to one output field:
//
//	out = (raw - origin if Relative) * Scale * unit factor + Offset
//
// A zero Scale is treated as 1; channel files omit scale for that and
// reject an explicit 0. FromUnit and ToUnit are optional and must
// be given together.
type Field struct {
	Name     string  `yaml:"name"`
	Source   string  `yaml:"source"`
	Scale    float64 `yaml:"scale,omitempty"`
	Offset   float64 `yaml:"offset"`
	Relative bool    `yaml:"relative"`
	FromUnit string  `yaml:"from_unit"`
	ToUnit   string  `yaml:"to_unit"`
}

// Channel is one logical stream multiplexed onto the transport.
type Channel struct {
	StreamID string  `yaml:"stream_id"`
	Fields   []Field `yaml:"fields"`
}

// Validate checks a channel set: at least one channel, unique non-empty
// stream IDs, and unique non-reserved field names per channel.
func Validate(channels []Channel) error {
	if len(channels) == 0 {
		return fmt.Errorf("no channels configured")
	}
	seen := make(map[string]bool, len(channels))
	for _, ch := range channels {
		if ch.StreamID == "" {
			return fmt.Errorf("channel with empty stream_id")
		}
		if seen[ch.StreamID] {
			return fmt.Errorf("duplicate stream_id %q", ch.StreamID)
		}
		seen[ch.StreamID] = true
		if len(ch.Fields) == 0 {
			return fmt.Errorf("channel %s has no fields", ch.StreamID)
		}
		names := make(map[string]bool, len(ch.Fields))
		for _, f := range ch.Fields {
			switch f.Name {
			case "":
				return fmt.Errorf("channel %s: field with empty name", ch.StreamID)
			case telemetry.KeyStreamID, telemetry.KeyTimestamp:
				return fmt.Errorf("channel %s: field name %q is reserved", ch.StreamID, f.Name)
			}
			if names[f.Name] {
				return fmt.Errorf("channel %s: duplicate field %q", ch.StreamID, f.Name)
			}
			names[f.Name] = true
			if f.Source == "" {
				return fmt.Errorf("channel %s: field %s has no source", ch.StreamID, f.Name)
			}
			if _, err := f.unitFactor(); err != nil {
				return fmt.Errorf("channel %s: field %s: %w", ch.StreamID, f.Name, err)
			}
		}
	}
	return nil
}

func (f Field) unitFactor() (float64, error) {
	if f.FromUnit == "" && f.ToUnit == "" {
		return 1, nil
	}
	if f.FromUnit == "" || f.ToUnit == "" {
		return 0, fmt.Errorf("from_unit and to_unit must be set together")
	}
	return units.Factor(f.FromUnit, f.ToUnit)
}

// SyntheticChannels is the single-channel set for the sine generator.
func SyntheticChannels(streamID string) []Channel {
	if streamID == "" {
		streamID = SineWaveStream
	}
	return []Channel{{
		StreamID: streamID,
		Fields:   []Field{{Name: "value", Source: "value", Scale: 1}},
	}}
}

// FlightPositionChannels emits origin-relative latitude and longitude on a
// single channel.
func FlightPositionChannels() []Channel {
	return []Channel{positionChannel()}
}

// FlightChannels fans each flight log row out to position, altitude and
// attitude channels.
func FlightChannels() []Channel {
	return []Channel{
		positionChannel(),
		{
			StreamID: FlightAltitudeStream,
			Fields: []Field{{
				Name:   "altitude",
				Source: ColumnHeight,
				Scale:  AltitudeScaleFactor,
				Offset: AltitudeOffset,
			}},
		},
		{StreamID: FlightPitchStream, Fields: []Field{{Name: "pitch", Source: ColumnPitch, Scale: 1}}},
		{StreamID: FlightRollStream, Fields: []Field{{Name: "roll", Source: ColumnRoll, Scale: 1}}},
		{StreamID: FlightYawStream, Fields: []Field{{Name: "yaw", Source: ColumnYaw, Scale: 1}}},
	}
}

func positionChannel() Channel {
	return Channel{
		StreamID: FlightPositionStream,
		Fields: []Field{
			{Name: "rel_lat", Source: ColumnLatitude, Scale: LatLonScaleFactor, Relative: true},
			{Name: "rel_lon", Source: ColumnLongitude, Scale: LatLonScaleFactor, Relative: true},
		},
	}
}

// Builtin names accepted by Named.
const (
	SetSynthetic      = "synthetic"
	SetFlightPosition = "flight-position"
	SetFlight         = "flight"
)

// Named returns a built-in channel set by name. streamID only applies to
// the synthetic set.
func Named(name, streamID string) ([]Channel, error) {
	switch name {
	case SetSynthetic:
		return SyntheticChannels(streamID), nil
	case SetFlightPosition:
		return FlightPositionChannels(), nil
	case SetFlight:
		return FlightChannels(), nil
	default:
		return nil, fmt.Errorf("unknown channel set %q (want %s, %s or %s)", name, SetSynthetic, SetFlightPosition, SetFlight)
	}
}

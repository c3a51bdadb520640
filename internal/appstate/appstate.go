// Package appstate reads the initial application state handed to the
// process on standard input: a single JSON object such as
//
//	{"slider_values": {"frequency": 2.0, "y_axis_offset": 0.5}}
//
// The state is read once and never mutated. Missing keys resolve to the
// documented defaults and unknown keys are ignored.
package appstate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

// Defaults for the synthetic generator parameters.
const (
	DefaultFrequency   = 1.0
	DefaultYAxisOffset = 0.0
)

// maxPayloadBytes bounds the stdin read.
const maxPayloadBytes = 4 * 1024 * 1024

// AppState is the immutable startup state.
type AppState struct {
	raw    map[string]interface{}
	slider SliderValues
}

// SliderValues holds the recognised slider settings. Nil fields were not
// present in the payload.
type SliderValues struct {
	Frequency   *float64 `mapstructure:"frequency"`
	YAxisOffset *float64 `mapstructure:"y_axis_offset"`
}

// Read consumes r fully and parses it as one JSON object. Any failure is
// a MalformedInput error.
func Read(r io.Reader) (*AppState, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadBytes+1))
	if err != nil {
		return nil, telemetry.Wrap(telemetry.MalformedInput, "read state", err)
	}
	if len(data) > maxPayloadBytes {
		return nil, telemetry.Errorf(telemetry.MalformedInput, "read state", "payload exceeds %d bytes", maxPayloadBytes)
	}
	return Parse(data)
}

// Parse decodes a state payload.
func Parse(data []byte) (*AppState, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, telemetry.Errorf(telemetry.MalformedInput, "parse state", "empty payload")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, telemetry.Wrap(telemetry.MalformedInput, "parse state", err)
	}
	if raw == nil {
		return nil, telemetry.Errorf(telemetry.MalformedInput, "parse state", "state must be a JSON object, got null")
	}

	s := &AppState{raw: raw}
	if sv, ok := raw["slider_values"].(map[string]interface{}); ok {
		if err := decodeSliders(sv, &s.slider); err != nil {
			return nil, telemetry.Wrap(telemetry.MalformedInput, "decode slider_values", err)
		}
	}
	return s, nil
}

// Empty returns a state with no keys, so every accessor yields its default.
func Empty() *AppState {
	return &AppState{raw: map[string]interface{}{}}
}

func decodeSliders(in map[string]interface{}, out *SliderValues) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// Sliders returns the decoded slider settings.
func (s *AppState) Sliders() SliderValues {
	return s.slider
}

// Frequency returns slider_values.frequency or DefaultFrequency.
func (s *AppState) Frequency() float64 {
	if s.slider.Frequency == nil {
		return DefaultFrequency
	}
	return *s.slider.Frequency
}

// YAxisOffset returns slider_values.y_axis_offset or DefaultYAxisOffset.
func (s *AppState) YAxisOffset() float64 {
	if s.slider.YAxisOffset == nil {
		return DefaultYAxisOffset
	}
	return *s.slider.YAxisOffset
}

// Lookup walks nested objects along path. It reports false if any step is
// absent or not an object.
func (s *AppState) Lookup(path ...string) (interface{}, bool) {
	var cur interface{} = s.raw
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Float returns the number at path, or def when absent or not numeric.
// Numeric strings are accepted.
func (s *AppState) Float(def float64, path ...string) float64 {
	v, ok := s.Lookup(path...)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the boolean at path, or def when absent or not a boolean.
func (s *AppState) Bool(def bool, path ...string) bool {
	v, ok := s.Lookup(path...)
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// String renders the state for logging.
func (s *AppState) String() string {
	data, err := json.Marshal(s.raw)
	if err != nil {
		return fmt.Sprintf("%v", s.raw)
	}
	return string(data)
}

package source

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/telemetry.replay/internal/appstate"
	"github.com/banshee-data/telemetry.replay/internal/dataset"
	"github.com/banshee-data/telemetry.replay/internal/fsutil"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

func TestSynthetic_Defaults(t *testing.T) {
	for _, payload := range []string{`{}`, `{"slider_values":{}}`, `{"other":{"frequency":9}}`} {
		state, err := appstate.Parse([]byte(payload))
		require.NoError(t, err)
		s := NewSyntheticFromState(state)
		assert.Equal(t, 1.0, s.Frequency, payload)
		assert.Equal(t, 0.0, s.Offset, payload)
		assert.Equal(t, DefaultStep, s.Step)
	}
	assert.Equal(t, 1.0, NewSyntheticFromState(nil).Frequency)
}

func TestSynthetic_FirstSampleFromState(t *testing.T) {
	state, err := appstate.Parse([]byte(`{"slider_values":{"frequency":2.0,"y_axis_offset":0.5}}`))
	require.NoError(t, err)

	s := NewSyntheticFromState(state)
	raw, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 0.0, raw.Timestamp)
	v, ok := raw.Get(ValueField)
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
}

func TestSynthetic_SineIdentity(t *testing.T) {
	s := NewSynthetic(3.7, -1.25)
	for i := 0; i < 500; i++ {
		raw, err := s.Next()
		require.NoError(t, err)
		tm := float64(i) * 0.1
		assert.InDelta(t, tm, raw.Timestamp, 1e-9)
		assert.InDelta(t, math.Sin(tm*3.7)-1.25, raw.Values[ValueField], 1e-12)
		assert.Equal(t, i, raw.Index)
	}

	require.NoError(t, s.Rewind())
	raw, _ := s.Next()
	assert.Equal(t, 0.0, raw.Timestamp)
	assert.Equal(t, "synthetic", s.Name())
}

func threeRows(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New("ocean", []string{"timestamps_ns", "OSD.latitude", "OSD.longitude"}, [][]float64{
		{1_000_000_000, 36.0, -121.0},
		{1_100_000_000, 36.1, -121.1},
		{1_200_000_000, 36.2, -121.2},
	})
	require.NoError(t, err)
	return ds
}

func drain(t *testing.T, r *Replay) []Raw {
	t.Helper()
	var out []Raw
	for {
		raw, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, raw)
	}
}

func TestReplay_ConvertsTimestampsAndEnds(t *testing.T) {
	r, err := NewReplay(threeRows(t), DefaultReplayConfig())
	require.NoError(t, err)

	rows := drain(t, r)
	require.Len(t, rows, 3)
	assert.InDelta(t, 1.0, rows[0].Timestamp, 1e-9)
	assert.InDelta(t, 1.2, rows[2].Timestamp, 1e-9)
	assert.Equal(t, 36.1, rows[1].Values["OSD.latitude"])

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)

	origin := r.Origin()
	assert.Equal(t, 36.0, origin.Values["OSD.latitude"])
	assert.InDelta(t, 0.2, r.Span(), 1e-9)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, "replay:ocean", r.Name())
}

func TestReplay_ContinuePolicyKeepsTimestampsIncreasing(t *testing.T) {
	r, err := NewReplay(threeRows(t), DefaultReplayConfig())
	require.NoError(t, err)

	first := drain(t, r)
	require.NoError(t, r.Rewind())
	second := drain(t, r)
	require.Len(t, second, 3)

	assert.Equal(t, 1, r.Loops())
	assert.Equal(t, 1, second[0].Loop)
	assert.Equal(t, first[0].Values, second[0].Values)
	// One pass spans 0.2s and the median interval is 0.1s.
	assert.InDelta(t, 1.3, second[0].Timestamp, 1e-9)
	assert.Greater(t, second[0].Timestamp, first[2].Timestamp)
}

func TestReplay_ResetPolicyRepeatsTimestamps(t *testing.T) {
	r, err := NewReplay(threeRows(t), ReplayConfig{Policy: PolicyReset})
	require.NoError(t, err)

	first := drain(t, r)
	require.NoError(t, r.Rewind())
	second := drain(t, r)
	assert.Equal(t, first[0].Timestamp, second[0].Timestamp)
}

func TestReplay_Validation(t *testing.T) {
	noTS, err := dataset.New("x", []string{"OSD.latitude"}, [][]float64{{1}})
	require.NoError(t, err)
	gap, err := dataset.New("x", []string{"timestamps_ns"}, [][]float64{{1}, {math.NaN()}})
	require.NoError(t, err)
	backwards, err := dataset.New("x", []string{"timestamps_ns"}, [][]float64{{2}, {1}})
	require.NoError(t, err)
	empty, err := dataset.New("x", []string{"timestamps_ns"}, nil)
	require.NoError(t, err)

	for name, ds := range map[string]*dataset.Dataset{
		"no timestamp column": noTS,
		"missing timestamp":   gap,
		"backwards":           backwards,
		"empty":               empty,
		"nil":                 nil,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewReplay(ds, DefaultReplayConfig())
			require.Error(t, err)
			assert.True(t, telemetry.IsKind(err, telemetry.DataLoad), "got %v", err)
		})
	}
}

func TestReplay_SingleRowUsesFallbackGap(t *testing.T) {
	ds, err := dataset.New("one", []string{"timestamps_ns"}, [][]float64{{5e9}})
	require.NoError(t, err)
	r, err := NewReplay(ds, DefaultReplayConfig())
	require.NoError(t, err)

	a, _ := r.Next()
	require.NoError(t, r.Rewind())
	b, _ := r.Next()
	assert.InDelta(t, a.Timestamp+fallbackGap, b.Timestamp, 1e-9)
}

func TestLoadReplay(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.AddFile("flight.csv", []byte("timestamps_ns,OSD.latitude\n0,1\n10,2\n"))

	r, err := LoadReplay(fsys, "flight.csv", DefaultReplayConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	_, err = LoadReplay(fsys, "absent.csv", DefaultReplayConfig())
	assert.True(t, telemetry.IsKind(err, telemetry.DataLoad))
}

func TestParseTimestampPolicy(t *testing.T) {
	p, err := ParseTimestampPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyContinue, p)

	p, err = ParseTimestampPolicy("reset")
	require.NoError(t, err)
	assert.Equal(t, PolicyReset, p)

	_, err = ParseTimestampPolicy("rewind")
	assert.Error(t, err)
}

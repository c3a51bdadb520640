package units

import (
	"math"
	"testing"
)

func TestFactor(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		expected float64
		wantErr  bool
	}{
		{"ft to m", Feet, Metres, 0.3048, false},
		{"m to ft", Metres, Feet, 3.28084, false},
		{"m to m", Metres, Metres, 1, false},
		{"deg to rad", Degrees, Radians, math.Pi / 180, false},
		{"rad to deg", Radians, Degrees, 180 / math.Pi, false},
		{"length to angle", Feet, Degrees, 0, true},
		{"unknown from", "furlong", Metres, 0, true},
		{"unknown to", Metres, "parsec", 0, true},
		{"unknown identity", "x", "x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Factor(tt.from, tt.to)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Factor(%s, %s) = %f, want error", tt.from, tt.to, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Factor(%s, %s): %v", tt.from, tt.to, err)
			}
			if math.Abs(got-tt.expected) > 1e-5 {
				t.Errorf("Factor(%s, %s) = %f, want %f", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		unit     string
		expected bool
	}{
		{Metres, true},
		{Feet, true},
		{Degrees, true},
		{Radians, true},
		{"FT", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.unit); got != tt.expected {
			t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
		}
	}
}

package units

import (
	"errors"
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid dBm", DBM, true},
		{"valid mW", MW, true},
		{"invalid unit", "Watts", false},
		{"empty unit", "", false},
		{"case sensitive", "dbm", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	expected := "dBm, mW"
	result := GetValidUnitsString()
	if result != expected {
		t.Errorf("GetValidUnitsString() = %s, want %s", result, expected)
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		from, to string
		expected float64
	}{
		{"dBm identity", -70, DBM, DBM, -70},
		{"mW identity", 0.5, MW, MW, 0.5},
		{"0 dBm is 1 mW", 0, DBM, MW, 1},
		{"10 dBm is 10 mW", 10, DBM, MW, 10},
		{"-30 dBm to mW", -30, DBM, MW, 0.001},
		{"1 mW is 0 dBm", 1, MW, DBM, 0},
		{"100 mW to dBm", 100, MW, DBM, 20},
		{"1e-9 mW to dBm", 1e-9, MW, DBM, -90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Convert(tt.value, tt.from, tt.to)
			if err != nil {
				t.Fatalf("Convert(%f, %s, %s) returned error: %v", tt.value, tt.from, tt.to, err)
			}
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("Convert(%f, %s, %s) = %g, want %g", tt.value, tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestConvertRoundTrip(t *testing.T) {
	for _, v := range []float64{-50, -70, -90} {
		mw, err := Convert(v, DBM, MW)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		back, err := Convert(mw, MW, DBM)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(back-v) > 1e-9 {
			t.Errorf("round trip of %f gave %f", v, back)
		}
	}
}

func TestConvertUnsupported(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
	}{
		{"dBm to Watts", DBM, "Watts"},
		{"Watts to mW", "Watts", MW},
		{"unknown identity", "Watts", "Watts"},
		{"empty units", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(-50, tt.from, tt.to)
			if !errors.Is(err, ErrUnsupportedUnitConversion) {
				t.Errorf("Convert(-50, %q, %q) error = %v, want ErrUnsupportedUnitConversion", tt.from, tt.to, err)
			}
		})
	}
}

func TestConvertSlice(t *testing.T) {
	in := []float64{0, 10, -10}
	out, err := ConvertSlice(in, DBM, MW)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{1, 10, 0.1}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("out[%d] = %g, want %g", i, out[i], want[i])
		}
	}
	if in[1] != 10 {
		t.Errorf("input slice was modified: %v", in)
	}

	if _, err := ConvertSlice(nil, DBM, "Watts"); !errors.Is(err, ErrUnsupportedUnitConversion) {
		t.Errorf("expected ErrUnsupportedUnitConversion for empty slice with bad units, got %v", err)
	}
}

package mapping

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTransforms(t *testing.T) {
	tests := []struct {
		transform string
		in        any
		want      any
	}{
		{"string", nil, nil},
		{"string", int64(5), "5"},
		{"", []byte("abc"), "abc"},
		{"date", "2024-01-31", "2024-01-31"},
		{"date", "2024-01-31 08:15:00", "2024-01-31"},
		{"date", time.Date(2023, 12, 1, 23, 0, 0, 0, time.UTC), "2023-12-01"},
		{"date", "   ", nil},
		{"flag", "Y", "S"},
		{"flag", " true ", "S"},
		{"flag", "1", "S"},
		{"flag", "N", "N"},
		{"flag", nil, "N"},
		{"bool", "Y", true},
		{"bool", "y", true},
		{"bool", "N", false},
		{"bool", nil, false},
		{"bool", true, true},
		{"decimal", "12.500", json.Number("12.5")},
		{"decimal", "3,25", json.Number("3.25")},
		{"decimal", int64(30), json.Number("30")},
		{"int", "42", int64(42)},
		{"int", int64(7), int64(7)},
		{"INT", nil, nil},
	}

	for _, tt := range tests {
		fn, err := Lookup(tt.transform)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.transform, err)
		}
		got, err := fn(tt.in)
		if err != nil {
			t.Errorf("%s(%#v): unexpected error %v", tt.transform, tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s(%#v) = %#v, want %#v", tt.transform, tt.in, got, tt.want)
		}
	}
}

func TestTransformErrors(t *testing.T) {
	tests := []struct {
		transform string
		in        any
	}{
		{"date", "31/01/2024"},
		{"decimal", "abc"},
		{"int", "1.5"},
	}

	for _, tt := range tests {
		fn, _ := Lookup(tt.transform)
		if _, err := fn(tt.in); err == nil {
			t.Errorf("%s(%#v): expected error", tt.transform, tt.in)
		}
	}
}

package model

import (
	"encoding/json"
	"testing"
)

func TestMeasurementsUnmarshal(t *testing.T) {
	var m Measurements
	if err := json.Unmarshal([]byte(`{"chest": 102, "waist": 86.5}`), &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if m["chest"] != 102 || m["waist"] != 86.5 {
		t.Fatalf("unexpected values: %+v", m)
	}
}

func TestMeasurementsRejectNonNumeric(t *testing.T) {
	cases := []string{
		`{"chest": "wide"}`,
		`{"nested": {"a": 1}}`,
		`[1, 2, 3]`,
		`"not an object"`,
	}
	for _, raw := range cases {
		var m Measurements
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

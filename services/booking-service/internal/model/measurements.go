package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Measurements is a free-form body-measurement document: a flat JSON object
// of numeric values (e.g. {"chest": 102, "waist": 86.5}). Keys are not
// validated against any schema; only the structure is.
type Measurements map[string]float64

func (m *Measurements) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("measurements must be a JSON object: %w", err)
	}
	out := make(Measurements, len(raw))
	for key, val := range raw {
		var n float64
		if err := json.Unmarshal(val, &n); err != nil {
			return fmt.Errorf("measurement %q must be numeric", key)
		}
		out[key] = n
	}
	*m = out
	return nil
}

// MeasurementRecord is a named measurement set owned by one customer.
type MeasurementRecord struct {
	ID         string
	CustomerID string
	Name       string
	Details    Measurements
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

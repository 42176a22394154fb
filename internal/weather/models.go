package weather

import (
	"time"
)

// Record is one operator-entered weather observation.
// Location is the record's key; at most one record exists per location.
type Record struct {
	Location  string    `json:"location"`
	Date      time.Time `json:"date"` // always UTC
	TempMin   float64   `json:"tempMin"`
	TempMax   float64   `json:"tempMax"`
	Condition string    `json:"condition"`
}

// SearchFilter narrows a search. Every field is optional; a zero-valued
// field imposes no constraint.
type SearchFilter struct {
	Date      *time.Time `json:"date,omitempty"`
	Location  string     `json:"location,omitempty"`
	Condition string     `json:"condition,omitempty"`
}

// IsEmpty reports whether no filter field is set.
func (f SearchFilter) IsEmpty() bool {
	return f.Date == nil && f.Location == "" && f.Condition == ""
}

// FaultSnapshot is a point-in-time view of the fault injection settings.
type FaultSnapshot struct {
	DelayMs  int64   `json:"delayMs"`
	FailRate float64 `json:"failRate"`
}

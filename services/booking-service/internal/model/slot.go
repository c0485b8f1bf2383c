package model

// Slot is one bookable window of the daily grid. It is derived from the
// appointment store on demand and cached briefly; it is never persisted and
// never the source of truth.
type Slot struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Available bool   `json:"available"`
}

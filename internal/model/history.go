package model

import "time"

// PriceRecord is one persisted daily price row. At most one record exists
// per (ticker, date); same-day re-collection updates the row in place.
type PriceRecord struct {
	Ticker      string    `json:"ticker" db:"ticker"`
	Date        string    `json:"date" db:"date"` // calendar day, YYYY-MM-DD
	Open        float64   `json:"open" db:"open"`
	High        float64   `json:"high" db:"high"`
	Low         float64   `json:"low" db:"low"`
	Close       float64   `json:"close" db:"close"`
	Volume      int64     `json:"volume" db:"volume"`
	Source      string    `json:"source" db:"source"`
	CollectedAt time.Time `json:"collectedAt" db:"collected_at"`
}

// DateOf formats t as a PriceRecord calendar date with the time of day
// stripped.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// CollectorStats summarizes the collector and its persisted history.
type CollectorStats struct {
	TotalRecords    int        `json:"totalRecords"`
	UniqueTickers   int        `json:"uniqueTickers"`
	LastCollection  *time.Time `json:"lastCollection"`
	Running         bool       `json:"running"`
	IntervalSeconds float64    `json:"intervalSeconds"`
}

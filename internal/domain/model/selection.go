package model

import "time"

// RecencyRecord stores the last day a candidate was chosen for a variant.
type RecencyRecord struct {
	CandidateID  int64
	Variant      Variant
	LastSelected time.Time
}

// DailySelection is the persisted pick for one (date, variant).
// QuoteText is only set for the quote variant.
type DailySelection struct {
	Date        time.Time
	Variant     Variant
	CandidateID int64
	QuoteText   string
	CreatedAt   time.Time
}

// DateKey formats a calendar day the way stores persist it.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DateLayout is the persisted calendar-day layout.
const DateLayout = "2006-01-02"

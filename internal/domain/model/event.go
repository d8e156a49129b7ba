package model

import "time"

// SelectionEvent announces a committed daily selection. It never carries
// candidate ids so the day's answers cannot leak through the event stream.
type SelectionEvent struct {
	RunID     string    `json:"run_id"`
	Date      string    `json:"date"`
	Variants  []Variant `json:"variants"`
	Added     int       `json:"added"`
	Updated   int       `json:"updated"`
	Fallbacks []Variant `json:"fallbacks,omitempty"`
	At        time.Time `json:"at"`
}

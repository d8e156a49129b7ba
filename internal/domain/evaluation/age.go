package evaluation

import (
	"strings"
	"time"
)

// birthDateLayouts are tried in order. Day and month fields accept one or
// two digits.
var birthDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2.1.2006",
	"2. 1. 2006",
	"2.1.2006 15:04:05",
	"1/2/2006",
	"2006/01/02",
	"2006-01",
	"2006",
}

// ParseBirthDate parses the historical birth-date formats found in the
// candidate pool. It reports false for empty or unparseable input.
func ParseBirthDate(s string) (time.Time, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// AgeOn returns the age in whole years on ref of a person born on
// birthDate. It reports false when the birth date is unknown or after ref.
// Every caller computing an age goes through this function.
func AgeOn(birthDate string, ref time.Time) (int, bool) {
	born, ok := ParseBirthDate(birthDate)
	if !ok {
		return 0, false
	}
	ref = ref.UTC()
	on := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	if on.Before(born) {
		return 0, false
	}
	age := on.Year() - born.Year()
	if on.Month() < born.Month() || (on.Month() == born.Month() && on.Day() < born.Day()) {
		age--
	}
	return age, true
}

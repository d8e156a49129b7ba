// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Variant identifies one of the daily puzzle modes.
type Variant string

// Supported puzzle variants.
const (
	VariantClassic Variant = "classic"
	VariantQuote   Variant = "quote"
	VariantPhoto   Variant = "photo"
)

// Variants lists every variant in the order a daily run processes them.
var Variants = []Variant{VariantClassic, VariantQuote, VariantPhoto}

// ParseVariant converts a case-insensitive name into a Variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VariantClassic, VariantQuote, VariantPhoto:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

func (v Variant) String() string { return string(v) }

// Candidate is a person that can be the hidden target of a puzzle.
// Recency is joined in by the store; a missing key means the candidate was
// never selected for that variant.
type Candidate struct {
	ID             int64
	Name           string
	Party          string
	PartyShort     string
	Sex            string
	BirthDate      string // free-form, several historical formats
	Constituencies []string
	Educations     []string
	EducationLevel string
	PictureRef     string
	Quotes         []string
	Recency        map[Variant]time.Time
}

// FirstConstituency returns the first listed constituency or "".
func (c Candidate) FirstConstituency() string {
	for _, s := range c.Constituencies {
		if strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// PrimaryEducation returns the first education entry, falling back to the
// coarse education level.
func (c Candidate) PrimaryEducation() string {
	for _, s := range c.Educations {
		if strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return strings.TrimSpace(c.EducationLevel)
}

// NonBlankQuotes returns the quotes that contain more than whitespace.
func (c Candidate) NonBlankQuotes() []string {
	var out []string
	for _, q := range c.Quotes {
		if strings.TrimSpace(q) != "" {
			out = append(out, q)
		}
	}
	return out
}

// HasQuote reports whether the candidate has at least one non-blank quote.
func (c Candidate) HasQuote() bool { return len(c.NonBlankQuotes()) > 0 }

// HasPicture reports whether the candidate has a non-blank picture reference.
func (c Candidate) HasPicture() bool { return strings.TrimSpace(c.PictureRef) != "" }

// LastSelected returns the last day the candidate was chosen for variant.
func (c Candidate) LastSelected(v Variant) (time.Time, bool) {
	t, ok := c.Recency[v]
	return t, ok
}

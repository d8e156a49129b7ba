package model

import (
	"fmt"
	"strings"
)

// Attribute names a compared property of a candidate.
type Attribute string

// Attributes compared by the classic variant.
const (
	AttributeParty        Attribute = "party"
	AttributeSex          Attribute = "sex"
	AttributeConstituency Attribute = "constituency"
	AttributeEducation    Attribute = "education"
	AttributeAge          Attribute = "age"
)

// ClassicAttributes lists the attributes scored for a classic guess.
var ClassicAttributes = []Attribute{
	AttributeParty,
	AttributeSex,
	AttributeConstituency,
	AttributeEducation,
	AttributeAge,
}

// ParseAttribute converts a name into an Attribute.
func ParseAttribute(s string) (Attribute, error) {
	a := Attribute(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ClassicAttributes {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAttribute, s)
}

// Verdict is the feedback for one attribute.
type Verdict uint8

// Verdict values. Higher and Lower describe the hidden target relative to
// the guess: Higher means the true answer is higher than the guess.
const (
	VerdictCorrect Verdict = iota + 1
	VerdictIncorrect
	VerdictHigher
	VerdictLower
)

func (v Verdict) String() string {
	switch v {
	case VerdictCorrect:
		return "correct"
	case VerdictIncorrect:
		return "incorrect"
	case VerdictHigher:
		return "higher"
	case VerdictLower:
		return "lower"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (v Verdict) MarshalText() ([]byte, error) {
	switch v {
	case VerdictCorrect, VerdictIncorrect, VerdictHigher, VerdictLower:
		return []byte(v.String()), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownVerdict, uint8(v))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "correct":
		*v = VerdictCorrect
	case "incorrect":
		*v = VerdictIncorrect
	case "higher":
		*v = VerdictHigher
	case "lower":
		*v = VerdictLower
	default:
		return fmt.Errorf("%w: %q", ErrUnknownVerdict, string(b))
	}
	return nil
}

// Feedback maps each compared attribute to its verdict.
type Feedback map[Attribute]Verdict

// Snapshot is the public view of a candidate shown to guessers.
type Snapshot struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Party        string `json:"party"`
	PartyShort   string `json:"party_short"`
	Sex          string `json:"sex"`
	Age          *int   `json:"age,omitempty"`
	Constituency string `json:"constituency"`
	Education    string `json:"education"`
	PictureRef   string `json:"picture_ref,omitempty"`
}

// GuessResult is the outcome of scoring one guess.
type GuessResult struct {
	Variant  Variant  `json:"variant"`
	Exact    bool     `json:"exact"`
	Feedback Feedback `json:"feedback"`
	Guess    Snapshot `json:"guess"`
}

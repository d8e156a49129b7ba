// Package evaluation scores a guessed candidate against the hidden target.
package evaluation

import (
	"strings"
	"time"

	"github.com/okian/whodle/internal/domain/model"
)

// Evaluate compares guess to target for variant. Ages are computed on ref.
// Only the classic variant yields per-attribute feedback; an exact match
// always yields empty feedback.
func Evaluate(variant model.Variant, target, guess model.Candidate, ref time.Time) model.GuessResult {
	res := model.GuessResult{
		Variant:  variant,
		Exact:    target.ID == guess.ID,
		Feedback: model.Feedback{},
		Guess:    Snapshot(guess, ref),
	}
	if res.Exact || variant != model.VariantClassic {
		return res
	}

	res.Feedback[model.AttributeParty] = categorical(target.PartyShort, guess.PartyShort)
	res.Feedback[model.AttributeSex] = categorical(target.Sex, guess.Sex)
	res.Feedback[model.AttributeConstituency] = categorical(target.FirstConstituency(), guess.FirstConstituency())
	res.Feedback[model.AttributeEducation] = categorical(target.PrimaryEducation(), guess.PrimaryEducation())

	targetAge, tok := AgeOn(target.BirthDate, ref)
	guessAge, gok := AgeOn(guess.BirthDate, ref)
	res.Feedback[model.AttributeAge] = ordinal(targetAge, tok, guessAge, gok)
	return res
}

// Snapshot builds the public view of c with its age on ref.
func Snapshot(c model.Candidate, ref time.Time) model.Snapshot {
	s := model.Snapshot{
		ID:           c.ID,
		Name:         c.Name,
		Party:        c.Party,
		PartyShort:   c.PartyShort,
		Sex:          c.Sex,
		Constituency: c.FirstConstituency(),
		Education:    c.PrimaryEducation(),
		PictureRef:   strings.TrimSpace(c.PictureRef),
	}
	if age, ok := AgeOn(c.BirthDate, ref); ok {
		s.Age = &age
	}
	return s
}

func categorical(target, guess string) model.Verdict {
	if strings.EqualFold(strings.TrimSpace(target), strings.TrimSpace(guess)) {
		return model.VerdictCorrect
	}
	return model.VerdictIncorrect
}

// ordinal compares ages. An unknown age on either side cannot be ordered.
func ordinal(target int, targetKnown bool, guess int, guessKnown bool) model.Verdict {
	switch {
	case !targetKnown || !guessKnown:
		return model.VerdictIncorrect
	case target == guess:
		return model.VerdictCorrect
	case target > guess:
		return model.VerdictHigher
	default:
		return model.VerdictLower
	}
}

// Package seed loads candidates from a JSON file into the candidate store.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/whodle/internal/domain/model"
	"github.com/okian/whodle/pkg/logger"
)

// Sentinel kinds for seed errors.
var (
	ErrEmptyFile   = errors.New("no candidates in file")
	ErrInvalidFile = errors.New("invalid candidate file")
)

// Config holds configuration for a seed run.
type Config struct {
	DBPath string // SQLite database to write into
	File   string // JSON array of candidates
	DryRun bool   // parse and validate only
}

// Record is one candidate as it appears in the seed file.
type Record struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Party          string   `json:"party"`
	PartyShort     string   `json:"party_short"`
	Sex            string   `json:"sex"`
	BirthDate      string   `json:"birth_date"`
	Constituencies []string `json:"constituencies"`
	Educations     []string `json:"educations"`
	EducationLevel string   `json:"education_level"`
	PictureRef     string   `json:"picture_ref"`
	Quotes         []string `json:"quotes"`
}

// Candidate converts the record into the domain model.
func (r Record) Candidate() model.Candidate {
	return model.Candidate{
		ID:             r.ID,
		Name:           strings.TrimSpace(r.Name),
		Party:          r.Party,
		PartyShort:     r.PartyShort,
		Sex:            r.Sex,
		BirthDate:      r.BirthDate,
		Constituencies: r.Constituencies,
		Educations:     r.Educations,
		EducationLevel: r.EducationLevel,
		PictureRef:     r.PictureRef,
		Quotes:         r.Quotes,
	}
}

// Writer is the part of the candidate store a seed run needs.
type Writer interface {
	PutCandidate(ctx context.Context, c model.Candidate) error
}

// Parse decodes and validates a seed file. Ids must be positive and unique
// and every candidate needs a name.
func Parse(r io.Reader) ([]model.Candidate, error) {
	var records []Record
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	seen := make(map[int64]struct{}, len(records))
	out := make([]model.Candidate, 0, len(records))
	for i, rec := range records {
		c := rec.Candidate()
		switch {
		case c.ID <= 0:
			return nil, fmt.Errorf("%w: entry %d: id must be positive", ErrInvalidFile, i)
		case c.Name == "":
			return nil, fmt.Errorf("%w: entry %d: missing name", ErrInvalidFile, i)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidFile, c.ID)
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// Load writes candidates into w and returns how many were written.
func Load(ctx context.Context, w Writer, candidates []model.Candidate) (int, error) {
	log := logger.Get().Named("seed")
	for i, c := range candidates {
		if err := w.PutCandidate(ctx, c); err != nil {
			return i, fmt.Errorf("put candidate %d: %w", c.ID, err)
		}
		log.Debug(ctx, "candidate stored", logger.Int64("id", c.ID), logger.String("name", c.Name))
	}
	return len(candidates), nil
}

// ParseFile opens and parses path.
func ParseFile(path string) ([]model.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

package repository

import "github.com/okian/whodle/internal/domain/model"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithCandidates seeds the store with candidates. Entries with a
// non-positive id are skipped.
func WithCandidates(cs ...model.Candidate) Option {
	return func(s *MemoryStore) {
		for _, c := range cs {
			if c.ID > 0 {
				c.Recency = nil
				s.candidates[c.ID] = cloneCandidate(c)
			}
		}
	}
}

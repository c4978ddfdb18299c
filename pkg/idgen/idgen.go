// Package idgen issues persisted entity ids.
package idgen

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator issues sortable, globally unique ids.
type Generator interface {
	Generate() string
}

// UUIDv7 generates time-ordered UUIDv7 strings.
type UUIDv7 struct{}

// NewUUIDv7 returns the production generator.
func NewUUIDv7() Generator {
	return UUIDv7{}
}

// Generate returns a new UUIDv7. It falls back to a random UUID if the clock source fails.
func (UUIDv7) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Sequence generates deterministic ids "<prefix>-0001", "<prefix>-0002", ... for tests
// and offline dry runs. Safe for concurrent use.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequence returns a deterministic generator with the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix, next: 1}
}

// Generate returns the next id in the sequence.
func (s *Sequence) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("%s-%04d", s.prefix, s.next)
	s.next++
	return id
}

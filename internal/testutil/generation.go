package testutil

import (
	"fmt"
	"sync"
)

// FixedGenerationSource generates predictable generation ids.
//
// This enables deterministic build runs and golden snapshot comparison:
// the same inputs with the same FixedGenerationSource produce
// byte-identical table content.
//
// Unlike build.UUIDv7Source, ids come from a counter over a fixed prefix:
// "test-gen-1", "test-gen-2", and so on.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerationSource struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedGenerationSource creates a source with the given prefix.
// If prefix is empty, "test-gen" is used.
func NewFixedGenerationSource(prefix string) *FixedGenerationSource {
	if prefix == "" {
		prefix = "test-gen"
	}
	return &FixedGenerationSource{prefix: prefix}
}

// Generate returns the next id in sequence.
//
// Implements build.GenerationIDSource.
func (s *FixedGenerationSource) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

package build

import "github.com/google/uuid"

// GenerationIDSource yields identifiers for new build generations.
//
// Production uses UUIDv7Source; tests substitute a fixed source so
// generated table content is byte-stable.
type GenerationIDSource interface {
	Generate() string
}

// UUIDv7Source generates UUIDv7 generation ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so generation
// ids sort by build time, which keeps `generations` listings readable.
//
// Thread-safety: UUIDv7Source is stateless and safe for concurrent use.
type UUIDv7Source struct{}

// Generate returns a new hyphenated UUIDv7 string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Source) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

package testutil

// FixedIDGenerator returns the same execution ID every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario run twice produces byte-identical output.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a fixed execution ID generator.
//
// If id is empty, Generate() returns "test-execution".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-execution"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
//
// Implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

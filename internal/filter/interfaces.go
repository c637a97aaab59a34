// Package filter implements the payload-filter DSL: a recursive tagged
// Filter (Must/Should/MustNot/MinShould) over field Conditions, evaluated
// against a vector's metadata map.
package filter

import "fmt"

// VectorEntry is the package-local view of a vector carrying metadata,
// mirroring the shape used across every index/storage package to avoid an
// import cycle back to the root package.
type VectorEntry struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// Condition is satisfied by both field-level predicates (MatchKeyword,
// Range, GeoRadius, ...) and by a combinator Filter, which is how the DSL
// nests arbitrarily.
type Condition interface {
	// Evaluate reports whether metadata satisfies the condition. Callers
	// should go through the package-level Evaluate, which handles the
	// nil-metadata case uniformly.
	Evaluate(metadata map[string]interface{}) bool
	EstimateSelectivity() float64
	Validate() error
	String() string
}

// Evaluate is the package-level entry point matching evaluate(filter,
// metadata): it always returns false when metadata is absent, and a nil
// condition matches any present metadata.
func Evaluate(c Condition, metadata map[string]interface{}) bool {
	if metadata == nil {
		return false
	}
	if c == nil {
		return true
	}
	return c.Evaluate(metadata)
}

// Apply keeps only the entries whose metadata satisfies c.
func Apply(c Condition, entries []*VectorEntry) []*VectorEntry {
	kept := make([]*VectorEntry, 0, len(entries))
	for _, e := range entries {
		if Evaluate(c, e.Metadata) {
			kept = append(kept, e)
		}
	}
	return kept
}

// Error reports a malformed filter (bad field name, incompatible bound
// types, and so on).
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("filter: field %q: %s", e.Field, e.Message)
	}
	return "filter: " + e.Message
}

func newError(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

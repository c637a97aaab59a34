package filter

import (
	"fmt"
	"strings"
)

// MatchKeyword matches a field against a single exact value (keyword <->
// string, integer <-> i64, bool <-> bool, via the shared type-specific
// equality predicate).
type MatchKeyword struct {
	Field string
	Value interface{}
}

func NewMatchKeyword(field string, value interface{}) *MatchKeyword {
	return &MatchKeyword{Field: field, Value: value}
}

func (m *MatchKeyword) Evaluate(metadata map[string]interface{}) bool {
	v, ok := metadata[m.Field]
	if !ok {
		return false
	}
	return valuesEqual(v, m.Value)
}

func (m *MatchKeyword) Validate() error {
	if m.Field == "" {
		return newError(m.Field, "field name cannot be empty")
	}
	if m.Value == nil {
		return newError(m.Field, "value cannot be nil")
	}
	return nil
}

func (m *MatchKeyword) EstimateSelectivity() float64 { return 0.1 }

func (m *MatchKeyword) String() string { return fmt.Sprintf("%s == %v", m.Field, m.Value) }

// MatchAny matches a field if it equals any of the provided values.
type MatchAny struct {
	Field  string
	Values []interface{}
}

func NewMatchAny(field string, values []interface{}) *MatchAny {
	return &MatchAny{Field: field, Values: values}
}

func (m *MatchAny) Evaluate(metadata map[string]interface{}) bool {
	v, ok := metadata[m.Field]
	if !ok {
		return false
	}
	for _, candidate := range m.Values {
		if valuesEqual(v, candidate) {
			return true
		}
	}
	return false
}

func (m *MatchAny) Validate() error {
	if m.Field == "" {
		return newError(m.Field, "field name cannot be empty")
	}
	if len(m.Values) == 0 {
		return newError(m.Field, "values list cannot be empty")
	}
	return nil
}

func (m *MatchAny) EstimateSelectivity() float64 { return 0.3 }

func (m *MatchAny) String() string { return fmt.Sprintf("%s IN %v", m.Field, m.Values) }

// MatchText lowercases both the field value and the pattern then performs
// a case-insensitive substring match.
type MatchText struct {
	Field string
	Value string
}

func NewMatchText(field, value string) *MatchText {
	return &MatchText{Field: field, Value: value}
}

func (m *MatchText) Evaluate(metadata map[string]interface{}) bool {
	v, ok := metadata[m.Field]
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(m.Value))
}

func (m *MatchText) Validate() error {
	if m.Field == "" {
		return newError(m.Field, "field name cannot be empty")
	}
	return nil
}

func (m *MatchText) EstimateSelectivity() float64 { return 0.3 }

func (m *MatchText) String() string { return fmt.Sprintf("%s ~ %q", m.Field, m.Value) }

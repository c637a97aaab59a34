package filter

import "fmt"

// ValuesCount applies Range-style bounds to the length of an array field
// (a scalar field counts as length 1).
type ValuesCount struct {
	Field string
	Gte   *int
	Gt    *int
	Lte   *int
	Lt    *int
}

func NewValuesCount(field string, gte, gt, lte, lt *int) *ValuesCount {
	return &ValuesCount{Field: field, Gte: gte, Gt: gt, Lte: lte, Lt: lt}
}

func (v *ValuesCount) Evaluate(metadata map[string]interface{}) bool {
	raw, ok := metadata[v.Field]
	if !ok {
		return false
	}
	n := len(toSlice(raw))
	if v.Gte != nil && n < *v.Gte {
		return false
	}
	if v.Gt != nil && n <= *v.Gt {
		return false
	}
	if v.Lte != nil && n > *v.Lte {
		return false
	}
	if v.Lt != nil && n >= *v.Lt {
		return false
	}
	return true
}

func (v *ValuesCount) Validate() error {
	if v.Field == "" {
		return newError(v.Field, "field name cannot be empty")
	}
	if v.Gte == nil && v.Gt == nil && v.Lte == nil && v.Lt == nil {
		return newError(v.Field, "at least one bound must be specified")
	}
	return nil
}

func (v *ValuesCount) EstimateSelectivity() float64 { return 0.4 }

func (v *ValuesCount) String() string { return fmt.Sprintf("values_count(%s)", v.Field) }

// IsEmpty is true only when the field exists and is an empty string or an
// empty array.
type IsEmpty struct {
	Field string
}

func NewIsEmpty(field string) *IsEmpty { return &IsEmpty{Field: field} }

func (e *IsEmpty) Evaluate(metadata map[string]interface{}) bool {
	v, ok := metadata[e.Field]
	if !ok {
		return false
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case nil:
		return false
	default:
		if slice := toSlice(v); slice != nil {
			return len(slice) == 0
		}
		return false
	}
}

func (e *IsEmpty) Validate() error {
	if e.Field == "" {
		return newError(e.Field, "field name cannot be empty")
	}
	return nil
}

func (e *IsEmpty) EstimateSelectivity() float64 { return 0.2 }

func (e *IsEmpty) String() string { return fmt.Sprintf("is_empty(%s)", e.Field) }

// IsNull is true only when the field exists and its JSON value is
// explicit null.
type IsNull struct {
	Field string
}

func NewIsNull(field string) *IsNull { return &IsNull{Field: field} }

func (n *IsNull) Evaluate(metadata map[string]interface{}) bool {
	v, exists := metadata[n.Field]
	return exists && v == nil
}

func (n *IsNull) Validate() error {
	if n.Field == "" {
		return newError(n.Field, "field name cannot be empty")
	}
	return nil
}

func (n *IsNull) EstimateSelectivity() float64 { return 0.1 }

func (n *IsNull) String() string { return fmt.Sprintf("is_null(%s)", n.Field) }

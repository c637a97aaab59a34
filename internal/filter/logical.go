package filter

import "strconv"

// Kind identifies a logical combinator.
type Kind int

const (
	Must Kind = iota
	Should
	MustNotKind
	MinShouldKind
)

func (k Kind) String() string {
	switch k {
	case Must:
		return "must"
	case Should:
		return "should"
	case MustNotKind:
		return "must_not"
	case MinShouldKind:
		return "min_should"
	default:
		return "unknown"
	}
}

// Filter is the recursive tagged combinator of the payload-filter DSL:
// Must (all true), Should (any true), MustNot (none true) and MinShould
// (at least MinCount true). A Filter is itself a Condition, which is how
// the DSL nests.
type Filter struct {
	Kind       Kind
	Conditions []Condition
	MinCount   int // only meaningful for MinShouldKind
}

func NewMust(conditions ...Condition) *Filter {
	return &Filter{Kind: Must, Conditions: conditions}
}

func NewShould(conditions ...Condition) *Filter {
	return &Filter{Kind: Should, Conditions: conditions}
}

func NewMustNot(conditions ...Condition) *Filter {
	return &Filter{Kind: MustNotKind, Conditions: conditions}
}

func NewMinShould(minCount int, conditions ...Condition) *Filter {
	return &Filter{Kind: MinShouldKind, Conditions: conditions, MinCount: minCount}
}

func (f *Filter) Evaluate(metadata map[string]interface{}) bool {
	switch f.Kind {
	case Must:
		for _, c := range f.Conditions {
			if !c.Evaluate(metadata) {
				return false
			}
		}
		return true
	case Should:
		for _, c := range f.Conditions {
			if c.Evaluate(metadata) {
				return true
			}
		}
		return false
	case MustNotKind:
		for _, c := range f.Conditions {
			if c.Evaluate(metadata) {
				return false
			}
		}
		return true
	case MinShouldKind:
		count := 0
		for _, c := range f.Conditions {
			if c.Evaluate(metadata) {
				count++
			}
		}
		return count >= f.MinCount
	default:
		return false
	}
}

func (f *Filter) Validate() error {
	if len(f.Conditions) == 0 {
		return newError("", "filter must contain at least one condition")
	}
	if f.Kind == MinShouldKind && f.MinCount < 1 {
		return newError("", "min_should requires min_count >= 1")
	}
	for _, c := range f.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EstimateSelectivity follows an independence assumption: Must multiplies
// child selectivities, Should/MinShould use 1 minus the probability every
// child fails, MustNot inverts the combined child selectivity.
func (f *Filter) EstimateSelectivity() float64 {
	switch f.Kind {
	case Must:
		sel := 1.0
		for _, c := range f.Conditions {
			sel *= c.EstimateSelectivity()
		}
		return sel
	case Should, MinShouldKind:
		failAll := 1.0
		for _, c := range f.Conditions {
			failAll *= 1.0 - c.EstimateSelectivity()
		}
		return 1.0 - failAll
	case MustNotKind:
		childSel := 1.0
		for _, c := range f.Conditions {
			childSel *= c.EstimateSelectivity()
		}
		return 1.0 - childSel
	default:
		return 1.0
	}
}

func (f *Filter) String() string {
	joined := ""
	for i, c := range f.Conditions {
		if i > 0 {
			joined += ", "
		}
		joined += c.String()
	}
	if f.Kind == MinShouldKind {
		return f.Kind.String() + "(" + joined + ", min=" + strconv.Itoa(f.MinCount) + ")"
	}
	return f.Kind.String() + "(" + joined + ")"
}

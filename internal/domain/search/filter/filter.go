// Package filter expresses scalar metadata predicates the similarity backend
// can evaluate natively. Tag-set membership is not one of them; see the
// retrieval use case for the client-side tag filter.
package filter

import (
	"fmt"
	"slices"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a conjunction of must conditions and negated must_not conditions.
// The zero value matches everything.
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Equals builds a single-condition expression key == value.
func Equals(key, value string) (Expression, error) {
	c, err := NewMatch(key, value)
	if err != nil {
		return Expression{}, err
	}
	return Expression{must: []Condition{c}}, nil
}

// AllOf builds a conjunction of key == value matches, ordered by key.
func AllOf(matches map[string]string) (Expression, error) {
	keys := make([]string, 0, len(matches))
	for k := range matches {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	must := make([]Condition, 0, len(keys))
	for _, k := range keys {
		c, err := NewMatch(k, matches[k])
		if err != nil {
			return Expression{}, err
		}
		must = append(must, c)
	}
	if len(must) == 0 {
		return Expression{}, nil
	}
	return NewExpression(must, nil)
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.mustNot) == 0
}

// Lookup resolves a metadata field to its string form.
type Lookup func(key string) (string, bool)

// Matches evaluates the expression against a record's fields.
func (e Expression) Matches(get Lookup) bool {
	for _, c := range e.must {
		if !c.matches(get) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.matches(get) {
			return false
		}
	}
	return true
}

// Condition is a single equality clause over one or more accepted values.
type Condition struct {
	key    string
	values []string
}

// NewMatch creates an exact match condition.
func NewMatch(key, value string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, values: []string{value}}, nil
}

// NewAnyOf creates a condition satisfied by any of values.
func NewAnyOf(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	if slices.Contains(values, "") {
		return Condition{}, fmt.Errorf("empty value for key %q", key)
	}
	return Condition{key: key, values: slices.Clone(values)}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Values returns the accepted values.
func (c Condition) Values() []string { return c.values }

func (c Condition) matches(get Lookup) bool {
	v, ok := get(c.key)
	if !ok {
		return false
	}
	return slices.Contains(c.values, v)
}

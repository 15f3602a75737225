package filter

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// AnyText is the pseudo-attribute matching title and every free-form attribute.
const AnyText = "*"

// Expression is a structured predicate with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Equal builds a single-condition expression matching attribute key exactly.
func Equal(key, value string) (Expression, error) {
	c, err := NewMatch(key, value)
	if err != nil {
		return Expression{}, err
	}
	return Expression{must: []Condition{c}}, nil
}

// Text builds a single-condition free-text expression.
func Text(text string) (Expression, error) {
	c, err := NewLike(AnyText, text)
	if err != nil {
		return Expression{}, err
	}
	return Expression{must: []Condition{c}}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Matches evaluates the expression against a record.
// All must conditions hold, at least one should condition holds (if any), no must_not holds.
func (e Expression) Matches(m metacard.Metacard) bool {
	for _, c := range e.must {
		if !c.Matches(m) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.Matches(m) {
			return false
		}
	}
	if len(e.should) == 0 {
		return true
	}
	for _, c := range e.should {
		if c.Matches(m) {
			return true
		}
	}
	return false
}

// String renders a compact, log-friendly form of the expression.
func (e Expression) String() string {
	var parts []string
	for _, c := range e.must {
		parts = append(parts, "+"+c.String())
	}
	for _, c := range e.should {
		parts = append(parts, c.String())
	}
	for _, c := range e.mustNot {
		parts = append(parts, "-"+c.String())
	}
	return strings.Join(parts, " ")
}

// Condition is a single clause: an exact match or a case-insensitive substring match.
type Condition struct {
	key   string
	match string
	like  string
}

// NewMatch creates an exact attribute match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewLike creates a case-insensitive substring condition. Key "*" searches any text.
func NewLike(key, text string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if strings.TrimSpace(text) == "" {
		return Condition{}, fmt.Errorf("text is required for key %q", key)
	}
	return Condition{key: key, like: strings.ToLower(text)}, nil
}

// Key returns the attribute name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Like returns the lower-cased substring value.
func (c Condition) Like() string { return c.like }

// IsMatch reports whether this is an exact match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsLike reports whether this is a substring condition.
func (c Condition) IsLike() bool { return c.like != "" }

// Matches evaluates the condition against a record.
func (c Condition) Matches(m metacard.Metacard) bool {
	if c.key == AnyText {
		return c.matchesAnyText(m)
	}
	for _, v := range m.Values(c.key) {
		if c.IsMatch() && v == c.match {
			return true
		}
		if c.IsLike() && strings.Contains(strings.ToLower(v), c.like) {
			return true
		}
	}
	return false
}

func (c Condition) matchesAnyText(m metacard.Metacard) bool {
	needle := c.like
	if c.IsMatch() {
		needle = strings.ToLower(c.match)
	}
	if strings.Contains(strings.ToLower(m.Title()), needle) {
		return true
	}
	for _, v := range m.Attributes() {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func (c Condition) String() string {
	if c.IsMatch() {
		return c.key + "=" + c.match
	}
	return c.key + "~" + c.like
}

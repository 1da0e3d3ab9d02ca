package verif

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NegatePrefix marks a condition key that excludes matching rows.
const NegatePrefix = "not_"

// Condition requires (or, when Negate is set, forbids) a column value.
type Condition struct {
	Column string
	Value  string
	Negate bool
}

// Conditions are combined with logical AND.
type Conditions []Condition

// ParseConditions converts a column→value mapping into conditions. Keys with
// the not_ prefix become negated conditions on the remaining column name.
func ParseConditions(m map[string]string) Conditions {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Conditions, 0, len(keys))
	for _, k := range keys {
		c := Condition{Column: k, Value: m[k]}
		if strings.HasPrefix(k, NegatePrefix) {
			c.Column = strings.TrimPrefix(k, NegatePrefix)
			c.Negate = true
		}
		out = append(out, c)
	}
	return out
}

// ParseConditionArgs parses "COLUMN=value" or "not_COLUMN=value" arguments.
func ParseConditionArgs(args []string) (Conditions, error) {
	m := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid condition %q (want COLUMN=value)", a)
		}
		m[k] = strings.TrimSpace(v)
	}
	return ParseConditions(m), nil
}

// With returns a copy of c where the positive condition on column is replaced
// by value.
func (c Conditions) With(column, value string) Conditions {
	out := make(Conditions, 0, len(c)+1)
	for _, cond := range c {
		if cond.Column == column && !cond.Negate {
			continue
		}
		out = append(out, cond)
	}
	return append(out, Condition{Column: column, Value: value})
}

// Get returns the value of the positive condition on column, if any.
func (c Conditions) Get(column string) (string, bool) {
	for _, cond := range c {
		if cond.Column == column && !cond.Negate {
			return cond.Value, true
		}
	}
	return "", false
}

// Matches reports whether r satisfies every condition.
func (c Conditions) Matches(r *Record) bool {
	for _, cond := range c {
		v, _ := r.Field(cond.Column)
		if valuesEqual(v, cond.Value) == cond.Negate {
			return false
		}
	}
	return true
}

// Subset returns a copy of the rows of t that satisfy all conditions, in input
// order. An empty condition list returns a copy of the whole table. A condition
// on a column the table does not carry yields a *MissingColumnError.
func Subset(t *Table, conds Conditions) (*Table, error) {
	for _, c := range conds {
		if err := t.Require(c.Column); err != nil {
			return nil, err
		}
	}
	return t.Filter(conds.Matches), nil
}

// valuesEqual compares numerically when both sides are numbers so that a
// lead of "60000" matches "6e4" and "060000".
func valuesEqual(a, b string) bool {
	if a == b {
		return true
	}
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		return fa == fb
	}
	return false
}

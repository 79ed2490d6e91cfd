package storage

import (
	"fmt"
	"strings"
)

// Filter is a conjunction of predicates, matching the filter language in
// spec §4.7: `column = 'literal'`, `column IN ('a','b',…)`, and
// parenthesised disjunctions of either.
type Filter struct {
	terms []term
}

type term struct {
	// or holds a disjunction of sub-terms; when non-empty, eq/in are unused.
	or []term

	column string
	eq     string
	in     []string
	isIn   bool
}

// NewFilter starts an empty filter (matches every row).
func NewFilter() *Filter {
	return &Filter{}
}

// Eq adds a `column = 'value'` conjunct.
func (f *Filter) Eq(column, value string) *Filter {
	f.terms = append(f.terms, term{column: column, eq: value})
	return f
}

// In adds a `column IN ('a','b',…)` conjunct.
func (f *Filter) In(column string, values []string) *Filter {
	if len(values) == 0 {
		return f
	}
	f.terms = append(f.terms, term{column: column, in: values, isIn: true})
	return f
}

// Or adds a parenthesised disjunction of filters as one conjunct. Each
// argument filter's own terms are ORed together; nested Or groups inside
// an argument are flattened into that branch.
func (f *Filter) Or(branches ...*Filter) *Filter {
	var sub []term
	for _, b := range branches {
		sub = append(sub, b.terms...)
	}
	if len(sub) > 0 {
		f.terms = append(f.terms, term{or: sub})
	}
	return f
}

// Empty reports whether the filter has no conjuncts (matches everything).
func (f *Filter) Empty() bool {
	return f == nil || len(f.terms) == 0
}

// compile renders the filter to a parameterised WHERE clause (without the
// "WHERE" keyword) and its bound arguments, in the style a prepared
// statement expects.
func compile(f *Filter) (string, []any) {
	if f.Empty() {
		return "1=1", nil
	}
	var parts []string
	var args []any
	for _, t := range f.terms {
		clause, a := compileTerm(t)
		parts = append(parts, clause)
		args = append(args, a...)
	}
	return strings.Join(parts, " AND "), args
}

func compileTerm(t term) (string, []any) {
	if len(t.or) > 0 {
		var parts []string
		var args []any
		for _, sub := range t.or {
			clause, a := compileTerm(sub)
			parts = append(parts, clause)
			args = append(args, a...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", args
	}
	if t.isIn {
		placeholders := strings.Repeat("?,", len(t.in))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(t.in))
		for i, v := range t.in {
			args[i] = v
		}
		return fmt.Sprintf("%s IN (%s)", t.column, placeholders), args
	}
	return fmt.Sprintf("%s = ?", t.column), []any{t.eq}
}

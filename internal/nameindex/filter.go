package nameindex

import (
	"fmt"
	"regexp"
	"strings"
)

// Field is one of the taxonomy-defined predicate fields (spec §4.B).
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldAuthor      Field = "author"
	FieldLicense     Field = "license"
	FieldHomepage    Field = "homepage"
	FieldKeywords    Field = "keywords"
	FieldVersion     Field = "version"
	FieldRepository  Field = "repository"
)

var knownFields = map[Field]bool{
	FieldName: true, FieldDescription: true, FieldAuthor: true, FieldLicense: true,
	FieldHomepage: true, FieldKeywords: true, FieldVersion: true, FieldRepository: true,
}

// Predicate is one `field=value` or `field!=value` clause.
type Predicate struct {
	Field    Field
	Negate   bool
	Value    string
	Wildcard *regexp.Regexp // non-nil when Value contains '*'
}

// Match reports whether candidate satisfies the predicate.
func (p Predicate) Match(candidate string) bool {
	var matched bool
	if p.Wildcard != nil {
		matched = p.Wildcard.MatchString(candidate)
	} else {
		matched = strings.EqualFold(candidate, p.Value)
	}
	if p.Negate {
		return !matched
	}
	return matched
}

// ParseFilter parses a `&`-joined list of `field=value`/`field!=value`
// clauses (spec §4.B's filter grammar). Wildcards ('*') are converted to an
// anchored, case-insensitive regex.
func ParseFilter(expr string) ([]Predicate, error) {
	if expr == "" {
		return nil, nil
	}

	clauses := strings.Split(expr, "&")
	predicates := make([]Predicate, 0, len(clauses))

	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		negate := false
		field, value, ok := strings.Cut(clause, "!=")
		if ok {
			negate = true
		} else {
			field, value, ok = strings.Cut(clause, "=")
			if !ok {
				return nil, fmt.Errorf("malformed filter clause: %q", clause)
			}
		}

		f := Field(strings.TrimSpace(field))
		if !knownFields[f] {
			return nil, fmt.Errorf("unknown filter field: %q", f)
		}

		p := Predicate{Field: f, Negate: negate, Value: value}
		if strings.Contains(value, "*") {
			re, err := wildcardToRegex(value)
			if err != nil {
				return nil, fmt.Errorf("compiling wildcard %q: %w", value, err)
			}
			p.Wildcard = re
		}
		predicates = append(predicates, p)
	}

	return predicates, nil
}

// wildcardToRegex converts a '*'-wildcard pattern into an anchored,
// case-insensitive regular expression.
func wildcardToRegex(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, part := range strings.Split(pattern, "*") {
		b.WriteString(regexp.QuoteMeta(part))
		b.WriteString(".*")
	}
	s := b.String()
	s = strings.TrimSuffix(s, ".*") + "$"
	return regexp.Compile(s)
}

// NameFields splits predicates into name-scoped (Step 1) and the rest
// (Step 2), matching spec §4.B's two-step evaluation order.
func NameFields(predicates []Predicate) (nameOnly, rest []Predicate) {
	for _, p := range predicates {
		if p.Field == FieldName {
			nameOnly = append(nameOnly, p)
		} else {
			rest = append(rest, p)
		}
	}
	return
}

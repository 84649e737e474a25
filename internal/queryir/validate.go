package queryir

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used as a table or column name.
// Identifiers are quoted when compiled, but the pattern keeps configuration
// readable and rules out quoting tricks.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Validate checks every identifier a query references.
// Values are never inspected; they are always bound as parameters.
func Validate(q Query) error {
	switch query := q.(type) {
	case nil:
		return fmt.Errorf("nil query")
	case Select:
		return validateSelect(query)
	case *Select:
		return validateSelect(*query)
	case Count:
		return validateCount(query)
	case *Count:
		return validateCount(*query)
	case Delete:
		return validateDelete(query)
	case *Delete:
		return validateDelete(*query)
	default:
		return fmt.Errorf("unsupported query type: %T", q)
	}
}

func validateSelect(s Select) error {
	if !ValidIdentifier(s.From) {
		return fmt.Errorf("invalid relation name %q", s.From)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("select from %s: no columns", s.From)
	}
	for _, c := range s.Columns {
		if !ValidIdentifier(c) {
			return fmt.Errorf("select from %s: invalid column %q", s.From, c)
		}
	}
	for _, c := range s.OrderBy {
		if !ValidIdentifier(c) {
			return fmt.Errorf("select from %s: invalid order column %q", s.From, c)
		}
	}
	if s.Limit < 0 {
		return fmt.Errorf("select from %s: negative limit", s.From)
	}
	return validatePredicate(s.Filter)
}

func validateCount(c Count) error {
	if !ValidIdentifier(c.From) {
		return fmt.Errorf("invalid relation name %q", c.From)
	}
	return validatePredicate(c.Filter)
}

func validateDelete(d Delete) error {
	if !ValidIdentifier(d.From) {
		return fmt.Errorf("invalid relation name %q", d.From)
	}
	if d.Filter == nil {
		return fmt.Errorf("delete from %s: filter is required", d.From)
	}
	return validatePredicate(d.Filter)
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		if !ValidIdentifier(pred.Field) {
			return fmt.Errorf("invalid field %q", pred.Field)
		}
		return nil
	case *Equals:
		return validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
		return nil
	case *And:
		return validatePredicate(*pred)
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}

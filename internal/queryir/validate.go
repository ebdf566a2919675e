package queryir

import (
	"fmt"
	"regexp"
)

var propertyNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,99}$`)

// Validate checks a criterion tree: property names are well formed, values
// have a supported type and operators fit their values. All problems are
// reported, joined into one error.
//
// Validate is a pure function with no side effects.
func Validate(c Criterion) error {
	v := &validator{}
	v.validate(c)
	if len(v.errs) == 0 {
		return nil
	}
	return ValidationErrors(v.errs)
}

// ValidationErrors lists every problem found in a criterion tree.
type ValidationErrors []error

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d criteria errors:", len(e))
	for _, err := range e {
		msg += "\n  " + err.Error()
	}
	return msg
}

func (e ValidationErrors) Unwrap() []error {
	return e
}

// validator accumulates errors during traversal.
type validator struct {
	errs []error
}

func (v *validator) validate(c Criterion) {
	switch crit := c.(type) {
	case nil:
		v.errs = append(v.errs, fmt.Errorf("nil criterion"))
	case Comparison:
		if err := validateComparison(crit); err != nil {
			v.errs = append(v.errs, err)
		}
	case *Comparison:
		v.validate(*crit)
	case And:
		for _, sub := range crit.Criteria {
			v.validate(sub)
		}
	case Or:
		for _, sub := range crit.Criteria {
			v.validate(sub)
		}
	case Not:
		v.validate(crit.Criterion)
	default:
		v.errs = append(v.errs, fmt.Errorf("unsupported criterion type %T", c))
	}
}

func validateComparison(c Comparison) error {
	if !propertyNamePattern.MatchString(c.PropertyName) {
		return fmt.Errorf("invalid property name %q", c.PropertyName)
	}
	if !c.Operator.valid() {
		return fmt.Errorf("property %q: unknown operator %q", c.PropertyName, c.Operator)
	}
	switch c.Value.(type) {
	case string:
		return nil
	case int64, float64:
		if c.Operator.IsStringOnly() {
			return fmt.Errorf("property %q: operator %s needs a string value, got %T", c.PropertyName, c.Operator, c.Value)
		}
	case bool:
		if c.Operator != OpEquals && c.Operator != OpNotEquals {
			return fmt.Errorf("property %q: operator %s does not apply to booleans", c.PropertyName, c.Operator)
		}
	default:
		return fmt.Errorf("property %q: unsupported value type %T", c.PropertyName, c.Value)
	}
	return nil
}

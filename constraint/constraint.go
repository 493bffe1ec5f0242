// Package constraint holds the central catalog of per-field validation
// rules. Every persistable field has a constraint row; validating a
// value normalises it and checks charset and length.
package constraint

import (
	"strings"

	"github.com/contentforge/forge/codec"
	"github.com/contentforge/forge/pkg/apierror"
)

// ConstraintProperty is the validation rule for one property of a
// component.
type ConstraintProperty struct {
	PropertyName      string
	IsAlphabetic      bool
	IsNumeric         bool
	Min               int
	Max               int
	NotAllowed        []rune
	AdditionalAllowed []rune
}

// Constraint groups the property rules of one entity class.
type Constraint struct {
	ComponentName string
	Properties    []ConstraintProperty
}

// Property returns the rule for a property name.
func (c *Constraint) Property(name string) (*ConstraintProperty, error) {
	for i := range c.Properties {
		if c.Properties[i].PropertyName == name {
			return &c.Properties[i], nil
		}
	}
	return nil, apierror.NotFoundf("constraint: property %s not found for %s", name, c.ComponentName)
}

// Validate normalises and checks a value against the rule:
// trim, length bounds, disallowed-char replacement, newline sentinel,
// then a charset check with the additional allowed characters stripped.
// The returned value is the normalised one; Validate is idempotent.
func (p *ConstraintProperty) Validate(value string) (string, error) {
	v := strings.TrimSpace(value)

	if len(v) < p.Min {
		return "", apierror.BadInputf("Error: %s must be at least %d characters long", p.PropertyName, p.Min)
	}
	if len(v) > p.Max {
		return "", apierror.BadInputf("Error: %s must be at most %d characters long", p.PropertyName, p.Max)
	}

	for _, r := range p.NotAllowed {
		v = strings.ReplaceAll(v, string(r), "_")
	}
	v = strings.ReplaceAll(v, "\n", codec.NewlineSentinel)

	check := v
	for _, r := range p.AdditionalAllowed {
		check = strings.ReplaceAll(check, string(r), "")
	}

	switch {
	case p.IsAlphabetic && p.IsNumeric:
		for _, r := range check {
			if !isASCIILetter(r) && !isASCIIDigit(r) {
				return "", apierror.BadInputf("Error: %s contains an invalid character: %q", p.PropertyName, r)
			}
		}
	case p.IsAlphabetic:
		for _, r := range check {
			if !isASCIILetter(r) {
				return "", apierror.BadInputf("Error: %s should only contain letters", p.PropertyName)
			}
		}
	case p.IsNumeric:
		for _, r := range check {
			if !isASCIIDigit(r) {
				return "", apierror.BadInputf("Error: %s should only contain digits", p.PropertyName)
			}
		}
	}

	return v, nil
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

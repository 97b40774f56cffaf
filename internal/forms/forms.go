// Package forms implements declarative form validation: each field carries an
// ordered rule list, evaluated in order with short-circuit on the first
// failing rule per field, while failures are collected across all fields
// before reporting.
package forms

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Rule validates a single field value and returns a user-facing error.
type Rule func(value string) error

// Field binds a submitted value to its rule chain.
type Field struct {
	Name  string
	Value string
	Rules []Rule
}

// Validate runs every field's rule chain. It returns a map of field name to
// the first failing rule's message, or nil when all fields pass.
func Validate(fields ...Field) map[string]string {
	var errs map[string]string
	for _, f := range fields {
		for _, rule := range f.Rules {
			if err := rule(f.Value); err != nil {
				if errs == nil {
					errs = make(map[string]string)
				}
				errs[f.Name] = err.Error()
				break
			}
		}
	}
	return errs
}

// Required fails on the empty string.
func Required() Rule {
	return func(value string) error {
		if value == "" {
			return fmt.Errorf("this field is required")
		}
		return nil
	}
}

// Length bounds the value length in characters (runes), inclusive on both
// ends, so multibyte input is not penalized for its encoding.
func Length(min, max int) Rule {
	return func(value string) error {
		n := utf8.RuneCountInString(value)
		if n < min {
			return fmt.Errorf("must be at least %d characters long", min)
		}
		if n > max {
			return fmt.Errorf("must not exceed %d characters", max)
		}
		return nil
	}
}

// Email checks basic email shape and an overall length cap.
func Email() Rule {
	return func(value string) error {
		if !emailRegex.MatchString(value) {
			return fmt.Errorf("invalid email address")
		}
		if len(value) > 254 {
			return fmt.Errorf("email must not exceed 254 characters")
		}
		return nil
	}
}

// EqualTo fails unless the value matches other. label names the other field
// in the message.
func EqualTo(other, label string) Rule {
	return func(value string) error {
		if value != other {
			return fmt.Errorf("must match %s", label)
		}
		return nil
	}
}

// Username enforces the account name format: 3-30 characters of letters,
// numbers, underscores and hyphens, not starting or ending with a separator.
func Username() Rule {
	return func(value string) error {
		if len(value) < 3 {
			return fmt.Errorf("username must be at least 3 characters long")
		}
		if len(value) > 30 {
			return fmt.Errorf("username must not exceed 30 characters")
		}
		if !usernameRegex.MatchString(value) {
			return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
		}
		if value[0] == '_' || value[0] == '-' || value[len(value)-1] == '_' || value[len(value)-1] == '-' {
			return fmt.Errorf("username cannot start or end with underscore or hyphen")
		}
		return nil
	}
}

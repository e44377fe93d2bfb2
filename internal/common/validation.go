package common

import (
	"errors"
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// FromValidation turns ozzo field errors into a *ValidationError naming the
// first offending field. Other errors pass through unchanged.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	first := fields[keys[0]]
	var nested validation.Errors
	if errors.As(first, &nested) {
		if ve, ok := FromValidation(nested).(*ValidationError); ok {
			return &ValidationError{Field: keys[0] + "." + ve.Field, Message: ve.Message}
		}
	}
	return &ValidationError{Field: keys[0], Message: first.Error()}
}

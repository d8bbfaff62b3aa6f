// Package errpkg provides the error-wrapping conventions used across the
// crawler: every boundary error gets a short, consistent context prefix.
// Adapted from the teacher's infrastructure/errors package.
package errpkg

import "fmt"

// WrapWithContext wraps an error with additional context information.
func WrapWithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// WrapWithContextf wraps an error with formatted context information.
func WrapWithContextf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Package errors provides error categorization and retry helpers shared by
// AXIOM components. The state store uses it to absorb transient SQLite
// contention; the pipeline uses the categories to decide what is worth
// logging as a failure versus retrying quietly.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: a locked database, timeouts, temporary contention.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: constraint violations, invalid configuration, closed stores.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and retry context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that were made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// transientMarkers are substrings that identify retryable driver errors.
// modernc.org/sqlite surfaces SQLITE_BUSY/SQLITE_LOCKED as message text.
var transientMarkers = []string{
	"database is locked",
	"database table is locked",
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"timeout",
	"temporarily unavailable",
}

// Categorize classifies an error for retry decisions.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var cat *CategorizedError
	if errors.As(err, &cat) {
		return cat.Category
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}
	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}

	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return CategoryTransient
		}
	}
	return CategoryPermanent
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return Categorize(err) == CategoryTransient
}

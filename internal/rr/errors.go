package rr

import (
	"fmt"
	"strings"
)

// FetchError wraps a transport failure while retrieving a document.
type FetchError struct {
	Locator string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Locator, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means no structure could be extracted from a document.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s: %v", e.Reason, e.Err)
	}
	return "parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError means the document parsed but is incomplete against the
// expected round robin match counts.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation: " + strings.Join(e.Problems, "; ")
}

// DBError wraps a persistence failure.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("db %s: %v", e.Op, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

package loader

import "fmt"

// LoadError is the single error kind surfaced by the Loader. It covers
// scheme validation, empty or malformed contents, and transport
// failures, preserving the underlying cause when there is one.
type LoadError struct {
	URI    string
	Reason string
	Cause  error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load %s: %s: %v", e.URI, e.Reason, e.Cause)
	}
	return fmt.Sprintf("load %s: %s", e.URI, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

package analysis

import (
	"fmt"
	"strings"
)

// ValidationError means model output could not be coerced into a valid
// artifact after bounded repair attempts. Whatever partial title/summary was
// recovered is carried for diagnosability.
type ValidationError struct {
	Kind           string
	Attempts       int
	PartialTitle   string
	PartialSummary string
	Reason         string
}

func (e *ValidationError) Error() string {
	parts := []string{
		fmt.Sprintf("%s analysis output invalid after %d attempts: %s", e.Kind, e.Attempts, e.Reason),
	}
	if e.PartialTitle != "" {
		parts = append(parts, fmt.Sprintf("recovered title %q", e.PartialTitle))
	}
	if e.PartialSummary != "" {
		parts = append(parts, fmt.Sprintf("recovered summary %q", e.PartialSummary))
	}
	return strings.Join(parts, "; ")
}

// UpstreamError means the provider call itself failed (transport, auth,
// provider-side errors). Terminal for the owning task; never broker-retried.
type UpstreamError struct {
	Kind string
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s analysis upstream failure: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

package errortypes

import (
	"fmt"
	"strings"
)

// AggregateErrors bundles the independent failures of one operation, e.g.
// every rule a configuration breaks, into a single error value. Each
// underlying error stays reachable through errors.Is and errors.As.
type AggregateErrors struct {
	Message string
	Errors  []error
}

// NewAggregateErrors builds an AggregateErrors from msg and errs.
func NewAggregateErrors(msg string, errs []error) AggregateErrors {
	return AggregateErrors{
		Message: msg,
		Errors:  errs,
	}
}

// Error implements the standard error interface.
func (e AggregateErrors) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d error", e.Message, len(e.Errors))
	if len(e.Errors) > 1 {
		b.WriteByte('s')
	}
	b.WriteString("):\n")

	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d: %s\n", i+1, err.Error())
	}
	return b.String()
}

// Unwrap exposes the aggregated errors to the errors package.
func (e AggregateErrors) Unwrap() []error {
	return e.Errors
}

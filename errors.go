package datamine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoResult indicates a fetch or download was attempted before any query
// produced a result stream.
var ErrNoResult = errors.New("datamine: no query results available")

// AuthError indicates the endpoint rejected the supplied credentials.
// It is fatal and never retried.
type AuthError struct {
	// Reason is the status reason that triggered the rejection.
	Reason string
}

// Error implements the error interface for AuthError.
func (e *AuthError) Error() string {
	return "datamine: user access denied, update credentials"
}

// ConnectivityError indicates the endpoint never reported healthy within the
// probe budget.
type ConnectivityError struct {
	// Attempts is the number of probes issued before giving up.
	Attempts int

	// Reason is the last unhealthy status reason observed, if any.
	Reason string

	// Err is the last transport error observed, if any.
	Err error
}

// Error implements the error interface for ConnectivityError.
func (e *ConnectivityError) Error() string {
	msg := fmt.Sprintf("datamine: unable to connect after %d attempts", e.Attempts)
	if e.Reason != "" {
		msg += fmt.Sprintf(" (last status %s)", e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the last transport error, if any.
func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// SubmissionError indicates a query was never accepted by the server within
// the attempt budget.
type SubmissionError struct {
	// Query is the query text that failed to submit.
	Query string

	// Reasons is the deduplicated set of failure statuses observed.
	Reasons []string
}

// Error implements the error interface for SubmissionError.
func (e *SubmissionError) Error() string {
	return fmt.Sprintf("datamine: posting failed for %q with statuses [%s]",
		e.Query, strings.Join(e.Reasons, ", "))
}

// ProcessingError indicates a submitted query never produced results within
// the attempt budget.
type ProcessingError struct {
	// QueryId is the server-assigned job identifier.
	QueryId string

	// Query is the query text whose results never became ready.
	Query string

	// Reasons is the deduplicated set of failure statuses observed.
	Reasons []string
}

// Error implements the error interface for ProcessingError.
func (e *ProcessingError) Error() string {
	return fmt.Sprintf("datamine: processing failed for %q (job %s) with statuses [%s]",
		e.Query, e.QueryId, strings.Join(e.Reasons, ", "))
}

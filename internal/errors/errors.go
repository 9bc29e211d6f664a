package errors

import (
	"fmt"
)

// StractError is the structured error type for the search core. It carries
// enough context (category, severity, retryability) for the coordinator to
// decide what is fatal to a query versus what degrades gracefully, per the
// §7 error design: only the coordinator decides what is fatal.
type StractError struct {
	// Code is the unique error code (e.g. "ERR_301_RPC_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Index, RPC, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *StractError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *StractError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *StractError) Is(target error) bool {
	if t, ok := target.(*StractError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error and returns it for
// chaining.
func (e *StractError) WithDetail(key, value string) *StractError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new StractError with the given code and message. Category,
// severity, and retryable are derived from the code.
func New(code string, message string, cause error) *StractError {
	return &StractError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a StractError from an existing error.
func Wrap(code string, err error) *StractError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a fatal configuration/schema error.
func ConfigError(message string, cause error) *StractError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// SchemaMismatch creates a fatal schema-mismatch error (a segment's schema
// descriptor does not match the field the query path is asking for).
func SchemaMismatch(field string, cause error) *StractError {
	return New(ErrCodeSchemaMismatch, "schema mismatch for field "+field, cause).
		WithDetail("field", field)
}

// RPCTimeout creates a retryable RPC-timeout error.
func RPCTimeout(shard string, cause error) *StractError {
	return New(ErrCodeRPCTimeout, "rpc timeout contacting shard "+shard, cause).
		WithDetail("shard", shard)
}

// RPCUnavailable creates a retryable RPC-unavailable error.
func RPCUnavailable(shard string, cause error) *StractError {
	return New(ErrCodeRPCUnavailable, "shard unavailable: "+shard, cause).
		WithDetail("shard", shard)
}

// QueryParseError creates a non-fatal query parse error. Per §7, a parse
// failure resolves to empty results for the caller, not an error.
func QueryParseError(query string, cause error) *StractError {
	return New(ErrCodeQueryParse, "failed to parse query", cause).
		WithDetail("query", query)
}

// Busy creates the typed overload error returned immediately by the
// admission semaphore. It is never queued.
func Busy() *StractError {
	return New(ErrCodeBusy, "too many concurrent searches", nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *StractError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether err is a StractError with Retryable set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*StractError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal reports whether err is a StractError with fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*StractError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a StractError, or "" if not one.
func GetCode(err error) string {
	if se, ok := err.(*StractError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a StractError, or "" if not one.
func GetCategory(err error) Category {
	if se, ok := err.(*StractError); ok {
		return se.Category
	}
	return ""
}

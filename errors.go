package askql

import (
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeUnplannable ErrorType = "unplannable"
	ErrorTypeInvalidPlan ErrorType = "invalid_plan"
	ErrorTypeAggregation ErrorType = "aggregation"
	ErrorTypeCache       ErrorType = "cache"
	ErrorTypeExecution   ErrorType = "execution"
	ErrorTypeInternal    ErrorType = "internal"
)

// AskError represents unified errors from the planning pipeline. Every
// fatal condition surfaces as one of these: a machine-readable code plus
// a short actionable message, never a raw lower-level error string.
type AskError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Table   string         `json:"table,omitempty"`
	Column  string         `json:"column,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *AskError) Error() string {
	if e.Table != "" && e.Column != "" {
		return fmt.Sprintf("[%s:%s] table %s column '%s': %s", e.Type, e.Code, e.Table, e.Column, e.Message)
	}
	if e.Table != "" {
		return fmt.Sprintf("[%s:%s] table %s: %s", e.Type, e.Code, e.Table, e.Message)
	}
	if e.Column != "" {
		return fmt.Sprintf("[%s:%s] column '%s': %s", e.Type, e.Code, e.Column, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *AskError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to an AskError
func (e *AskError) WithDetails(details map[string]any) *AskError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to an AskError
func (e *AskError) WithDetail(key string, value any) *AskError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to an AskError
func (e *AskError) WithCause(cause error) *AskError {
	e.Cause = cause
	return e
}

// WithTable adds table context to an AskError
func (e *AskError) WithTable(table string) *AskError {
	e.Table = table
	return e
}

// WithColumn adds column context to an AskError
func (e *AskError) WithColumn(column string) *AskError {
	e.Column = column
	return e
}

// Error codes for the planning pipeline
const (
	// Unplannable conditions: no executable query can be derived
	ErrCodeNoTable      = "NO_TABLE"
	ErrCodeNoPlan       = "NO_PLAN_PROPOSED"
	ErrCodeUnknownTable = "UNKNOWN_LOGICAL_TABLE"
	ErrCodeEmptySchema  = "EMPTY_COLUMN_SET"

	// Invalid plan: schema or structural invariant violations
	ErrCodePlanShape       = "PLAN_SHAPE_INVALID"
	ErrCodeWildcardColumn  = "WILDCARD_COLUMN"
	ErrCodeUnknownColumn   = "UNKNOWN_COLUMN"
	ErrCodeInvalidFilter   = "INVALID_FILTER"
	ErrCodeInvalidMetric   = "INVALID_METRIC"
	ErrCodeGroupByRequired = "GROUP_BY_REQUIRED"
	ErrCodeInvalidGroupBy  = "INVALID_GROUP_BY"
	ErrCodeInvalidOrderBy  = "INVALID_ORDER_BY"

	// Aggregation column inference
	ErrCodeAggColumnUnresolved = "AGGREGATION_COLUMN_UNRESOLVED"

	// Semantic cache
	ErrCodeCacheUnavailable = "CACHE_UNAVAILABLE"
	ErrCodeBadEmbedding     = "BAD_EMBEDDING_DIMENSION"

	// Execution failures (closed classification set)
	ErrCodeExecMissingTable  = "EXEC_MISSING_TABLE"
	ErrCodeExecMissingColumn = "EXEC_MISSING_COLUMN"
	ErrCodeExecSyntax        = "EXEC_SYNTAX"
	ErrCodeExecPermission    = "EXEC_PERMISSION"
	ErrCodeExecRPCNotFound   = "EXEC_RPC_NOT_FOUND"
	ErrCodeExecUnknown       = "EXEC_UNKNOWN"
	ErrCodeUnhealable        = "UNHEALABLE"

	ErrCodeInternal = "INTERNAL_ERROR"
)

// NewUnplannableError creates a fatal planning error: no executable query
// can be derived from the request, and retrying will not help.
func NewUnplannableError(code, message string) *AskError {
	return &AskError{Type: ErrorTypeUnplannable, Code: code, Message: message}
}

// NewInvalidPlanError creates a validation error for a plan that violates
// a schema or structural invariant.
func NewInvalidPlanError(code, message string) *AskError {
	return &AskError{Type: ErrorTypeInvalidPlan, Code: code, Message: message}
}

// NewAggregationError signals that an aggregation column could not be
// resolved; the caller should ask the user to specify one.
func NewAggregationError(message string) *AskError {
	return &AskError{Type: ErrorTypeAggregation, Code: ErrCodeAggColumnUnresolved, Message: message}
}

// NewCacheError creates a cache-layer error. Callers treat these as a
// cache miss; they never abort the pipeline.
func NewCacheError(code, message string) *AskError {
	return &AskError{Type: ErrorTypeCache, Code: code, Message: message}
}

// NewExecutionError creates an execution-layer error with a remediation hint.
func NewExecutionError(code, message string) *AskError {
	return &AskError{Type: ErrorTypeExecution, Code: code, Message: message}
}

// NewInternalError creates an unexpected internal error.
func NewInternalError(message string) *AskError {
	return &AskError{Type: ErrorTypeInternal, Code: ErrCodeInternal, Message: message}
}

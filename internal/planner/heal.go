package planner

import (
	"strings"

	"github.com/askql-io/askql"
)

// FailureKind classifies an execution failure into the closed taxonomy
// the repair rules operate on.
type FailureKind string

const (
	FailureColumnNotFound  FailureKind = "COLUMN_NOT_FOUND"
	FailureTableNotFound   FailureKind = "TABLE_NOT_FOUND"
	FailureSessionMismatch FailureKind = "SESSION_MISMATCH"
	FailureInconsistent    FailureKind = "PLAN_INCONSISTENT"
	FailureSyntax          FailureKind = "SYNTAX"
	FailurePermission      FailureKind = "PERMISSION"
	FailureRPCNotFound     FailureKind = "RPC_NOT_FOUND"
	FailureUnknown         FailureKind = "UNKNOWN"
)

// Hint returns a human-readable remediation hint for the failure kind.
func (k FailureKind) Hint() string {
	switch k {
	case FailureColumnNotFound:
		return "a referenced column does not exist in the stored table; re-upload the dataset or rephrase the question"
	case FailureTableNotFound:
		return "the stored table is missing; upload the dataset again"
	case FailureSessionMismatch:
		return "the question referenced a table outside the current session"
	case FailureInconsistent:
		return "the generated query was internally inconsistent; a simplified retry was attempted"
	case FailureSyntax:
		return "the generated query was rejected by the storage engine"
	case FailurePermission:
		return "the storage engine denied access to the table"
	case FailureRPCNotFound:
		return "the storage engine endpoint is unavailable; try again shortly"
	default:
		return "the query failed for an unrecognized reason"
	}
}

// Code maps the failure kind onto the execution error codes.
func (k FailureKind) Code() string {
	switch k {
	case FailureColumnNotFound:
		return askql.ErrCodeExecMissingColumn
	case FailureTableNotFound:
		return askql.ErrCodeExecMissingTable
	case FailureSyntax:
		return askql.ErrCodeExecSyntax
	case FailurePermission:
		return askql.ErrCodeExecPermission
	case FailureRPCNotFound:
		return askql.ErrCodeExecRPCNotFound
	default:
		return askql.ErrCodeExecUnknown
	}
}

// ClassifyExecutionError inspects an execution error and assigns it a
// FailureKind. The match is over the error text because the storage
// engine is an opaque collaborator.
func ClassifyExecutionError(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "column") && (strings.Contains(msg, "not found") ||
		strings.Contains(msg, "does not exist") || strings.Contains(msg, "not exist")):
		return FailureColumnNotFound
	case (strings.Contains(msg, "table") || strings.Contains(msg, "relation")) &&
		(strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")):
		return FailureTableNotFound
	case strings.Contains(msg, "session mismatch") || strings.Contains(msg, "wrong session"):
		return FailureSessionMismatch
	case strings.Contains(msg, "inconsistent"):
		return FailureInconsistent
	case strings.Contains(msg, "syntax"):
		return FailureSyntax
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied") ||
		strings.Contains(msg, "not authorized"):
		return FailurePermission
	case strings.Contains(msg, "rpc") && strings.Contains(msg, "not found"):
		return FailureRPCNotFound
	default:
		return FailureUnknown
	}
}

// Repair attempts one rule-based repair of a failed plan. It returns a new
// plan (the input is never mutated) and whether a repair was possible.
// The repaired plan must be re-normalized, re-validated, and re-built from
// scratch; SQL text is never patched.
func Repair(plan *askql.StructuredPlan, kind FailureKind, sessionTable string) (*askql.StructuredPlan, bool) {
	switch kind {
	case FailureColumnNotFound:
		repaired := plan.Clone()
		repaired.Columns = []string{}
		repaired.GroupBy = []string{}
		repaired.OrderBy = []string{}
		return repaired, true
	case FailureSessionMismatch:
		if sessionTable == "" {
			return nil, false
		}
		repaired := plan.Clone()
		repaired.Tables = []string{sessionTable}
		return repaired, true
	case FailureInconsistent:
		repaired := plan.Clone()
		repaired.Filters = []askql.PlanFilter{}
		repaired.OrderBy = []string{}
		return repaired, true
	default:
		return nil, false
	}
}

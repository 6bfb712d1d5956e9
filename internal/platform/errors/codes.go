// Package errors provides structured, localizable errors for gRPC surfaces.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request validation errors
	CodeSessionIDEmpty   Code = "SESSION_ID_EMPTY"
	CodeMessageEmpty     Code = "MESSAGE_EMPTY"
	CodeModuleUnknown    Code = "MODULE_UNKNOWN"
	CodeRiskTierUnknown  Code = "RISK_TIER_UNKNOWN"
	CodeConfigInvalid    Code = "CONFIG_INVALID"
	CodeFilterInvalid    Code = "FILTER_INVALID"
	CodePageTokenInvalid Code = "PAGE_TOKEN_INVALID"

	// Action errors
	CodeActionIDEmpty           Code = "ACTION_ID_EMPTY"
	CodeActionTypeEmpty         Code = "ACTION_TYPE_EMPTY"
	CodeActionTypeUnknown       Code = "ACTION_TYPE_UNKNOWN"
	CodeActionNotPending        Code = "ACTION_NOT_PENDING"
	CodeActionInvalidTransition Code = "ACTION_INVALID_TRANSITION"

	// Conversation errors
	CodeNoActiveConversation Code = "NO_ACTIVE_CONVERSATION"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"

	// Execution errors
	CodeExecutionUnavailable Code = "EXECUTION_UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeSessionIDEmpty,
		CodeMessageEmpty,
		CodeModuleUnknown,
		CodeRiskTierUnknown,
		CodeConfigInvalid,
		CodeFilterInvalid,
		CodePageTokenInvalid,
		CodeActionIDEmpty,
		CodeActionTypeEmpty,
		CodeActionTypeUnknown:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeActionNotPending,
		CodeActionInvalidTransition:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeNoActiveConversation:
		return codes.NotFound

	// Aborted - lost a concurrent write
	case CodeConflict:
		return codes.Aborted

	case CodeExecutionUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}

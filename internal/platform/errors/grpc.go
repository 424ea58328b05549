package errors

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCCode maps domain codes to gRPC status codes.
//
// Forbidden and NotFound are recoverable at the caller's boundary;
// LogicViolation and EvaluatorFailure surface as internal errors.
func (c Code) GRPCCode() codes.Code {
	switch {
	case IsForbiddenCode(c):
		return codes.PermissionDenied
	case c == CodeNotFound:
		return codes.NotFound
	case c == CodeLogicViolation, c == CodeEvaluatorFailure:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// HandleError converts domain errors to gRPC status for client responses.
func HandleError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return status.Error(appErr.Code.GRPCCode(), appErr.Error())
	}

	return status.Error(codes.Internal, "an unexpected error occurred")
}

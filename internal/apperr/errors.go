// Package apperr is the error taxonomy shared by the backend and the client core.
package apperr

import (
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to every status produced here.
const Domain = "chat.v1"

type AppError struct {
	Code    Code   `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches two AppErrors by code and reason so sentinels work with errors.Is
// even after a round trip through a gRPC status.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Reason == t.Reason && (t.Message == "" || t.Message == e.Message)
}

// GRPCStatus lets status.FromError / status.Convert see the domain code.
// The reason travels as an ErrorInfo detail.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.Code.GRPC(), e.Message)
	if e.Reason == "" {
		return st
	}
	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{Reason: e.Reason, Domain: Domain})
	if err != nil {
		return st
	}
	return withInfo
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func WithReason(code Code, reason, message string) error {
	return &AppError{Code: code, Reason: reason, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func AlreadyExists(msg string) error {
	return New(CodeAlreadyExists, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthenticated, msg)
}

func Forbidden(msg string) error {
	return New(CodePermissionDenied, msg)
}

func Internal(msg string) error {
	return New(CodeInternal, msg)
}

func FailedPrecondition(msg string) error {
	return New(CodeFailedPrecondition, msg)
}

func Exhausted(msg string) error {
	return New(CodeResourceExhausted, msg)
}

// CodeOf returns the domain code carried by err, looking through wrapping
// and gRPC statuses.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	if st, ok := status.FromError(err); ok {
		return CodeFromGRPC(st.Code())
	}
	return CodeUnknown
}

// ReasonOf returns the machine readable reason of err ("" if none).
func ReasonOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}

// FromError rebuilds an AppError from an error returned by a gRPC call.
// Errors that are already AppErrors are returned unchanged.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	out := &AppError{Code: CodeFromGRPC(st.Code()), Message: st.Message()}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == Domain {
			out.Reason = info.GetReason()
		}
	}
	return out
}

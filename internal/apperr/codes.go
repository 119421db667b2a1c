package apperr

import "google.golang.org/grpc/codes"

type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeResourceExhausted  Code = "RESOURCE_EXHAUSTED"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

var toGRPC = map[Code]codes.Code{
	CodeUnknown:            codes.Unknown,
	CodeInvalidArgument:    codes.InvalidArgument,
	CodeNotFound:           codes.NotFound,
	CodeAlreadyExists:      codes.AlreadyExists,
	CodePermissionDenied:   codes.PermissionDenied,
	CodeUnauthenticated:    codes.Unauthenticated,
	CodeFailedPrecondition: codes.FailedPrecondition,
	CodeResourceExhausted:  codes.ResourceExhausted,
	CodeUnavailable:        codes.Unavailable,
	CodeInternal:           codes.Internal,
}

// GRPC returns the gRPC status code for c.
func (c Code) GRPC() codes.Code {
	if gc, ok := toGRPC[c]; ok {
		return gc
	}
	return codes.Unknown
}

// CodeFromGRPC is the inverse of Code.GRPC. Codes without a domain
// equivalent map to CodeUnknown.
func CodeFromGRPC(gc codes.Code) Code {
	for c, g := range toGRPC {
		if g == gc {
			return c
		}
	}
	if gc == codes.DeadlineExceeded || gc == codes.Canceled {
		return CodeUnavailable
	}
	return CodeUnknown
}

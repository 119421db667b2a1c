package main

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/auth"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
)

// context key type for storing auth claims in context
type authContextKey struct{}

// methods that don't require authentication
var unauthenticated = map[string]bool{
	rpc.Auth_SignUp_FullMethodName: true,
	rpc.Auth_SignIn_FullMethodName: true,
}

// getClaimsFromContext extracts auth claims from the context, if present.
func getClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return nil, false
	}
	c, ok := v.(*auth.Claims)
	return c, ok
}

// callerUID returns the authenticated uid or an Unauthenticated error.
func callerUID(ctx context.Context) (string, error) {
	claims, ok := getClaimsFromContext(ctx)
	if !ok || claims.UserID == "" {
		return "", apperr.Unauthorized("missing auth claims")
	}
	return claims.UserID, nil
}

// authenticate verifies the bearer token in the incoming metadata.
func authenticate(ctx context.Context, j *auth.JWTManager) (context.Context, error) {
	// extract Authorization header from metadata
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, apperr.Unauthorized("missing metadata")
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return nil, apperr.Unauthorized("missing authorization header")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeaders[0], "Bearer"))
	if token == "" {
		return nil, apperr.Unauthorized("invalid token")
	}

	claims, err := j.VerifyToken(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthenticated, "unauthenticated", err)
	}

	// attach claims into context for handlers
	return context.WithValue(ctx, authContextKey{}, claims), nil
}

// authUnaryInterceptor returns a UnaryServerInterceptor that enforces JWT authentication
// for all methods except the allowed unauthenticated list (SignUp, SignIn).
func authUnaryInterceptor(j *auth.JWTManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if unauthenticated[info.FullMethod] {
			return handler(ctx, req)
		}
		ctx, err := authenticate(ctx, j)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// authStreamInterceptor is the stream equivalent of authUnaryInterceptor.
func authStreamInterceptor(j *auth.JWTManager) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if unauthenticated[info.FullMethod] {
			return handler(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), j)
		if err != nil {
			return err
		}
		// wrap stream context with claims
		return handler(srv, grpcmiddlewareServerStream{ServerStream: ss, ctx: ctx})
	}
}

// grpcmiddlewareServerStream wraps grpc.ServerStream to override Context()
type grpcmiddlewareServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context (with claims)
func (g grpcmiddlewareServerStream) Context() context.Context { return g.ctx }

// errorUnaryInterceptor hides storage and driver errors behind Internal and
// logs them. Domain errors and statuses pass through unchanged.
func errorUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, publicError(logger, info.FullMethod, err)
		}
		return resp, nil
	}
}

// errorStreamInterceptor is the stream equivalent of errorUnaryInterceptor.
func errorStreamInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := handler(srv, ss); err != nil {
			return publicError(logger, info.FullMethod, err)
		}
		return nil
	}
}

func publicError(logger *slog.Logger, method string, err error) error {
	if apperr.CodeOf(err) != apperr.CodeUnknown {
		return err
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	logger.Error("request failed", "method", method, "err", err)
	return apperr.Internal("internal error")
}

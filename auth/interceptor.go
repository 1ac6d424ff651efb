package auth

import (
	"context"
	"huddle/domain"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	reflectionalphapb "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/status"
)

// Map of methods that do not require JWT authentication.
var publicMethods = map[string]struct{}{
	reflectionpb.ServerReflection_ServerReflectionInfo_FullMethodName:      {},
	reflectionalphapb.ServerReflection_ServerReflectionInfo_FullMethodName: {},
}

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

// UnaryInterceptor handles JWT validation for incoming gRPC calls.
// The overall health check (empty service name) stays public for probes.
func UnaryInterceptor(secret []byte) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if isPublicMethod(info.FullMethod) || isOverallHealthCheck(req) {
			return handler(ctx, req)
		}
		newCtx, err := authenticate(ctx, secret)
		if err != nil {
			return nil, err
		}
		if err := authorizeRequest(newCtx, req); err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

// StreamInterceptor does the same for streams such as Health/Watch.
// The scope of a health watch is only known once the request is received.
func StreamInterceptor(secret []byte) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if isPublicMethod(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), secret)
		if err != nil {
			return err
		}
		return handler(srv, &authorizedStream{ServerStream: ss, ctx: ctx})
	}
}

type authorizedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authorizedStream) Context() context.Context { return s.ctx }

func (s *authorizedStream) RecvMsg(m any) error {
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return err
	}
	return authorizeRequest(s.ctx, m)
}

func authenticate(ctx context.Context, secret []byte) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "metadata is missing")
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "authorization token is missing")
	}

	// Expecting the standard "Bearer <token>" format
	claims, err := ValidateToken(secret, strings.TrimPrefix(values[0], "Bearer "))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}

	newCtx := context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(newCtx, RolesKey, claims.Roles), nil
}

// authorizeRequest restricts per-scope health to scopes the caller belongs to.
// Team membership is owned by the team service, so any authenticated user may query a team.
func authorizeRequest(ctx context.Context, req any) error {
	check, ok := req.(*healthpb.HealthCheckRequest)
	if !ok || check.GetService() == "" {
		return nil
	}
	scope, ok := domain.ParseScope(check.GetService())
	if !ok {
		return nil
	}
	userID, _ := UserIDFromContext(ctx)
	if !CanObserve(userID, scope) {
		return status.Errorf(codes.PermissionDenied, "scope %s is not visible to the caller", scope.Key())
	}
	return nil
}

// CanObserve tells whether userID may watch scope.
func CanObserve(userID string, scope domain.Scope) bool {
	switch scope.Kind {
	case domain.ScopeInbox:
		return scope.UserID == userID
	case domain.ScopePrivate:
		return scope.HasMember(userID)
	case domain.ScopeTeam:
		return userID != ""
	default:
		return false
	}
}

func isOverallHealthCheck(req any) bool {
	check, ok := req.(*healthpb.HealthCheckRequest)
	return ok && check.GetService() == ""
}

// isPublicMethod checks if the current gRPC method is allowed without a token.
func isPublicMethod(method string) bool {
	_, ok := publicMethods[method]
	return ok
}

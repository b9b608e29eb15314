package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

type access int

const (
	accessPublic access = iota
	accessUser
	accessAdmin
)

// methodAccess lists what each RPC requires. Unknown methods need a token.
var methodAccess = map[string]access{
	api.AuthService_Register_FullMethodName:       accessPublic,
	api.AuthService_Login_FullMethodName:          accessPublic,
	api.AuthService_RefreshToken_FullMethodName:   accessPublic,
	api.AuthService_ForgotPassword_FullMethodName: accessPublic,
	api.AuthService_ResetPassword_FullMethodName:  accessPublic,
	api.AuthService_Ping_FullMethodName:           accessPublic,

	api.AuthService_Logout_FullMethodName:         accessUser,
	api.AuthService_Me_FullMethodName:             accessUser,
	api.AuthService_ChangePassword_FullMethodName: accessUser,
	api.AuthService_UpdateProfile_FullMethodName:  accessUser,

	api.AuthService_ListAccounts_FullMethodName:  accessAdmin,
	api.AuthService_GetAccount_FullMethodName:    accessAdmin,
	api.AuthService_DeleteAccount_FullMethodName: accessAdmin,
	api.AuthService_SetActive_FullMethodName:     accessAdmin,
	api.AuthService_ListRoles_FullMethodName:     accessAdmin,
	api.AuthService_CreateRole_FullMethodName:    accessAdmin,
	api.AuthService_AddRole_FullMethodName:       accessAdmin,
	api.AuthService_RemoveRole_FullMethodName:    accessAdmin,
}

func requiredAccess(method string) access {
	if a, ok := methodAccess[method]; ok {
		return a
	}
	return accessUser
}

// ClaimsFromContext returns the caller's claims placed by the interceptor.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

func accessTokenFromContext(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	need := requiredAccess(info.FullMethod)
	if need == accessPublic {
		return handler(ctx, req)
	}

	accessToken := accessTokenFromContext(ctx)
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			// the client refreshes on this exact message
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	if need == accessAdmin && !claims.HasRole(common.AdminRoleName) {
		s.logger.Warn(ctx, "admin method denied", "method", info.FullMethod, "account_id", claims.Subject)
		return nil, status.Error(codes.PermissionDenied, common.ErrorForbidden.Error())
	}

	ctx = context.WithValue(ctx, claimsKey, claims)
	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	if code == codes.Internal || code == codes.Unknown {
		s.logger.Error(ctx, "request failed", args...)
	} else {
		s.logger.Debug(ctx, "request", args...)
	}

	return resp, err
}

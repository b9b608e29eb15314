// Package grpc exposes the auth service over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// AuthService is the part of services.AuthService the transport calls.
type AuthService interface {
	Register(ctx context.Context, req services.RegisterRequest) (string, error)
	Login(ctx context.Context, login, password string) (*models.AuthResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*models.AuthResult, error)
	Logout(ctx context.Context, accountID string) (bool, error)
	ChangePassword(ctx context.Context, accountID, current, newPassword string) error
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, email, token, newPassword string) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	UpdateProfile(ctx context.Context, id string, upd services.ProfileUpdate) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	CreateRole(ctx context.Context, name string) (*models.Role, error)
	ListAllRoles(ctx context.Context) ([]*models.Role, error)
	AddRole(ctx context.Context, accountID, role string) error
	RemoveRole(ctx context.Context, accountID, role string) error
	ListRoles(ctx context.Context, accountID string) ([]string, error)
}

// TokenParser validates access tokens presented by callers.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type GRPCServer struct {
	api.UnimplementedAuthServiceServer
	address string
	svc     AuthService
	tokens  TokenParser
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, svc AuthService, tokens TokenParser) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		svc:     svc,
		tokens:  tokens,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
	)
	api.RegisterAuthServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}

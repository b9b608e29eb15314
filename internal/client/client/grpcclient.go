package client

import (
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      api.AuthServiceClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	onTokens     func(access, refresh string)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	s.accessToken, s.refreshToken = access, refresh
	fn := s.onTokens
	s.mu.Unlock()

	if fn != nil {
		fn(access, refresh)
	}
}

// Restore installs a previously saved token pair without notifying the
// listener.
func (s *GRPCClient) Restore(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken = access, refresh
}

// OnTokensChanged registers fn to be called after every login, rotation
// or logout. Empty values mean the session is gone.
func (s *GRPCClient) OnTokensChanged(fn func(access, refresh string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokens = fn
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	access, _ := s.tokens()

	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if err == nil || !isTokenExpired(err) || method == api.AuthService_RefreshToken_FullMethodName {
		return err
	}

	if rerr := s.Refresh(ctx); rerr != nil {
		return err
	}

	// tokens refreshed, retry once with the new access token
	access, _ = s.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

// NewGRPCClient dials endpointURL lazily; no traffic is sent until the
// first call.
func NewGRPCClient(endpointURL string) (*GRPCClient, error) {
	return newGRPCClient(endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
}

func newGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	opts = append(opts, grpc.WithUnaryInterceptor(c.accessTokenInterceptor))
	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = api.NewAuthServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) LoggedIn() bool {
	access, _ := s.tokens()
	return access != ""
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, req *api.RegisterRequest) (string, error) {
	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return "", mapError(err)
	}
	return resp.ID, nil
}

func (s *GRPCClient) Login(ctx context.Context, login string, password []byte) (*api.AuthResponse, error) {
	resp, err := s.client.Login(ctx, &api.LoginRequest{Login: login, Password: string(password)})
	if err != nil {
		return nil, mapError(err)
	}
	s.setTokens(resp.AccessToken, resp.RefreshToken)
	return resp, nil
}

// Refresh rotates the stored token pair. On rejection the session is
// dropped.
func (s *GRPCClient) Refresh(ctx context.Context) error {
	access, refresh := s.tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	resp, err := s.client.RefreshToken(ctx, &api.RefreshTokenRequest{AccessToken: access, RefreshToken: refresh})
	if err != nil {
		if status.Code(err) == codes.Unauthenticated {
			s.setTokens("", "")
		}
		return mapError(err)
	}
	s.setTokens(resp.AccessToken, resp.RefreshToken)
	return nil
}

func (s *GRPCClient) Logout(ctx context.Context) error {
	if !s.LoggedIn() {
		return ErrNotLoggedIn
	}
	_, err := s.client.Logout(ctx, &api.LogoutRequest{})
	s.setTokens("", "")
	return mapError(err)
}

func (s *GRPCClient) Me(ctx context.Context) (*api.Profile, error) {
	resp, err := s.client.Me(ctx, &api.MeRequest{})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) ChangePassword(ctx context.Context, current, newPassword []byte) error {
	_, err := s.client.ChangePassword(ctx, &api.ChangePasswordRequest{
		CurrentPassword: string(current),
		NewPassword:     string(newPassword),
	})
	return mapError(err)
}

func (s *GRPCClient) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.Profile, error) {
	resp, err := s.client.UpdateProfile(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) ForgotPassword(ctx context.Context, email string) error {
	_, err := s.client.ForgotPassword(ctx, &api.ForgotPasswordRequest{Email: email})
	return mapError(err)
}

func (s *GRPCClient) ResetPassword(ctx context.Context, email, token string, newPassword []byte) error {
	_, err := s.client.ResetPassword(ctx, &api.ResetPasswordRequest{Email: email, Token: token, NewPassword: string(newPassword)})
	return mapError(err)
}

func (s *GRPCClient) ListAccounts(ctx context.Context) ([]api.Profile, error) {
	resp, err := s.client.ListAccounts(ctx, &api.ListAccountsRequest{})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Accounts, nil
}

// GetAccount treats an argument containing "@" as an email address.
func (s *GRPCClient) GetAccount(ctx context.Context, idOrEmail string) (*api.Profile, error) {
	req := &api.GetAccountRequest{ID: idOrEmail}
	if strings.Contains(idOrEmail, "@") {
		req = &api.GetAccountRequest{Email: idOrEmail}
	}
	resp, err := s.client.GetAccount(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) DeleteAccount(ctx context.Context, id string) error {
	_, err := s.client.DeleteAccount(ctx, &api.DeleteAccountRequest{ID: id})
	return mapError(err)
}

func (s *GRPCClient) SetActive(ctx context.Context, id string, active bool) error {
	_, err := s.client.SetActive(ctx, &api.SetActiveRequest{ID: id, Active: active})
	return mapError(err)
}

func (s *GRPCClient) ListRoles(ctx context.Context, accountID string) ([]string, error) {
	resp, err := s.client.ListRoles(ctx, &api.ListRolesRequest{AccountID: accountID})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Roles, nil
}

func (s *GRPCClient) CreateRole(ctx context.Context, name string) (*api.Role, error) {
	resp, err := s.client.CreateRole(ctx, &api.CreateRoleRequest{Name: name})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) AddRole(ctx context.Context, accountID, role string) error {
	_, err := s.client.AddRole(ctx, &api.RoleMembershipRequest{AccountID: accountID, Role: role})
	return mapError(err)
}

func (s *GRPCClient) RemoveRole(ctx context.Context, accountID, role string) error {
	_, err := s.client.RemoveRole(ctx, &api.RoleMembershipRequest{AccountID: accountID, Role: role})
	return mapError(err)
}

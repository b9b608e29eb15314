package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// fakeServer hands out a1/r1 on login, rejects a1 as expired and rotates
// to a2/r2 on refresh.
type fakeServer struct {
	api.UnimplementedAuthServiceServer

	mu        sync.Mutex
	refreshes int
	logouts   int
	lastGet   *api.GetAccountRequest
}

func tokenFrom(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (f *fakeServer) Login(_ context.Context, req *api.LoginRequest) (*api.AuthResponse, error) {
	if req.Password != "pw" {
		return nil, status.Error(codes.Unauthenticated, "InvalidCredentials")
	}
	return &api.AuthResponse{AccessToken: "a1", RefreshToken: "r1"}, nil
}

func (f *fakeServer) RefreshToken(_ context.Context, req *api.RefreshTokenRequest) (*api.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.AccessToken != "a1" || req.RefreshToken != "r1" {
		return nil, status.Error(codes.Unauthenticated, "RefreshTokenInvalid")
	}
	f.refreshes++
	return &api.AuthResponse{AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (f *fakeServer) Me(ctx context.Context, _ *api.MeRequest) (*api.Profile, error) {
	switch tokenFrom(ctx) {
	case "a1":
		return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	case "a2":
		return &api.Profile{UserName: "alice"}, nil
	default:
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
}

func (f *fakeServer) Logout(ctx context.Context, _ *api.LogoutRequest) (*api.LogoutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return &api.LogoutResponse{LoggedOut: true}, nil
}

func (f *fakeServer) GetAccount(_ context.Context, req *api.GetAccountRequest) (*api.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastGet = req
	return &api.Profile{ID: "id-1"}, nil
}

func (f *fakeServer) AddRole(context.Context, *api.RoleMembershipRequest) (*api.Empty, error) {
	return nil, status.Error(codes.AlreadyExists, "RoleAlreadyAssigned")
}

func newTestClient(t *testing.T) (*GRPCClient, *fakeServer) {
	t.Helper()

	fake := &fakeServer{}
	lis := bufconn.Listen(1 << 16)
	srv := grpc.NewServer()
	api.RegisterAuthServiceServer(srv, fake)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := newGRPCClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, fake
}

func TestGRPCClient_RefreshesOnExpiredToken(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	_, err := c.Login(ctx, "alice", []byte("pw"))
	require.NoError(t, err)
	assert.True(t, c.LoggedIn())

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.UserName)
	assert.Equal(t, 1, fake.refreshes)

	access, refresh := c.tokens()
	assert.Equal(t, "a2", access)
	assert.Equal(t, "r2", refresh)
}

func TestGRPCClient_FailedRefreshDropsSession(t *testing.T) {
	c, _ := newTestClient(t)
	c.setTokens("a1", "stale")

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, c.LoggedIn())
}

func TestGRPCClient_RestoreAndTokenListener(t *testing.T) {
	c, fake := newTestClient(t)

	var mu sync.Mutex
	var seen [][2]string
	c.OnTokensChanged(func(access, refresh string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, [2]string{access, refresh})
	})

	c.Restore("a1", "r1")
	assert.True(t, c.LoggedIn())

	_, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.refreshes)

	require.NoError(t, c.Logout(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][2]string{{"a2", "r2"}, {"", ""}}, seen)
}

func TestGRPCClient_LoginFailure(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Login(context.Background(), "alice", []byte("wrong"))
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "InvalidCredentials")
	assert.False(t, c.LoggedIn())
}

func TestGRPCClient_Logout(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Logout(ctx), ErrNotLoggedIn)

	_, err := c.Login(ctx, "alice", []byte("pw"))
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx))
	assert.False(t, c.LoggedIn())
	assert.Equal(t, 1, fake.logouts)
}

func TestGRPCClient_GetAccountByEmailOrID(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetAccount(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, &api.GetAccountRequest{Email: "bob@example.com"}, fake.lastGet)

	_, err = c.GetAccount(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, &api.GetAccountRequest{ID: "id-1"}, fake.lastGet)
}

func TestGRPCClient_MapsCodes(t *testing.T) {
	c, _ := newTestClient(t)

	err := c.AddRole(context.Background(), "id", "Admin")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	err = c.RemoveRole(context.Background(), "id", "Admin")
	require.Error(t, err, "unimplemented on the fake")
	assert.False(t, errors.Is(err, ErrAlreadyExists))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.Unauthenticated, ErrUnauthorized},
		{codes.PermissionDenied, ErrForbidden},
		{codes.NotFound, ErrNotFound},
		{codes.AlreadyExists, ErrAlreadyExists},
		{codes.InvalidArgument, ErrInvalidInput},
		{codes.FailedPrecondition, ErrRejected},
		{codes.Unavailable, ErrUnavailable},
		{codes.DeadlineExceeded, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.ErrorIs(t, mapError(status.Error(tt.code, "x")), tt.want)
		})
	}

	assert.NoError(t, mapError(nil))
	plain := errors.New("plain")
	assert.Same(t, plain, mapError(plain))
}

package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestSigner(t *testing.T, now func() time.Time) *auth.Signer {
	t.Helper()
	opts := []auth.Option{}
	if now != nil {
		opts = append(opts, auth.WithClock(now))
	}
	s, err := auth.NewSigner(auth.Config{
		Secret:    testSecret,
		Issuer:    "gophauth",
		Audience:  "gophauth-clients",
		AccessTTL: 15 * time.Minute,
	}, opts...)
	require.NoError(t, err)
	return s
}

type captureNotifier struct {
	events chan notify.Event
}

func (n *captureNotifier) Notify(_ context.Context, e notify.Event) error {
	n.events <- e
	return nil
}

type testEnv struct {
	svc      *services.AuthService
	signer   *auth.Signer
	client   api.AuthServiceClient
	notifier *captureNotifier
}

// newTestEnv serves a real AuthService over an in-memory listener.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hasher, err := password.NewHasherWithParams(password.Params{Iterations: 1000, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	signer := newTestSigner(t, nil)
	notifier := &captureNotifier{events: make(chan notify.Event, 16)}

	svc, err := services.NewAuthService(repomanager.NewInMemoryRepositoryManager(), hasher, signer,
		7*24*time.Hour, logging.Nop{}, services.WithNotifier(notifier))
	require.NoError(t, err)

	srv := NewGRPCServer("bufnet", logging.Nop{}, svc, signer)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})

	return &testEnv{svc: svc, signer: signer, client: api.NewAuthServiceClient(conn), notifier: notifier}
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, token)
}

func (e *testEnv) register(t *testing.T, user, email, pw string) string {
	t.Helper()
	resp, err := e.client.Register(context.Background(), &api.RegisterRequest{UserName: user, Email: email, Password: pw})
	require.NoError(t, err)
	return resp.ID
}

func (e *testEnv) login(t *testing.T, login, pw string) *api.AuthResponse {
	t.Helper()
	resp, err := e.client.Login(context.Background(), &api.LoginRequest{Login: login, Password: pw})
	require.NoError(t, err)
	return resp
}

// makeAdmin grants the Admin role directly through the service.
func (e *testEnv) makeAdmin(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.svc.CreateRole(ctx, common.AdminRoleName); err != nil {
		require.ErrorIs(t, err, services.ErrRoleAlreadyExists)
	}
	require.NoError(t, e.svc.AddRole(ctx, id, common.AdminRoleName))
}

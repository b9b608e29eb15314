package client

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/api"
)

// Client is what the CLI needs from the server.
type Client interface {
	Close() error
	LoggedIn() bool
	Restore(access, refresh string)
	OnTokensChanged(fn func(access, refresh string))

	Ping(ctx context.Context) error
	Register(ctx context.Context, req *api.RegisterRequest) (string, error)
	Login(ctx context.Context, login string, password []byte) (*api.AuthResponse, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.Profile, error)
	ChangePassword(ctx context.Context, current, newPassword []byte) error
	UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.Profile, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, token string, newPassword []byte) error

	ListAccounts(ctx context.Context) ([]api.Profile, error)
	GetAccount(ctx context.Context, idOrEmail string) (*api.Profile, error)
	DeleteAccount(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	ListRoles(ctx context.Context, accountID string) ([]string, error)
	CreateRole(ctx context.Context, name string) (*api.Role, error)
	AddRole(ctx context.Context, accountID, role string) error
	RemoveRole(ctx context.Context, accountID, role string) error
}

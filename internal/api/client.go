package api

import (
	"context"

	"google.golang.org/grpc"
)

// AuthServiceClient is the typed client for AuthService.
type AuthServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error)
	Me(ctx context.Context, in *MeRequest, opts ...grpc.CallOption) (*Profile, error)
	ChangePassword(ctx context.Context, in *ChangePasswordRequest, opts ...grpc.CallOption) (*Empty, error)
	UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*Profile, error)
	ForgotPassword(ctx context.Context, in *ForgotPasswordRequest, opts ...grpc.CallOption) (*Empty, error)
	ResetPassword(ctx context.Context, in *ResetPasswordRequest, opts ...grpc.CallOption) (*Empty, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
	ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error)
	GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*Profile, error)
	DeleteAccount(ctx context.Context, in *DeleteAccountRequest, opts ...grpc.CallOption) (*Empty, error)
	SetActive(ctx context.Context, in *SetActiveRequest, opts ...grpc.CallOption) (*Empty, error)
	ListRoles(ctx context.Context, in *ListRolesRequest, opts ...grpc.CallOption) (*ListRolesResponse, error)
	CreateRole(ctx context.Context, in *CreateRoleRequest, opts ...grpc.CallOption) (*Role, error)
	AddRole(ctx context.Context, in *RoleMembershipRequest, opts ...grpc.CallOption) (*Empty, error)
	RemoveRole(ctx context.Context, in *RoleMembershipRequest, opts ...grpc.CallOption) (*Empty, error)
}

type authServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAuthServiceClient wraps cc. Calls are sent with the JSON codec.
func NewAuthServiceClient(cc grpc.ClientConnInterface) AuthServiceClient {
	return &authServiceClient{cc: cc}
}

func (c *authServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *authServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.invoke(ctx, AuthService_Register_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	out := new(AuthResponse)
	if err := c.invoke(ctx, AuthService_Login_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	out := new(AuthResponse)
	if err := c.invoke(ctx, AuthService_RefreshToken_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	out := new(LogoutResponse)
	if err := c.invoke(ctx, AuthService_Logout_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) Me(ctx context.Context, in *MeRequest, opts ...grpc.CallOption) (*Profile, error) {
	out := new(Profile)
	if err := c.invoke(ctx, AuthService_Me_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) ChangePassword(ctx context.Context, in *ChangePasswordRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, AuthService_ChangePassword_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*Profile, error) {
	out := new(Profile)
	if err := c.invoke(ctx, AuthService_UpdateProfile_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) ForgotPassword(ctx context.Context, in *ForgotPasswordRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, AuthService_ForgotPassword_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) ResetPassword(ctx context.Context, in *ResetPasswordRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, AuthService_ResetPassword_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.invoke(ctx, AuthService_Ping_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error) {
	out := new(ListAccountsResponse)
	if err := c.invoke(ctx, AuthService_ListAccounts_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*Profile, error) {
	out := new(Profile)
	if err := c.invoke(ctx, AuthService_GetAccount_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) DeleteAccount(ctx context.Context, in *DeleteAccountRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, AuthService_DeleteAccount_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) SetActive(ctx context.Context, in *SetActiveRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, AuthService_SetActive_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) ListRoles(ctx context.Context, in *ListRolesRequest, opts ...grpc.CallOption) (*ListRolesResponse, error) {
	out := new(ListRolesResponse)
	if err := c.invoke(ctx, AuthService_ListRoles_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) CreateRole(ctx context.Context, in *CreateRoleRequest, opts ...grpc.CallOption) (*Role, error) {
	out := new(Role)
	if err := c.invoke(ctx, AuthService_CreateRole_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) AddRole(ctx context.Context, in *RoleMembershipRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, AuthService_AddRole_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) RemoveRole(ctx context.Context, in *RoleMembershipRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, AuthService_RemoveRole_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

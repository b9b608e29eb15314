package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toProfile(p models.Profile) api.Profile {
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	return api.Profile{
		ID:          p.ID,
		UserName:    p.UserName,
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		PhoneNumber: p.PhoneNumber,
		IsActive:    p.IsActive,
		Roles:       roles,
		CreatedAt:   p.CreatedAt,
	}
}

func toAuthResponse(r *models.AuthResult) *api.AuthResponse {
	return &api.AuthResponse{
		AccessToken:            r.AccessToken,
		RefreshToken:           r.RefreshToken,
		Expiration:             r.Expiration,
		RefreshTokenExpiration: r.RefreshTokenExpiration,
		Roles:                  r.Roles,
		Profile:                toProfile(r.Profile),
	}
}

func callerID(ctx context.Context) (string, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing token")
	}
	return claims.Subject, nil
}

// Register always assigns the default role; admins grant others later.
func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {
	id, err := s.svc.Register(ctx, services.RegisterRequest{
		UserName:    req.UserName,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "account_id", id)
	return &api.RegisterResponse{ID: id}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.AuthResponse, error) {
	res, err := s.svc.Login(ctx, req.Login, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toAuthResponse(res), nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *api.RefreshTokenRequest) (*api.AuthResponse, error) {
	res, err := s.svc.Refresh(ctx, req.AccessToken, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toAuthResponse(res), nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *api.LogoutRequest) (*api.LogoutResponse, error) {
	id, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := s.svc.Logout(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.LogoutResponse{LoggedOut: ok}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *api.MeRequest) (*api.Profile, error) {
	id, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	a, err := s.svc.GetAccount(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	p := toProfile(a.Profile())
	return &p, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) (*api.Empty, error) {
	id, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.svc.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.Profile, error) {
	id, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	a, err := s.svc.UpdateProfile(ctx, id, services.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	p := toProfile(a.Profile())
	return &p, nil
}

// ForgotPassword answers the same way whether or not the email is known.
// The token travels only through the notifier.
func (s *GRPCServer) ForgotPassword(ctx context.Context, req *api.ForgotPasswordRequest) (*api.Empty, error) {
	_, err := s.svc.ForgotPassword(ctx, req.Email)
	if err != nil {
		if r, ok := services.AsRejection(err); ok && r.Reason == services.ReasonNotFound {
			return &api.Empty{}, nil
		}
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) ResetPassword(ctx context.Context, req *api.ResetPasswordRequest) (*api.Empty, error) {
	if err := s.svc.ResetPassword(ctx, req.Email, req.Token, req.NewPassword); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) ListAccounts(ctx context.Context, _ *api.ListAccountsRequest) (*api.ListAccountsResponse, error) {
	accounts, err := s.svc.ListAccounts(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := make([]api.Profile, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toProfile(a.Profile()))
	}
	return &api.ListAccountsResponse{Accounts: out}, nil
}

func (s *GRPCServer) GetAccount(ctx context.Context, req *api.GetAccountRequest) (*api.Profile, error) {
	var (
		a   *models.Account
		err error
	)
	switch {
	case req.ID != "":
		a, err = s.svc.GetAccount(ctx, req.ID)
	case req.Email != "":
		a, err = s.svc.GetAccountByEmail(ctx, req.Email)
	default:
		return nil, status.Error(codes.InvalidArgument, "id or email is required")
	}
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	p := toProfile(a.Profile())
	return &p, nil
}

func (s *GRPCServer) DeleteAccount(ctx context.Context, req *api.DeleteAccountRequest) (*api.Empty, error) {
	if err := s.svc.DeleteAccount(ctx, req.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) SetActive(ctx context.Context, req *api.SetActiveRequest) (*api.Empty, error) {
	if err := s.svc.SetActive(ctx, req.ID, req.Active); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) ListRoles(ctx context.Context, req *api.ListRolesRequest) (*api.ListRolesResponse, error) {
	if req.AccountID != "" {
		roles, err := s.svc.ListRoles(ctx, req.AccountID)
		if err != nil {
			return nil, s.toStatus(ctx, err)
		}
		return &api.ListRolesResponse{Roles: roles}, nil
	}

	all, err := s.svc.ListAllRoles(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	names := make([]string, 0, len(all))
	for _, r := range all {
		names = append(names, r.Name)
	}
	return &api.ListRolesResponse{Roles: names}, nil
}

func (s *GRPCServer) CreateRole(ctx context.Context, req *api.CreateRoleRequest) (*api.Role, error) {
	r, err := s.svc.CreateRole(ctx, req.Name)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Role{ID: r.ID, Name: r.Name}, nil
}

func (s *GRPCServer) AddRole(ctx context.Context, req *api.RoleMembershipRequest) (*api.Empty, error) {
	if err := s.svc.AddRole(ctx, req.AccountID, req.Role); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) RemoveRole(ctx context.Context, req *api.RoleMembershipRequest) (*api.Empty, error) {
	if err := s.svc.RemoveRole(ctx, req.AccountID, req.Role); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil
}

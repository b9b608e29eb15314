package api

import "time"

type Profile struct {
	ID          string    `json:"id"`
	UserName    string    `json:"user_name"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	IsActive    bool      `json:"is_active"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
}

type AuthResponse struct {
	AccessToken            string    `json:"access_token"`
	RefreshToken           string    `json:"refresh_token"`
	Expiration             time.Time `json:"expiration"`
	RefreshTokenExpiration time.Time `json:"refresh_token_expiration"`
	Roles                  []string  `json:"roles"`
	Profile                Profile   `json:"profile"`
}

type RegisterRequest struct {
	UserName    string `json:"user_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type RegisterResponse struct {
	ID string `json:"id"`
}

type LoginRequest struct {
	// Login is a user name or an email address.
	Login    string `json:"login"`
	Password string `json:"password"`
}

type RefreshTokenRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct{}

type LogoutResponse struct {
	LoggedOut bool `json:"logged_out"`
}

type MeRequest struct{}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type Empty struct{}

type ListAccountsRequest struct{}

type ListAccountsResponse struct {
	Accounts []Profile `json:"accounts"`
}

// GetAccountRequest looks an account up by ID, or by Email when ID is empty.
type GetAccountRequest struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

type DeleteAccountRequest struct {
	ID string `json:"id"`
}

type SetActiveRequest struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// ListRolesRequest lists every role, or the roles of AccountID when set.
type ListRolesRequest struct {
	AccountID string `json:"account_id,omitempty"`
}

type ListRolesResponse struct {
	Roles []string `json:"roles"`
}

type CreateRoleRequest struct {
	Name string `json:"name"`
}

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RoleMembershipRequest struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Register prompts for the account fields and creates the account.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	firstName, err := getSimpleText(a.reader, "Enter first name (optional)", a.out)
	if err != nil {
		return err
	}
	lastName, err := getSimpleText(a.reader, "Enter last name (optional)", a.out)
	if err != nil {
		return err
	}

	password, err := a.newPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	id, err := a.client.Register(ctx, &api.RegisterRequest{
		UserName:  userName,
		Email:     email,
		Password:  string(password),
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		return err
	}

	a.println("Registered, account id:", id)
	return nil
}

// newPassword asks for a password twice.
func (a *App) newPassword() ([]byte, error) {
	first, err := getPassword("Enter password", a.out)
	if err != nil {
		return nil, err
	}
	second, err := getPassword("Repeat password", a.out)
	if err != nil {
		common.WipeByteArray(first)
		return nil, err
	}
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		common.WipeByteArray(first)
		return nil, errors.New("passwords do not match")
	}
	return first, nil
}

// Login accepts a user name or an email address.
func (a *App) Login(ctx context.Context) error {
	login, err := getSimpleText(a.reader, "Enter user name or email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.client.Login(ctx, login, password)
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			a.setMode(ModeOffline)
		}
		return err
	}

	a.setMode(ModeOnline)
	a.userName = res.Profile.UserName
	a.persistTokens(res.AccessToken, res.RefreshToken)
	a.println("Login successful, roles:", res.Roles)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err := a.client.Logout(ctx)
	a.userName = ""
	if err != nil {
		return err
	}
	a.println("Logged out")
	return nil
}

func (a *App) Me(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	p, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	printProfile(a.out, p)
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	current, err := getPassword("Enter current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	next, err := a.newPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	a.println("Password changed")
	return nil
}

// UpdateProfile prompts for each field; an empty answer leaves it as is
// and "-" clears it.
func (a *App) UpdateProfile(ctx context.Context) error {
	var req api.UpdateProfileRequest

	fields := []struct {
		prompt string
		dst    **string
	}{
		{"First name", &req.FirstName},
		{"Last name", &req.LastName},
		{"Phone number", &req.PhoneNumber},
	}
	for _, f := range fields {
		v, err := getSimpleText(a.reader, f.prompt+" (empty keeps, - clears)", a.out)
		if err != nil {
			return err
		}
		switch v {
		case "":
		case "-":
			empty := ""
			*f.dst = &empty
		default:
			*f.dst = &v
		}
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	p, err := a.client.UpdateProfile(ctx, &req)
	if err != nil {
		return err
	}
	printProfile(a.out, p)
	return nil
}

func (a *App) ForgotPassword(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.ForgotPassword(ctx, email); err != nil {
		return err
	}
	a.println("If the address is registered, a reset token has been sent")
	return nil
}

func (a *App) ResetPassword(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	token, err := getSimpleText(a.reader, "Enter reset token", a.out)
	if err != nil {
		return err
	}
	password, err := a.newPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.ResetPassword(ctx, email, token, password); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	a.println("Password reset, you can log in now")
	return nil
}

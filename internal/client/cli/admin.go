package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api"
)

func printProfile(w io.Writer, p *api.Profile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	fmt.Fprintf(tw, "User name:\t%s\n", p.UserName)
	fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	fmt.Fprintf(tw, "Name:\t%s\n", strings.TrimSpace(p.FirstName+" "+p.LastName))
	fmt.Fprintf(tw, "Phone:\t%s\n", p.PhoneNumber)
	fmt.Fprintf(tw, "Active:\t%t\n", p.IsActive)
	fmt.Fprintf(tw, "Roles:\t%s\n", strings.Join(p.Roles, ", "))
	fmt.Fprintf(tw, "Created:\t%s\n", p.CreatedAt.Format(time.RFC3339))
	_ = tw.Flush()
}

func (a *App) Accounts(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	list, err := a.client.ListAccounts(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tEMAIL\tROLES")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.UserName, p.Email, strings.Join(p.Roles, ","))
	}
	return tw.Flush()
}

func (a *App) Account(ctx context.Context, idOrEmail string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	p, err := a.client.GetAccount(ctx, idOrEmail)
	if err != nil {
		return err
	}
	printProfile(a.out, p)
	return nil
}

// Roles lists every role, or those of accountID when it is set.
func (a *App) Roles(ctx context.Context, accountID string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	roles, err := a.client.ListRoles(ctx, accountID)
	if err != nil {
		return err
	}
	for _, r := range roles {
		a.println(r)
	}
	return nil
}

func (a *App) CreateRole(ctx context.Context, name string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	r, err := a.client.CreateRole(ctx, name)
	if err != nil {
		return err
	}
	a.println("Created role", r.Name)
	return nil
}

func (a *App) Grant(ctx context.Context, accountID, role string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.AddRole(ctx, accountID, role); err != nil {
		return err
	}
	a.println("Granted", role)
	return nil
}

func (a *App) Revoke(ctx context.Context, accountID, role string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.RemoveRole(ctx, accountID, role); err != nil {
		return err
	}
	a.println("Revoked", role)
	return nil
}

func (a *App) SetActive(ctx context.Context, accountID string, active bool) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.SetActive(ctx, accountID, active); err != nil {
		return err
	}
	if active {
		a.println("Enabled", accountID)
	} else {
		a.println("Disabled", accountID)
	}
	return nil
}

func (a *App) Delete(ctx context.Context, accountID string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	a.println("Deleted", accountID)
	return nil
}

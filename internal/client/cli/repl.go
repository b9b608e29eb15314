package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. The real App
// satisfies it; tests provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	UpdateProfile(ctx context.Context) error
	ForgotPassword(ctx context.Context) error
	ResetPassword(ctx context.Context) error

	Accounts(ctx context.Context) error
	Account(ctx context.Context, idOrEmail string) error
	Roles(ctx context.Context, accountID string) error
	CreateRole(ctx context.Context, name string) error
	Grant(ctx context.Context, accountID, role string) error
	Revoke(ctx context.Context, accountID, role string) error
	SetActive(ctx context.Context, accountID string, active bool) error
	Delete(ctx context.Context, accountID string) error
}

const (
	helpLoggedOut = "Available commands: register, login, forgot, reset, exit"
	helpLoggedIn  = "Available commands: me, passwd, profile, logout, exit\n" +
		"Admin: accounts, account <id|email>, roles [id], mkrole <name>, grant <id> <role>, revoke <id> <role>, enable <id>, disable <id>, delete <id>"
)

var errUsage = errors.New("usage")

// runREPL reads commands from reader until EOF, "exit" or "quit" and
// dispatches them to a. Handler errors are printed and the loop goes on.
// Command handlers read their prompts from the same reader, so lines are
// consumed one at a time.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, out io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(out, "authctl %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			fmt.Fprintln(out, "Bye!")
			return
		}

		err = dispatch(ctx, a, cmd, args, out)
		switch {
		case errors.Is(err, errUsage):
			fmt.Fprintln(out, err.Error())
		case err != nil:
			fmt.Fprintln(out, "error:", err.Error())
		}
	}
}

func need(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s", errUsage, usage)
	}
	return nil
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			fmt.Fprintln(out, helpLoggedIn)
		} else {
			fmt.Fprintln(out, helpLoggedOut)
		}
		return nil

	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	case "forgot":
		return a.ForgotPassword(ctx)
	case "reset":
		return a.ResetPassword(ctx)
	case "logout":
		return a.Logout(ctx)
	case "me":
		return a.Me(ctx)
	case "passwd":
		return a.ChangePassword(ctx)
	case "profile":
		return a.UpdateProfile(ctx)

	case "accounts":
		return a.Accounts(ctx)
	case "account":
		if err := need(args, 1, "account <id|email>"); err != nil {
			return err
		}
		return a.Account(ctx, args[0])
	case "roles":
		if len(args) > 1 {
			return fmt.Errorf("%w: roles [account id]", errUsage)
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		return a.Roles(ctx, id)
	case "mkrole":
		if err := need(args, 1, "mkrole <name>"); err != nil {
			return err
		}
		return a.CreateRole(ctx, args[0])
	case "grant":
		if err := need(args, 2, "grant <account id> <role>"); err != nil {
			return err
		}
		return a.Grant(ctx, args[0], args[1])
	case "revoke":
		if err := need(args, 2, "revoke <account id> <role>"); err != nil {
			return err
		}
		return a.Revoke(ctx, args[0], args[1])
	case "enable", "disable":
		if err := need(args, 1, cmd+" <account id>"); err != nil {
			return err
		}
		return a.SetActive(ctx, args[0], cmd == "enable")
	case "delete":
		if err := need(args, 1, "delete <account id>"); err != nil {
			return err
		}
		return a.Delete(ctx, args[0])

	default:
		fmt.Fprintln(out, "Unknown command:", cmd)
		return nil
	}
}

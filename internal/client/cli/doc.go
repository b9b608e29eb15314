// Package cli provides the interactive authctl command-line client.
//
// It wires configuration, the gRPC client and an interactive REPL. A
// background watcher pings the server and shows online/offline in the
// prompt. Account commands (register, login, me, passwd, profile, forgot,
// reset, logout) are open to everyone; admin commands (accounts, account,
// roles, mkrole, grant, revoke, enable, disable, delete) need a session
// holding the Admin role.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli

// Package client talks to the gophauth server on behalf of the CLI.
//
// GRPCClient keeps the session's access and refresh tokens in memory,
// attaches the access token to every call and, when the server answers
// "token expired", refreshes the pair once and retries the call.
//
// Server status codes are mapped to the sentinel errors in errors.go so
// callers can use errors.Is without importing grpc.
package client

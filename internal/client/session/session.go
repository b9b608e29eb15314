// Package session persists the authctl login between runs so the user does
// not have to sign in again while the refresh token is still valid.
package session

import "context"

// Session is the locally remembered login. A zero Session means signed out.
type Session struct {
	UserName     string
	AccessToken  string
	RefreshToken string
}

func (s Session) Empty() bool {
	return s.RefreshToken == ""
}

type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
	Close() error
}

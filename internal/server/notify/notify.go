// Package notify publishes account lifecycle events to RabbitMQ so that
// mailers and auditors can react to them.
package notify

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Event types double as queue names.
const (
	AccountRegistered      = "account.registered"
	PasswordResetRequested = "password.reset_requested"
)

// Event is the JSON body of a published message. Token is set only for
// password reset requests; TokenSealed means it was encrypted with the
// service's encryption key.
type Event struct {
	// ID is a ULID assigned on publish; consumers use it to drop duplicates.
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	AccountID   string    `json:"account_id"`
	UserName    string    `json:"username"`
	Email       string    `json:"email"`
	Token       string    `json:"token,omitempty"`
	TokenSealed bool      `json:"token_sealed,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Noop drops events. Used when no broker is configured.
type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }

// Logging writes events to a logger instead of a broker. Tokens are not
// logged.
type Logging struct {
	Logger logging.Logger
}

func (l Logging) Notify(ctx context.Context, e Event) error {
	l.Logger.Info(ctx, "event", "type", e.Type, "account_id", e.AccountID, "email", e.Email)
	return nil
}
